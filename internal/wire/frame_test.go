package wire

import (
	"errors"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Kind
	}{
		{"authorize", `{"authorize":{"loginid":"VRTC1","currency":"USD","balance":10000},"msg_type":"authorize"}`, KindAuthorize},
		{"error", `{"error":{"code":"InvalidSymbol","message":"Symbol XYZ is invalid"},"msg_type":"proposal"}`, KindError},
		{"venue ping", `{"ping":1}`, KindPing},
		{"ping ack", `{"ping":"pong","msg_type":"ping"}`, KindPong},
		{"pong", `{"pong":1}`, KindPong},
		{"tick", `{"tick":{"symbol":"R_100","quote":1234.56,"epoch":1700000000,"id":"abc"}}`, KindTick},
		{"candle", `{"ohlc":{"symbol":"R_100","open":"1.0","high":"2.0","low":"0.5","close":"1.5","epoch":1700000000}}`, KindCandle},
		{"proposal", `{"proposal":{"id":"p1","ask_price":10,"payout":19.5},"msg_type":"proposal"}`, KindProposal},
		{"buy", `{"buy":{"contract_id":123,"buy_price":10,"payout":19.5,"transaction_id":456}}`, KindBuy},
		{"sell", `{"sell":{"contract_id":123,"sold_for":12}}`, KindSell},
		{"open contract", `{"proposal_open_contract":{"contract_id":123,"status":"open"}}`, KindOpenContract},
		{"balance", `{"balance":{"balance":9990,"currency":"USD"}}`, KindBalance},
		{"null field is absent", `{"tick":null,"foo":1}`, KindUnknown},
		{"unknown", `{"time":1700000000}`, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Classify([]byte(tt.data), time.Now())
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if f.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", f.Kind, tt.want)
			}
		})
	}
}

func TestClassify_InvalidJSON(t *testing.T) {
	if _, err := Classify([]byte(`{not json`), time.Now()); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestClassify_ErrorFrame(t *testing.T) {
	data := `{"error":{"code":"InvalidSymbol","message":"Symbol XYZ is invalid"},"msg_type":"proposal","req_id":7}`
	f, err := Classify([]byte(data), time.Now())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if f.Err == nil {
		t.Fatal("expected Err to be set")
	}
	if f.Err.Code != "InvalidSymbol" {
		t.Errorf("Code = %q, want InvalidSymbol", f.Err.Code)
	}
	if f.Err.MsgType != "proposal" {
		t.Errorf("MsgType = %q, want proposal", f.Err.MsgType)
	}
	if f.ReqID != 7 {
		t.Errorf("ReqID = %d, want 7", f.ReqID)
	}

	var apiErr *APIError
	if !errors.As(error(f.Err), &apiErr) {
		t.Error("expected *APIError")
	}
}

func TestFrame_Decode(t *testing.T) {
	f, err := Classify([]byte(`{"buy":{"contract_id":98765,"buy_price":"10.00","payout":19.5,"transaction_id":"t-1"}}`), time.Now())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	var receipt BuyReceipt
	if err := f.Decode(&receipt); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if receipt.ContractID != "98765" {
		t.Errorf("ContractID = %q, want 98765", receipt.ContractID)
	}
	if receipt.BuyPrice != 10 {
		t.Errorf("BuyPrice = %v, want 10", receipt.BuyPrice)
	}
	if receipt.TransactionID != "t-1" {
		t.Errorf("TransactionID = %q, want t-1", receipt.TransactionID)
	}
}

func TestFrame_DecodeEmpty(t *testing.T) {
	var f Frame
	if err := f.Decode(&Tick{}); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("Decode error = %v, want ErrEmptyPayload", err)
	}
}

func TestContract_Settled(t *testing.T) {
	tests := []struct {
		c    Contract
		want bool
	}{
		{Contract{Status: "open"}, false},
		{Contract{Status: "won"}, true},
		{Contract{Status: "lost"}, true},
		{Contract{Status: "open", IsSold: true}, true},
	}
	for _, tt := range tests {
		if got := tt.c.Settled(); got != tt.want {
			t.Errorf("Settled(%+v) = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestKind_String(t *testing.T) {
	if KindUnknown.String() != "message" {
		t.Errorf("KindUnknown.String() = %q, want message", KindUnknown.String())
	}
	if KindOpenContract.Field() != "proposal_open_contract" {
		t.Errorf("Field() = %q", KindOpenContract.Field())
	}
	if Kind(200).Valid() {
		t.Error("Kind(200) should be invalid")
	}
}
