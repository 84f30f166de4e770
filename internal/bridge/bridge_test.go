package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/deriv-gateway/internal/router"
	"github.com/rickgao/deriv-gateway/internal/wire"
)

// fakeVenue answers each request asynchronously through the router, the way
// the supervisor would after reading a reply.
type fakeVenue struct {
	r     *router.Router
	reply func(req map[string]any) string
	then  string // dispatched right after each reply
	delay time.Duration
	fail  error

	mu          sync.Mutex
	sent        int
	inflight    int
	maxInflight int
}

func (v *fakeVenue) Send(frame any) error {
	if v.fail != nil {
		return v.fail
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	var req map[string]any
	json.Unmarshal(data, &req)

	v.mu.Lock()
	v.sent++
	v.inflight++
	if v.inflight > v.maxInflight {
		v.maxInflight = v.inflight
	}
	v.mu.Unlock()

	resp := ""
	if v.reply != nil {
		resp = v.reply(req)
	}
	if resp == "" {
		v.mu.Lock()
		v.inflight--
		v.mu.Unlock()
		return nil
	}

	go func() {
		time.Sleep(v.delay)
		v.mu.Lock()
		v.inflight--
		v.mu.Unlock()
		v.dispatch(resp)
		if v.then != "" {
			v.dispatch(v.then)
		}
	}()
	return nil
}

func (v *fakeVenue) dispatch(raw string) {
	f, err := wire.Classify([]byte(raw), time.Now())
	if err != nil {
		panic(err)
	}
	v.r.Dispatch(f)
}

// echoProposal answers a proposal with an ask price equal to the amount.
func echoProposal(req map[string]any) string {
	if req["proposal"] == nil {
		return ""
	}
	return fmt.Sprintf(`{"msg_type":"proposal","proposal":{"id":"p-%v","ask_price":%v,"payout":19.5}}`,
		req["amount"], req["amount"])
}

func newTestBridge(v *fakeVenue) *Bridge {
	if v.r == nil {
		v.r = router.NewRouter(nil, nil)
	}
	return New(Config{Timeout: time.Second}, v, v.r, nil, nil)
}

func proposalRequest(amount float64) wire.ProposalRequest {
	return wire.NewProposalRequest("R_100", "CALL", amount, 5, "t")
}

func assertNoHandlers(t *testing.T, r *router.Router, kinds ...wire.Kind) {
	t.Helper()
	for _, k := range kinds {
		if n := r.Count(k); n != 0 {
			t.Errorf("%s handlers left registered: %d", k, n)
		}
	}
}

func TestCall_Success(t *testing.T) {
	v := &fakeVenue{reply: echoProposal, delay: 5 * time.Millisecond}
	b := newTestBridge(v)

	f, err := b.Call(context.Background(), proposalRequest(10), wire.KindProposal, 0)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if f.Kind != wire.KindProposal {
		t.Errorf("Kind = %s, want proposal", f.Kind)
	}

	var p wire.Proposal
	if err := f.Decode(&p); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if p.ID != "p-10" || p.AskPrice.Float64() != 10 {
		t.Errorf("proposal = %+v", p)
	}
	assertNoHandlers(t, v.r, wire.KindProposal, wire.KindError)
}

func TestDo_Decodes(t *testing.T) {
	v := &fakeVenue{reply: echoProposal}
	b := newTestBridge(v)

	p, err := Do[wire.Proposal](context.Background(), b, proposalRequest(25), wire.KindProposal, 0)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if p.AskPrice.Float64() != 25 {
		t.Errorf("AskPrice = %v, want 25", p.AskPrice)
	}
}

func TestCall_RemoteError(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{
			name:  "matching msg_type",
			reply: `{"msg_type":"proposal","error":{"code":"InvalidSymbol","message":"Symbol XYZ is invalid."}}`,
		},
		{
			name:  "no msg_type",
			reply: `{"error":{"code":"InvalidSymbol","message":"Symbol XYZ is invalid."}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &fakeVenue{reply: func(map[string]any) string { return tt.reply }}
			b := newTestBridge(v)

			_, err := b.Call(context.Background(), proposalRequest(10), wire.KindProposal, 0)

			var apiErr *wire.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *wire.APIError", err)
			}
			if apiErr.Code != "InvalidSymbol" || apiErr.Message != "Symbol XYZ is invalid." {
				t.Errorf("apiErr = %+v", apiErr)
			}
			if errors.Is(err, ErrTimeout) {
				t.Error("remote error must not be reported as timeout")
			}
			assertNoHandlers(t, v.r, wire.KindProposal, wire.KindError)
		})
	}
}

func TestCall_FirstCompletionWins(t *testing.T) {
	const (
		success = `{"msg_type":"proposal","proposal":{"id":"p-1","ask_price":10,"payout":19.5}}`
		failure = `{"msg_type":"proposal","error":{"code":"InvalidSymbol","message":"bad"}}`
	)
	tests := []struct {
		name    string
		first   string
		second  string
		wantErr bool
	}{
		{name: "error then success", first: failure, second: success, wantErr: true},
		{name: "success then error", first: success, second: failure, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &fakeVenue{
				reply: func(map[string]any) string { return tt.first },
				then:  tt.second,
			}
			b := newTestBridge(v)

			f, err := b.Call(context.Background(), proposalRequest(10), wire.KindProposal, 0)
			if tt.wantErr {
				var apiErr *wire.APIError
				if !errors.As(err, &apiErr) || apiErr.Code != "InvalidSymbol" {
					t.Fatalf("error = %v, want InvalidSymbol *wire.APIError", err)
				}
			} else {
				if err != nil {
					t.Fatalf("Call failed: %v", err)
				}
				if f.Kind != wire.KindProposal {
					t.Errorf("Kind = %s, want proposal", f.Kind)
				}
			}

			// Let the second frame land, then check nothing is left behind.
			time.Sleep(20 * time.Millisecond)
			assertNoHandlers(t, v.r, wire.KindProposal, wire.KindError)
		})
	}
}

func TestCall_IgnoresErrorForOtherKind(t *testing.T) {
	v := &fakeVenue{reply: func(map[string]any) string {
		return `{"msg_type":"buy","error":{"code":"InsufficientBalance","message":"no funds"}}`
	}}
	b := newTestBridge(v)

	_, err := b.Call(context.Background(), proposalRequest(10), wire.KindProposal, 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestCall_TimeoutLeavesNoHandler(t *testing.T) {
	v := &fakeVenue{}
	b := newTestBridge(v)

	start := time.Now()
	_, err := b.Call(context.Background(), proposalRequest(10), wire.KindProposal, 30*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("returned after %v, before the deadline", elapsed)
	}
	assertNoHandlers(t, v.r, wire.KindProposal, wire.KindError)

	// A late response reaches nobody.
	v.dispatch(`{"msg_type":"proposal","proposal":{"id":"late","ask_price":1}}`)

	// The next call gets its own answer, not the late one.
	v.reply = echoProposal
	p, err := Do[wire.Proposal](context.Background(), b, proposalRequest(42), wire.KindProposal, 0)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if p.ID != "p-42" {
		t.Errorf("second call got %q, want p-42", p.ID)
	}
}

func TestCall_SerializesSameKind(t *testing.T) {
	v := &fakeVenue{reply: echoProposal, delay: 10 * time.Millisecond}
	b := newTestBridge(v)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 1; i <= 5; i++ {
		amount := float64(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := Do[wire.Proposal](context.Background(), b, proposalRequest(amount), wire.KindProposal, 0)
			if err != nil {
				errs <- err
				return
			}
			if p.AskPrice.Float64() != amount {
				errs <- fmt.Errorf("call for %v got answer for %v", amount, p.AskPrice)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.maxInflight != 1 {
		t.Errorf("max in-flight proposals = %d, want 1", v.maxInflight)
	}
	if v.sent != 5 {
		t.Errorf("sent = %d, want 5", v.sent)
	}
}

func TestCall_DifferentKindsConcurrent(t *testing.T) {
	v := &fakeVenue{reply: func(req map[string]any) string {
		if req["buy"] != nil {
			return `{"msg_type":"buy","buy":{"contract_id":123,"buy_price":10,"payout":19.5,"transaction_id":456}}`
		}
		return "" // proposals never answered
	}}
	b := newTestBridge(v)

	proposalDone := make(chan error, 1)
	go func() {
		_, err := b.Call(context.Background(), proposalRequest(10), wire.KindProposal, 500*time.Millisecond)
		proposalDone <- err
	}()

	// Let the proposal call take its kind lock.
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	receipt, err := Do[wire.BuyReceipt](context.Background(), b, wire.BuyRequest{Buy: "p-1", Price: 10}, wire.KindBuy, 0)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if receipt.ContractID != "123" {
		t.Errorf("ContractID = %q, want 123", receipt.ContractID)
	}
	if time.Since(start) > 250*time.Millisecond {
		t.Error("buy call waited on the pending proposal call")
	}

	if err := <-proposalDone; !errors.Is(err, ErrTimeout) {
		t.Errorf("proposal error = %v, want ErrTimeout", err)
	}
}

func TestCall_ContextCanceled(t *testing.T) {
	v := &fakeVenue{}
	b := newTestBridge(v)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := b.Call(ctx, proposalRequest(10), wire.KindProposal, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	assertNoHandlers(t, v.r, wire.KindProposal, wire.KindError)
}

func TestCall_SendFailure(t *testing.T) {
	sendErr := errors.New("session not ready")
	v := &fakeVenue{fail: sendErr}
	b := newTestBridge(v)

	_, err := b.Call(context.Background(), proposalRequest(10), wire.KindProposal, time.Second)
	if !errors.Is(err, sendErr) {
		t.Errorf("error = %v, want send error", err)
	}
	assertNoHandlers(t, v.r, wire.KindProposal, wire.KindError)
}

func TestCall_InvalidKind(t *testing.T) {
	b := newTestBridge(&fakeVenue{})

	for _, k := range []wire.Kind{wire.KindUnknown, wire.KindError, wire.KindPing} {
		if _, err := b.Call(context.Background(), nil, k, time.Second); !errors.Is(err, ErrInvalidKind) {
			t.Errorf("Call(%s) error = %v, want ErrInvalidKind", k, err)
		}
	}
}

func TestCall_RateLimited(t *testing.T) {
	v := &fakeVenue{reply: echoProposal}
	v.r = router.NewRouter(nil, nil)
	b := New(Config{Timeout: time.Second, RatePerSecond: 20, Burst: 1}, v, v.r, nil, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := b.Call(context.Background(), proposalRequest(1), wire.KindProposal, 0); err != nil {
			t.Fatalf("Call %d failed: %v", i, err)
		}
	}
	// Burst of one at 20/s: the 2nd and 3rd calls each wait ~50ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 calls took %v, expected rate limiting", elapsed)
	}
}
