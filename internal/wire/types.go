package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Number accepts JSON numbers and numeric strings; the venue sends prices as
// either depending on the stream.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, jsonNull) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parse number %q: %w", s, err)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Float64 returns n as a float64.
func (n Number) Float64() float64 { return float64(n) }

// ID accepts identifiers sent as JSON numbers or strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, jsonNull) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*id = ID(num.String())
	return nil
}

// Flag is the venue's 0/1 boolean.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "1", "true":
		*f = true
	default:
		*f = false
	}
	return nil
}

// Authorize is the payload of a successful authorize response.
type Authorize struct {
	LoginID   string `json:"loginid"`
	Currency  string `json:"currency"`
	Balance   Number `json:"balance"`
	Email     string `json:"email,omitempty"`
	Fullname  string `json:"fullname,omitempty"`
	IsVirtual Flag   `json:"is_virtual"`
}

// Tick is one streamed quote update.
type Tick struct {
	ID     ID     `json:"id"`
	Symbol string `json:"symbol"`
	Quote  Number `json:"quote"`
	Bid    Number `json:"bid"`
	Ask    Number `json:"ask"`
	Epoch  int64  `json:"epoch"`
}

// Candle is one streamed OHLC bar.
type Candle struct {
	ID          ID     `json:"id"`
	Symbol      string `json:"symbol"`
	Open        Number `json:"open"`
	High        Number `json:"high"`
	Low         Number `json:"low"`
	Close       Number `json:"close"`
	Epoch       int64  `json:"epoch"`
	OpenTime    int64  `json:"open_time"`
	Granularity int    `json:"granularity"`
}

// Proposal is a venue-priced, time-limited offer to enter a contract.
type Proposal struct {
	ID        string `json:"id"`
	AskPrice  Number `json:"ask_price"`
	Payout    Number `json:"payout"`
	Spot      Number `json:"spot"`
	SpotTime  int64  `json:"spot_time"`
	DateStart int64  `json:"date_start"`
	Longcode  string `json:"longcode"`
}

// BuyReceipt confirms a placed order.
type BuyReceipt struct {
	ContractID    ID     `json:"contract_id"`
	BuyPrice      Number `json:"buy_price"`
	Payout        Number `json:"payout"`
	TransactionID ID     `json:"transaction_id"`
	StartTime     int64  `json:"start_time"`
	Longcode      string `json:"longcode"`
	BalanceAfter  Number `json:"balance_after"`
}

// SellReceipt confirms an early close of an open position.
type SellReceipt struct {
	ContractID    ID     `json:"contract_id"`
	SoldFor       Number `json:"sold_for"`
	TransactionID ID     `json:"transaction_id"`
	BalanceAfter  Number `json:"balance_after"`
}

// Contract is a streamed open-contract status update.
type Contract struct {
	ContractID   ID     `json:"contract_id"`
	ContractType string `json:"contract_type"`
	Underlying   string `json:"underlying"`
	Status       string `json:"status"` // open, won, lost, sold
	EntryTick    Number `json:"entry_tick"`
	ExitTick     Number `json:"exit_tick"`
	BuyPrice     Number `json:"buy_price"`
	SellPrice    Number `json:"sell_price"`
	Profit       Number `json:"profit"`
	DateStart    int64  `json:"date_start"`
	DateExpiry   int64  `json:"date_expiry"`
	IsSold       Flag   `json:"is_sold"`
}

// Settled reports whether the contract is no longer open.
func (c Contract) Settled() bool {
	if c.IsSold {
		return true
	}
	switch c.Status {
	case "won", "lost", "sold":
		return true
	}
	return false
}

// Balance is a streamed account balance update.
type Balance struct {
	Balance  Number `json:"balance"`
	Currency string `json:"currency"`
	LoginID  string `json:"loginid"`
}
