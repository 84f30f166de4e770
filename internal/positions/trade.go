package positions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/deriv-gateway/internal/wire"
)

// Direction is the caller-facing side of a trade.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// ErrUnknownDirection is returned for directions other than buy or sell.
var ErrUnknownDirection = errors.New("unknown trade direction")

// ParseDirection accepts "buy" or "sell" in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Buy, Sell:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// ContractType maps a direction to the venue's rise/fall contract.
func (d Direction) ContractType() string {
	if d == Sell {
		return "PUT"
	}
	return "CALL"
}

// OpenTrade is a position opened by ExecuteTrade.
type OpenTrade struct {
	ID            uuid.UUID
	ContractID    string
	ProposalID    string
	TransactionID string
	Symbol        string
	Direction     Direction
	ContractType  string
	Stake         float64
	EntryPrice    float64 // price paid
	Payout        float64
	TakeProfit    *float64
	StopLoss      *float64
	OpenedAt      time.Time
}

// NewOpenTrade builds a trade record from a purchase receipt.
func NewOpenTrade(symbol string, dir Direction, stake float64, proposalID string, receipt wire.BuyReceipt, openedAt time.Time) OpenTrade {
	return OpenTrade{
		ID:            uuid.New(),
		ContractID:    string(receipt.ContractID),
		ProposalID:    proposalID,
		TransactionID: string(receipt.TransactionID),
		Symbol:        symbol,
		Direction:     dir,
		ContractType:  dir.ContractType(),
		Stake:         stake,
		EntryPrice:    receipt.BuyPrice.Float64(),
		Payout:        receipt.Payout.Float64(),
		OpenedAt:      openedAt.UTC(),
	}
}
