package wire

// Kind identifies the type of an inbound frame.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuthorize
	KindError
	KindPing
	KindPong
	KindTick
	KindCandle
	KindProposal
	KindBuy
	KindSell
	KindOpenContract
	KindBalance

	kindCount
)

// Kinds lists every kind in classification order, followed by KindUnknown.
var Kinds = []Kind{
	KindAuthorize,
	KindError,
	KindPing,
	KindPong,
	KindTick,
	KindCandle,
	KindProposal,
	KindBuy,
	KindSell,
	KindOpenContract,
	KindBalance,
	KindUnknown,
}

// field is the top-level JSON field whose presence identifies the kind.
var fields = [kindCount]string{
	KindUnknown:      "",
	KindAuthorize:    "authorize",
	KindError:        "error",
	KindPing:         "ping",
	KindPong:         "pong",
	KindTick:         "tick",
	KindCandle:       "ohlc",
	KindProposal:     "proposal",
	KindBuy:          "buy",
	KindSell:         "sell",
	KindOpenContract: "proposal_open_contract",
	KindBalance:      "balance",
}

var names = [kindCount]string{
	KindUnknown:      "message",
	KindAuthorize:    "authorize",
	KindError:        "error",
	KindPing:         "ping",
	KindPong:         "pong",
	KindTick:         "tick",
	KindCandle:       "candle",
	KindProposal:     "proposal",
	KindBuy:          "buy",
	KindSell:         "sell",
	KindOpenContract: "contract",
	KindBalance:      "balance",
}

// String returns the event name used in logs and metrics.
func (k Kind) String() string {
	if k >= kindCount {
		return "invalid"
	}
	return names[k]
}

// Field returns the discriminating JSON field, or "" for KindUnknown.
func (k Kind) Field() string {
	if k >= kindCount {
		return ""
	}
	return fields[k]
}

// Valid reports whether k is a member of the enumeration.
func (k Kind) Valid() bool {
	return k < kindCount
}
