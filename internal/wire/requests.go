package wire

// Outbound frames. Field names follow the venue's API; optional fields are
// omitted when zero.

// AuthorizeRequest authenticates the session with a token.
type AuthorizeRequest struct {
	Authorize string `json:"authorize"`
}

// PingRequest is the client-side keepalive.
type PingRequest struct {
	Ping int `json:"ping"`
}

// PongReply answers a venue-initiated ping.
type PongReply struct {
	Pong int `json:"pong"`
}

// TicksRequest subscribes to (Subscribe=1) or stops (Subscribe=0) a tick stream.
type TicksRequest struct {
	Ticks     string `json:"ticks"`
	Subscribe int    `json:"subscribe"`
}

// CandlesRequest subscribes to or stops an OHLC stream.
type CandlesRequest struct {
	OHLC        string `json:"ohlc"`
	Granularity int    `json:"granularity,omitempty"`
	Subscribe   int    `json:"subscribe"`
}

// BalanceRequest subscribes to balance updates.
type BalanceRequest struct {
	Balance   int `json:"balance"`
	Subscribe int `json:"subscribe"`
}

// OpenContractsRequest subscribes to status updates for all open contracts.
type OpenContractsRequest struct {
	ProposalOpenContract int `json:"proposal_open_contract"`
	Subscribe            int `json:"subscribe"`
}

// ForgetAllRequest cancels every stream of one type ("balance",
// "proposal_open_contract", ...).
type ForgetAllRequest struct {
	ForgetAll string `json:"forget_all"`
}

// ProposalRequest asks for a quote.
type ProposalRequest struct {
	Proposal     int     `json:"proposal"`
	Amount       float64 `json:"amount"`
	Basis        string  `json:"basis,omitempty"`
	ContractType string  `json:"contract_type"`
	Currency     string  `json:"currency,omitempty"`
	Duration     int     `json:"duration"`
	DurationUnit string  `json:"duration_unit,omitempty"`
	Symbol       string  `json:"symbol"`
	Barrier      string  `json:"barrier,omitempty"`
}

// BuyRequest accepts a proposal at (up to) Price.
type BuyRequest struct {
	Buy   string  `json:"buy"`
	Price float64 `json:"price"`
}

// SellRequest closes an open contract for at least Price.
type SellRequest struct {
	Sell  string  `json:"sell"`
	Price float64 `json:"price"`
}

// NewProposalRequest builds a quote request with the proposal flag set.
func NewProposalRequest(symbol, contractType string, amount float64, duration int, durationUnit string) ProposalRequest {
	return ProposalRequest{
		Proposal:     1,
		Amount:       amount,
		Basis:        "stake",
		ContractType: contractType,
		Duration:     duration,
		DurationUnit: durationUnit,
		Symbol:       symbol,
	}
}
