package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/deriv-gateway/internal/auth"
	"github.com/rickgao/deriv-gateway/internal/bridge"
	"github.com/rickgao/deriv-gateway/internal/connection"
	"github.com/rickgao/deriv-gateway/internal/metrics"
	"github.com/rickgao/deriv-gateway/internal/positions"
	"github.com/rickgao/deriv-gateway/internal/quotecache"
	"github.com/rickgao/deriv-gateway/internal/router"
	"github.com/rickgao/deriv-gateway/internal/subscription"
	"github.com/rickgao/deriv-gateway/internal/wire"
)

// Errors
var (
	ErrStakeTooLow     = errors.New("stake below minimum")
	ErrStakeTooHigh    = errors.New("stake above maximum")
	ErrInvalidQuote    = errors.New("invalid quote request")
	ErrMissingProposal = errors.New("proposal id is required")
	ErrMissingContract = errors.New("contract id is required")
)

// Option configures a Session.
type Option func(*Session)

// WithMetrics reports session metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithQuoteStore keeps cached quotes in store instead of process memory.
func WithQuoteStore(store quotecache.Store) Option {
	return func(s *Session) { s.quoteStore = store }
}

// WithTracker records executed trades in t.
func WithTracker(t *positions.Tracker) Option {
	return func(s *Session) { s.tracker = t }
}

// WithClientFactory replaces the WebSocket transport.
func WithClientFactory(f connection.ClientFactory) Option {
	return func(s *Session) { s.clientFactory = f }
}

// WithClock replaces time.Now for quote expiry and trade timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// QuoteRequest describes a quote. Zero Duration and empty DurationUnit take
// the configured defaults.
type QuoteRequest struct {
	Symbol       string
	ContractType string
	Amount       float64
	Duration     int
	DurationUnit string
	Barrier      string
}

// TradeRequest describes a trade to open.
type TradeRequest struct {
	Symbol       string
	Direction    string // buy or sell
	Amount       float64
	Duration     int
	DurationUnit string
	TakeProfit   *float64
	StopLoss     *float64
}

// Session is one authenticated venue session and the services built on it.
type Session struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	quoteStore    quotecache.Store
	clientFactory connection.ClientFactory

	router  *router.Router
	sup     *connection.Supervisor
	subs    *subscription.Registry
	bridge  *bridge.Bridge
	quotes  *quotecache.Cache
	tracker *positions.Tracker
}

// New constructs a session. It does not connect until Start.
func New(cfg Config, tokens auth.TokenSource, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = router.NewRouter(logger.With("component", "router"), s.metrics)

	supOpts := []connection.Option{connection.WithMetrics(s.metrics)}
	if s.clientFactory != nil {
		supOpts = append(supOpts, connection.WithClientFactory(s.clientFactory))
	}
	s.sup = connection.NewSupervisor(cfg.Supervisor, tokens, s.router, logger.With("component", "supervisor"), supOpts...)

	s.subs = subscription.NewRegistry(s.sup, logger.With("component", "subscriptions"), s.metrics)
	s.sup.Track(s.subs)

	s.bridge = bridge.New(cfg.Requests, s.sup, s.router, logger.With("component", "bridge"), s.metrics)

	cacheOpts := []quotecache.Option{
		quotecache.WithClock(s.now),
		quotecache.WithMetrics(s.metrics),
		// Room for queueing behind another call of the same kind.
		quotecache.WithFetchTimeout(2 * cfg.Requests.Timeout),
	}
	if s.quoteStore != nil {
		cacheOpts = append(cacheOpts, quotecache.WithStore(s.quoteStore))
	}
	s.quotes = quotecache.New(cfg.QuoteTTL, logger.With("component", "quotes"), cacheOpts...)

	if s.tracker == nil {
		s.tracker = positions.NewTracker(nil, logger.With("component", "positions"), positions.WithMetrics(s.metrics))
	}
	s.router.On(wire.KindOpenContract, s.tracker.HandleFrame)

	return s
}

// Start begins connecting. Readiness is reported by IsReady; terminal
// failures arrive on Fatal.
func (s *Session) Start(ctx context.Context) error {
	s.tracker.Start(ctx)
	return s.sup.Start(ctx)
}

// Reconnect restarts the venue session after a terminal error, typically
// once a new token is available from the token source.
func (s *Session) Reconnect(ctx context.Context) error {
	return s.sup.Reconnect(ctx)
}

// Disconnect closes the session and stops the position tracker. It must not
// be called from a frame handler.
func (s *Session) Disconnect() {
	s.sup.Disconnect()
	s.tracker.Close()
}

// IsReady reports whether the session is authenticated.
func (s *Session) IsReady() bool {
	return s.sup.IsReady()
}

// State returns the supervisor state.
func (s *Session) State() connection.State {
	return s.sup.State()
}

// Fatal delivers AuthenticationError or ErrReconnectExhausted.
func (s *Session) Fatal() <-chan error {
	return s.sup.Fatal()
}

// Account returns the authorized account, if any.
func (s *Session) Account() (wire.Authorize, bool) {
	return s.sup.Account()
}

// On registers h for frames of kind.
func (s *Session) On(kind wire.Kind, h router.Handler) router.HandlerID {
	return s.router.On(kind, h)
}

// Off removes a handler registered with On.
func (s *Session) Off(kind wire.Kind, id router.HandlerID) bool {
	return s.router.Off(kind, id)
}

// Subscribe starts streaming channel for symbol. Account channels ignore
// symbol.
func (s *Session) Subscribe(ch subscription.Channel, symbol string) error {
	return s.subs.Subscribe(ch, symbol, subscription.Params{})
}

// Unsubscribe stops streaming channel for symbol.
func (s *Session) Unsubscribe(ch subscription.Channel, symbol string) error {
	return s.subs.Unsubscribe(ch, symbol)
}

// SubscribeTicks streams ticks for symbol.
func (s *Session) SubscribeTicks(symbol string) error {
	return s.Subscribe(subscription.ChannelTicks, symbol)
}

// SubscribeCandles streams candles of the given width in seconds.
func (s *Session) SubscribeCandles(symbol string, granularity int) error {
	return s.subs.Subscribe(subscription.ChannelCandles, symbol, subscription.Params{Granularity: granularity})
}

// SubscribeBalance streams account balance updates.
func (s *Session) SubscribeBalance() error {
	return s.Subscribe(subscription.ChannelBalance, "")
}

// SubscribeOpenContracts streams updates for every open contract, which
// the position tracker uses to retire settled trades.
func (s *Session) SubscribeOpenContracts() error {
	return s.Subscribe(subscription.ChannelOpenContracts, "")
}

// Subscriptions returns the tracked subscription keys.
func (s *Session) Subscriptions() []subscription.Key {
	return s.subs.Active()
}

// Stats is a point-in-time view of the session.
type Stats struct {
	State         connection.State
	Router        router.Stats
	Subscriptions int
	StaleSubs     int
	OpenTrades    int
}

// Stats returns current statistics.
func (s *Session) Stats() Stats {
	return Stats{
		State:         s.sup.State(),
		Router:        s.router.Stats(),
		Subscriptions: s.subs.Len(),
		StaleSubs:     len(s.subs.Stale()),
		OpenTrades:    len(s.tracker.Open()),
	}
}

// OpenTrades returns trades opened and not yet settled.
func (s *Session) OpenTrades() []positions.OpenTrade {
	return s.tracker.Open()
}

// RequestQuote returns a quote, from the cache when an identical request was
// answered within the TTL.
func (s *Session) RequestQuote(ctx context.Context, q QuoteRequest) (wire.Proposal, error) {
	q, err := s.normalizeQuote(q)
	if err != nil {
		return wire.Proposal{}, err
	}

	return s.quotes.Get(ctx, fingerprint(q), func(ctx context.Context) (wire.Proposal, error) {
		req := wire.NewProposalRequest(q.Symbol, q.ContractType, q.Amount, q.Duration, q.DurationUnit)
		req.Currency = s.cfg.Limits.Currency
		req.Barrier = q.Barrier
		return bridge.Do[wire.Proposal](ctx, s.bridge, req, wire.KindProposal, 0)
	})
}

// PlaceOrder buys proposalID at up to price.
func (s *Session) PlaceOrder(ctx context.Context, proposalID string, price float64) (wire.BuyReceipt, error) {
	if strings.TrimSpace(proposalID) == "" {
		return wire.BuyReceipt{}, ErrMissingProposal
	}
	return bridge.Do[wire.BuyReceipt](ctx, s.bridge, wire.BuyRequest{Buy: proposalID, Price: price}, wire.KindBuy, 0)
}

// SellContract closes contractID early for at least price. A price of 0
// sells at market.
func (s *Session) SellContract(ctx context.Context, contractID string, price float64) (wire.SellReceipt, error) {
	if strings.TrimSpace(contractID) == "" {
		return wire.SellReceipt{}, ErrMissingContract
	}
	return bridge.Do[wire.SellReceipt](ctx, s.bridge, wire.SellRequest{Sell: contractID, Price: price}, wire.KindSell, 0)
}

// ExecuteTrade validates req, quotes it, buys at the quoted ask price and
// records the resulting position. A trade that was bought but could not be
// recorded is returned together with the error.
func (s *Session) ExecuteTrade(ctx context.Context, req TradeRequest) (positions.OpenTrade, error) {
	if err := s.checkStake(req.Amount); err != nil {
		return positions.OpenTrade{}, err
	}
	dir, err := positions.ParseDirection(req.Direction)
	if err != nil {
		return positions.OpenTrade{}, err
	}

	q := QuoteRequest{
		Symbol:       req.Symbol,
		ContractType: dir.ContractType(),
		Amount:       req.Amount,
		Duration:     req.Duration,
		DurationUnit: req.DurationUnit,
	}
	q, err = s.normalizeQuote(q)
	if err != nil {
		return positions.OpenTrade{}, err
	}

	proposal, err := s.RequestQuote(ctx, q)
	if err != nil {
		return positions.OpenTrade{}, fmt.Errorf("quote %s: %w", q.Symbol, err)
	}

	// A proposal can be bought once.
	if err := s.quotes.Invalidate(ctx, fingerprint(q)); err != nil {
		s.logger.Warn("invalidate quote", "symbol", q.Symbol, "error", err)
	}

	receipt, err := s.PlaceOrder(ctx, proposal.ID, proposal.AskPrice.Float64())
	if err != nil {
		return positions.OpenTrade{}, fmt.Errorf("buy %s: %w", proposal.ID, err)
	}

	trade := positions.NewOpenTrade(q.Symbol, dir, req.Amount, proposal.ID, receipt, s.now())
	trade.TakeProfit = req.TakeProfit
	trade.StopLoss = req.StopLoss

	recordErr := s.tracker.Record(ctx, trade)
	if err := s.SubscribeOpenContracts(); err != nil {
		s.logger.Warn("subscribe open contracts", "error", err)
	}
	if recordErr != nil {
		return trade, fmt.Errorf("record trade %s: %w", trade.ContractID, recordErr)
	}
	return trade, nil
}

func (s *Session) checkStake(amount float64) error {
	lim := s.cfg.Limits
	if lim.MinStake > 0 && amount < lim.MinStake {
		return fmt.Errorf("%w: %g < %g", ErrStakeTooLow, amount, lim.MinStake)
	}
	if lim.MaxStake > 0 && amount > lim.MaxStake {
		return fmt.Errorf("%w: %g > %g", ErrStakeTooHigh, amount, lim.MaxStake)
	}
	return nil
}

func (s *Session) normalizeQuote(q QuoteRequest) (QuoteRequest, error) {
	q.Symbol = strings.TrimSpace(q.Symbol)
	q.ContractType = strings.ToUpper(strings.TrimSpace(q.ContractType))
	if q.Symbol == "" {
		return q, fmt.Errorf("%w: symbol is required", ErrInvalidQuote)
	}
	if q.ContractType == "" {
		return q, fmt.Errorf("%w: contract type is required", ErrInvalidQuote)
	}
	if q.Amount <= 0 {
		return q, fmt.Errorf("%w: amount must be positive", ErrInvalidQuote)
	}
	if q.Duration <= 0 {
		q.Duration = s.cfg.Limits.DefaultDuration
	}
	if q.Duration <= 0 {
		return q, fmt.Errorf("%w: duration must be positive", ErrInvalidQuote)
	}
	if q.DurationUnit == "" {
		q.DurationUnit = s.cfg.Limits.DurationUnit
	}
	return q, nil
}

func fingerprint(q QuoteRequest) quotecache.Fingerprint {
	return quotecache.Fingerprint{
		Symbol:       q.Symbol,
		ContractType: q.ContractType,
		Amount:       q.Amount,
		Duration:     q.Duration,
		DurationUnit: q.DurationUnit,
		Barrier:      q.Barrier,
	}
}
