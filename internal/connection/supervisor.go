package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/deriv-gateway/internal/auth"
	"github.com/rickgao/deriv-gateway/internal/metrics"
	"github.com/rickgao/deriv-gateway/internal/router"
	"github.com/rickgao/deriv-gateway/internal/wire"
)

// Resubscriber is notified of connection loss and recovery so that
// subscriptions survive a reconnect.
type Resubscriber interface {
	// MarkStale flags every tracked subscription for replay.
	MarkStale()
	// Replay resends every stale subscription and returns how many were sent.
	Replay() int
}

// ClientFactory creates the transport for one connection attempt.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithClientFactory replaces NewClient.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Supervisor) {
		s.newClient = f
	}
}

// Supervisor owns the single venue session.
type Supervisor struct {
	cfg       SupervisorConfig
	tokens    auth.TokenSource
	router    *router.Router
	logger    *slog.Logger
	metrics   *metrics.Metrics
	newClient ClientFactory

	mu      sync.RWMutex
	state   State
	client  Client
	account *wire.Authorize
	subs    Resubscriber
	started bool
	running bool
	closed  bool
	cancel  context.CancelFunc

	fatal     chan error
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSupervisor creates a supervisor in the Disconnected state. Frames are
// dispatched through r; a nil r gets a private router.
func NewSupervisor(cfg SupervisorConfig, tokens auth.TokenSource, r *router.Router, logger *slog.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultSupervisorConfig()
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = def.AuthTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if tokens == nil {
		tokens = auth.StaticToken("")
	}

	s := &Supervisor{
		cfg:       cfg,
		tokens:    tokens,
		router:    r,
		logger:    logger,
		newClient: NewClient,
		state:     StateDisconnected,
		fatal:     make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.router == nil {
		s.router = router.NewRouter(logger, s.metrics)
	}
	s.metrics.SetState(StateDisconnected.String())
	return s
}

// Track registers the subscription registry. Must be called before Start.
func (s *Supervisor) Track(r Resubscriber) {
	s.mu.Lock()
	s.subs = r
	s.mu.Unlock()
}

// Start launches the supervisor goroutine. It returns immediately; use
// IsReady, the router's authorize handlers, or Fatal to follow progress.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrAlreadyClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.launchLocked(ctx)
	s.mu.Unlock()

	return nil
}

// Reconnect restarts a session that stopped on a terminal error, for
// example after a new token was supplied. It is only valid in the
// Disconnected state after Start; the reconnect counter starts from zero and
// any undelivered terminal error is discarded.
func (s *Supervisor) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return ErrAlreadyClosed
	case !s.started:
		return ErrNotStarted
	case s.running || s.state != StateDisconnected:
		return ErrSessionActive
	}

	select {
	case <-s.fatal:
	default:
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.launchLocked(ctx)
	s.logger.Info("session restarting")
	return nil
}

// launchLocked starts a fresh event loop. s.mu must be held.
func (s *Supervisor) launchLocked(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.wg.Add(1)
	go s.run(ctx)
}

// Disconnect closes the session for good. It is idempotent and must not be
// called from a router handler.
func (s *Supervisor) Disconnect() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		s.wg.Wait()

		s.setState(StateClosed)
		s.logger.Info("session closed")
	})
}

// Send marshals frame and writes it to the venue. It fails fast with
// ErrNotReady unless the session is Ready.
func (s *Supervisor) Send(frame any) error {
	s.mu.RLock()
	state := s.state
	client := s.client
	s.mu.RUnlock()

	if state != StateReady || client == nil {
		s.logger.Warn("send while not ready", "state", state.String())
		return ErrNotReady
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return client.Send(data)
}

// IsReady reports whether the session is authenticated and usable.
func (s *Supervisor) IsReady() bool {
	return s.State() == StateReady
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Account returns the most recent authorize payload, if any.
func (s *Supervisor) Account() (wire.Authorize, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return wire.Authorize{}, false
	}
	return *s.account, true
}

// Fatal delivers at most one terminal error per run: an *AuthenticationError
// or an error wrapping ErrReconnectExhausted. Reconnect starts a new run.
func (s *Supervisor) Fatal() <-chan error {
	return s.fatal
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	prev := s.state
	if prev == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	if prev != state {
		s.metrics.SetState(state.String())
		s.logger.Debug("session state", "from", prev.String(), "to", state.String())
	}
}

func (s *Supervisor) resubscriber() Resubscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subs
}

// fail ends the current run: the state drops to Disconnected and err is
// published on Fatal in one step, so Reconnect never observes one without the
// other.
func (s *Supervisor) fail(err error) {
	s.mu.Lock()
	prev := s.state
	if prev != StateClosed {
		s.state = StateDisconnected
	}
	s.running = false
	select {
	case s.fatal <- err:
	default:
	}
	s.mu.Unlock()

	if prev != StateClosed && prev != StateDisconnected {
		s.metrics.SetState(StateDisconnected.String())
		s.logger.Debug("session state", "from", prev.String(), "to", StateDisconnected.String())
	}
}

// run is the supervisor event loop: one session at a time, with backoff
// between failed sessions.
func (s *Supervisor) run(ctx context.Context) {
	defer s.wg.Done()

	attempt := 0
	for {
		err := s.session(ctx, &attempt)
		if ctx.Err() != nil {
			s.stopped()
			return
		}

		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			s.logger.Error("authentication failed", "error", err)
			s.fail(err)
			return
		}

		s.setState(StateReconnecting)
		if subs := s.resubscriber(); subs != nil {
			subs.MarkStale()
		}

		attempt++
		if attempt > s.cfg.MaxReconnectAttempts {
			s.logger.Error("reconnect attempts exhausted",
				"attempts", attempt-1,
				"error", err,
			)
			s.fail(fmt.Errorf("%w: %w", ErrReconnectExhausted, err))
			return
		}

		delay := Backoff(s.cfg.ReconnectBaseDelay, attempt)
		s.metrics.ReconnectAttempted()
		s.logger.Warn("connection lost, reconnecting",
			"attempt", attempt,
			"max_attempts", s.cfg.MaxReconnectAttempts,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.stopped()
			return
		case <-timer.C:
		}
	}
}

// stopped marks a run that ended because its context was canceled.
func (s *Supervisor) stopped() {
	s.setState(StateDisconnected)
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// session runs one connection from dial to failure. It always returns a
// non-nil error.
func (s *Supervisor) session(ctx context.Context, attempt *int) error {
	s.setState(StateConnecting)

	connID := uuid.NewString()
	logger := s.logger.With("conn_id", connID)

	client := s.newClient(s.cfg.Client, logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.client = nil
		s.mu.Unlock()
		client.Close()
	}()

	s.setState(StateAuthenticating)

	token, ok := s.tokens.Token()
	if !ok {
		return &AuthenticationError{Err: ErrMissingToken}
	}
	if err := s.write(client, wire.AuthorizeRequest{Authorize: token}); err != nil {
		return err
	}

	ls := &liveSession{
		client:    client,
		logger:    logger,
		attempt:   attempt,
		authTimer: time.NewTimer(s.cfg.AuthTimeout),
	}
	ls.authDeadline = ls.authTimer.C
	defer ls.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-client.Errors():
			// Frames read before the failure are still delivered.
			if derr := s.drain(ls); derr != nil {
				return derr
			}
			return &ConnectionError{Op: "read", Err: err}

		case <-ls.authDeadline:
			return &ConnectionError{Op: "authorize", Err: ErrAuthTimeout}

		case <-ls.pings:
			if err := s.write(client, wire.PingRequest{Ping: 1}); err != nil {
				logger.Warn("keepalive ping failed", "error", err)
			}

		case msg := <-client.Messages():
			if err := s.handle(ls, msg); err != nil {
				return err
			}
		}
	}
}

// liveSession is the per-connection state of the event loop.
type liveSession struct {
	client  Client
	logger  *slog.Logger
	attempt *int

	authTimer    *time.Timer
	authDeadline <-chan time.Time
	ticker       *time.Ticker
	pings        <-chan time.Time
}

func (ls *liveSession) stop() {
	ls.authTimer.Stop()
	if ls.ticker != nil {
		ls.ticker.Stop()
	}
}

// handle classifies and dispatches one inbound frame, applying lifecycle
// transitions first. A non-nil error ends the session.
func (s *Supervisor) handle(ls *liveSession, msg TimestampedMessage) error {
	f, err := wire.Classify(msg.Data, msg.ReceivedAt)
	if err != nil {
		ls.logger.Warn("dropping malformed frame", "error", err, "size", len(msg.Data))
		return nil
	}

	switch f.Kind {
	case wire.KindPing:
		if err := s.write(ls.client, wire.PongReply{Pong: 1}); err != nil {
			ls.logger.Warn("pong reply failed", "error", err)
		}

	case wire.KindAuthorize:
		var acct wire.Authorize
		if err := f.Decode(&acct); err != nil {
			ls.logger.Warn("bad authorize payload", "error", err)
		}
		s.mu.Lock()
		s.account = &acct
		s.mu.Unlock()

		if s.State() == StateAuthenticating {
			s.ready(ls, acct)
		}

	case wire.KindError:
		if s.State() == StateAuthenticating && (f.MsgType == "" || f.MsgType == wire.KindAuthorize.Field()) {
			s.router.Dispatch(f)
			var cause error = errors.New("authorize rejected")
			if f.Err != nil {
				cause = f.Err
			}
			return &AuthenticationError{Err: cause}
		}
	}

	s.router.Dispatch(f)
	return nil
}

// ready completes the handshake: keepalive starts, the reconnect counter
// resets and stale subscriptions are replayed.
func (s *Supervisor) ready(ls *liveSession, acct wire.Authorize) {
	ls.authTimer.Stop()
	ls.authDeadline = nil
	*ls.attempt = 0

	s.setState(StateReady)
	ls.ticker = time.NewTicker(s.cfg.PingInterval)
	ls.pings = ls.ticker.C

	replayed := 0
	if subs := s.resubscriber(); subs != nil {
		replayed = subs.Replay()
	}
	ls.logger.Info("session ready",
		"loginid", acct.LoginID,
		"currency", acct.Currency,
		"replayed", replayed,
	)
}

// drain handles frames that were buffered before the transport failed.
func (s *Supervisor) drain(ls *liveSession) error {
	for {
		select {
		case msg := <-ls.client.Messages():
			if err := s.handle(ls, msg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *Supervisor) write(client Client, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return client.Send(data)
}
