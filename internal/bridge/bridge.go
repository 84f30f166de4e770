package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/deriv-gateway/internal/metrics"
	"github.com/rickgao/deriv-gateway/internal/router"
	"github.com/rickgao/deriv-gateway/internal/wire"
)

// Errors
var (
	ErrTimeout     = errors.New("request timed out")
	ErrInvalidKind = errors.New("kind cannot be awaited")
)

// Sender writes a frame to the venue.
type Sender interface {
	Send(frame any) error
}

// Config configures a Bridge.
type Config struct {
	Timeout       time.Duration // used when Call is given no timeout
	RatePerSecond float64       // 0 disables rate limiting
	Burst         int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		RatePerSecond: 5,
		Burst:         5,
	}
}

// Bridge turns fire-and-forget requests into calls with a single answer.
type Bridge struct {
	cfg     Config
	sender  Sender
	router  *router.Router
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	locks map[wire.Kind]chan struct{}
}

// New creates a bridge that sends through sender and listens on r.
func New(cfg Config, sender Sender, r *router.Router, logger *slog.Logger, m *metrics.Metrics) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	b := &Bridge{
		cfg:     cfg,
		sender:  sender,
		router:  r,
		logger:  logger,
		metrics: m,
		locks:   make(map[wire.Kind]chan struct{}),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return b
}

type result struct {
	frame wire.Frame
	err   error
}

// Call sends req and waits for the first frame of kind expect, or an error
// frame for it. A venue error is returned as *wire.APIError. The timeout
// starts when the request is written; zero means the configured default.
func (b *Bridge) Call(ctx context.Context, req any, expect wire.Kind, timeout time.Duration) (wire.Frame, error) {
	switch expect {
	case wire.KindUnknown, wire.KindError, wire.KindPing:
		return wire.Frame{}, fmt.Errorf("%w: %s", ErrInvalidKind, expect)
	}
	if !expect.Valid() {
		return wire.Frame{}, fmt.Errorf("%w: %s", ErrInvalidKind, expect)
	}
	if timeout <= 0 {
		timeout = b.cfg.Timeout
	}

	// One call per kind at a time: responses carry nothing to correlate on.
	sem := b.lock(expect)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return wire.Frame{}, ctx.Err()
	}
	defer func() { <-sem }()

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return wire.Frame{}, err
		}
	}

	done := make(chan result, 1)
	var once sync.Once
	complete := func(r result) {
		once.Do(func() { done <- r })
	}

	okID := b.router.On(expect, func(f wire.Frame) {
		complete(result{frame: f})
	})
	errID := b.router.On(wire.KindError, func(f wire.Frame) {
		if f.MsgType != "" && f.MsgType != expect.Field() {
			return
		}
		apiErr := f.Err
		if apiErr == nil {
			apiErr = &wire.APIError{Code: "Unknown", Message: "error frame without details", MsgType: f.MsgType}
		}
		complete(result{frame: f, err: apiErr})
	})
	defer func() {
		b.router.Off(expect, okID)
		b.router.Off(wire.KindError, errID)
	}()

	start := time.Now()
	if err := b.sender.Send(req); err != nil {
		b.observe(expect, "send_error", start)
		return wire.Frame{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			b.observe(expect, "remote_error", start)
			return r.frame, r.err
		}
		b.observe(expect, "ok", start)
		return r.frame, nil

	case <-timer.C:
		b.observe(expect, "timeout", start)
		b.logger.Warn("call timed out", "kind", expect.String(), "timeout", timeout)
		return wire.Frame{}, fmt.Errorf("%w: no %s response within %s", ErrTimeout, expect, timeout)

	case <-ctx.Done():
		b.observe(expect, "canceled", start)
		return wire.Frame{}, ctx.Err()
	}
}

// Do is Call followed by decoding the response payload into T.
func Do[T any](ctx context.Context, b *Bridge, req any, expect wire.Kind, timeout time.Duration) (T, error) {
	var out T
	f, err := b.Call(ctx, req, expect, timeout)
	if err != nil {
		return out, err
	}
	if err := f.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func (b *Bridge) lock(kind wire.Kind) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	sem, ok := b.locks[kind]
	if !ok {
		sem = make(chan struct{}, 1)
		b.locks[kind] = sem
	}
	return sem
}

func (b *Bridge) observe(kind wire.Kind, outcome string, start time.Time) {
	b.metrics.CallObserved(kind.String(), outcome, time.Since(start))
}
