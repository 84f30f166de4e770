package positions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/deriv-gateway/internal/metrics"
	"github.com/rickgao/deriv-gateway/internal/router"
	"github.com/rickgao/deriv-gateway/internal/wire"
)

const storeTimeout = 5 * time.Second

// SettledFunc is called after a tracked trade's contract settles.
type SettledFunc func(OpenTrade, wire.Contract)

// Option configures a Tracker.
type Option func(*Tracker)

// WithMetrics reports the open trade count.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithSettledHook registers fn to observe settlements.
func WithSettledHook(fn SettledFunc) Option {
	return func(t *Tracker) { t.onSettled = fn }
}

// Tracker holds the set of open trades and retires them on settlement.
type Tracker struct {
	store     Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	onSettled SettledFunc

	queue *router.Handoff[wire.Frame]

	mu   sync.Mutex
	open map[string]OpenTrade

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	ctx       context.Context
	done      chan struct{}
}

// NewTracker creates a tracker over store. A nil store keeps trades in memory.
func NewTracker(store Store, logger *slog.Logger, opts ...Option) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		store:  store,
		logger: logger,
		queue:  router.NewHandoff[wire.Frame](64),
		open:   make(map[string]OpenTrade),
		ctx:    context.Background(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load reads previously persisted trades into the tracker.
func (t *Tracker) Load(ctx context.Context) (int, error) {
	trades, err := t.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load open trades: %w", err)
	}

	t.mu.Lock()
	for _, tr := range trades {
		t.open[tr.ContractID] = tr
	}
	n := len(t.open)
	t.mu.Unlock()

	t.metrics.SetOpenTrades(n)
	return len(trades), nil
}

// Start launches the settlement worker. Store calls made by the worker use
// ctx's values but outlive its cancellation so Close can drain.
func (t *Tracker) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		t.ctx = context.WithoutCancel(ctx)
		t.started.Store(true)
		go t.run()
	})
}

// Close stops accepting frames and waits for queued ones to be processed.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		t.queue.Close()
		if t.started.Load() {
			<-t.done
		}
	})
}

// HandleFrame is a router.Handler for KindOpenContract frames.
func (t *Tracker) HandleFrame(f wire.Frame) {
	if f.Kind != wire.KindOpenContract {
		return
	}
	if !t.queue.Push(f) {
		t.logger.Debug("tracker closed, dropping contract update")
	}
}

// Record persists a newly opened trade and starts tracking it.
func (t *Tracker) Record(ctx context.Context, tr OpenTrade) error {
	if tr.ContractID == "" {
		return fmt.Errorf("record trade %s: missing contract id", tr.ID)
	}
	if err := t.store.Save(ctx, tr); err != nil {
		return err
	}

	t.mu.Lock()
	t.open[tr.ContractID] = tr
	n := len(t.open)
	t.mu.Unlock()

	t.metrics.SetOpenTrades(n)
	t.logger.Info("trade opened",
		"trade_id", tr.ID.String(),
		"contract_id", tr.ContractID,
		"symbol", tr.Symbol,
		"direction", string(tr.Direction),
		"stake", tr.Stake,
	)
	return nil
}

// Get returns the open trade for contractID.
func (t *Tracker) Get(contractID string) (OpenTrade, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.open[contractID]
	return tr, ok
}

// Open returns the open trades ordered by OpenedAt.
func (t *Tracker) Open() []OpenTrade {
	t.mu.Lock()
	out := make([]OpenTrade, 0, len(t.open))
	for _, tr := range t.open {
		out = append(out, tr)
	}
	t.mu.Unlock()

	sortTrades(out)
	return out
}

// Pending returns the number of queued contract updates.
func (t *Tracker) Pending() int {
	return t.queue.Len()
}

func (t *Tracker) run() {
	defer close(t.done)
	t.queue.Drain(t.process)
}

func (t *Tracker) process(f wire.Frame) {
	var c wire.Contract
	if err := f.Decode(&c); err != nil {
		t.logger.Warn("bad contract update", "error", err)
		return
	}
	if !c.Settled() {
		return
	}

	id := string(c.ContractID)
	t.mu.Lock()
	tr, ok := t.open[id]
	delete(t.open, id)
	n := len(t.open)
	t.mu.Unlock()

	if !ok {
		return
	}
	t.metrics.SetOpenTrades(n)

	ctx, cancel := context.WithTimeout(t.ctx, storeTimeout)
	defer cancel()
	if _, err := t.store.Remove(ctx, id); err != nil {
		t.logger.Error("remove settled trade", "contract_id", id, "error", err)
	}

	t.logger.Info("trade settled",
		"trade_id", tr.ID.String(),
		"contract_id", id,
		"status", c.Status,
		"profit", c.Profit.Float64(),
	)
	if t.onSettled != nil {
		t.onSettled(tr, c)
	}
}
