package quotecache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/deriv-gateway/internal/metrics"
	"github.com/rickgao/deriv-gateway/internal/wire"
)

const (
	// DefaultTTL is how long a quote stays fresh.
	DefaultTTL = 30 * time.Second
	// DefaultFetchTimeout bounds a shared venue fetch.
	DefaultFetchTimeout = 30 * time.Second
)

// Factory fetches a quote from the venue on a cache miss.
type Factory func(ctx context.Context) (wire.Proposal, error)

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithStore replaces the default MemoryStore.
func WithStore(s Store) Option {
	return func(c *Cache) {
		c.store = s
	}
}

// WithFetchTimeout bounds each factory call. The factory runs detached from
// any single caller's cancellation, so this is its only deadline.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// Cache is a TTL cache of quotes.
type Cache struct {
	ttl          time.Duration
	fetchTimeout time.Duration
	store        Store
	now          func() time.Time
	logger       *slog.Logger
	metrics      *metrics.Metrics
	group        singleflight.Group

	pruneMu   sync.Mutex
	lastPrune time.Time
}

// pruner is implemented by stores that keep expired entries until asked to
// drop them.
type pruner interface {
	Prune(cutoff time.Time) int
}

// New creates a cache. A non-positive ttl uses DefaultTTL.
func New(ttl time.Duration, logger *slog.Logger, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		ttl:          ttl,
		fetchTimeout: DefaultFetchTimeout,
		store:        NewMemoryStore(),
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a fresh cached quote for fp, or calls factory and stores its
// result. Errors from factory are returned and not cached. Store failures
// are logged and treated as misses.
//
// Concurrent misses for one key share a single factory call. That call runs
// without the callers' cancellation, bounded by the fetch timeout; a caller
// whose ctx ends stops waiting and gets ctx.Err() while the others still
// receive the shared result.
func (c *Cache) Get(ctx context.Context, fp Fingerprint, factory Factory) (wire.Proposal, error) {
	key := fp.Key()

	if p, ok := c.lookup(ctx, key); ok {
		c.metrics.QuoteLookup("hit")
		return p, nil
	}
	c.metrics.QuoteLookup("miss")
	c.prune()

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(detached, c.fetchTimeout)
		defer cancel()

		// Another caller may have filled the key while we waited.
		if p, ok := c.lookup(fetchCtx, key); ok {
			return p, nil
		}

		p, err := factory(fetchCtx)
		if err != nil {
			return wire.Proposal{}, err
		}

		entry := Entry{Proposal: p, StoredAt: c.now()}
		if err := c.store.Set(fetchCtx, key, entry, c.ttl); err != nil {
			c.logger.Warn("quote cache store failed", "key", key, "error", err)
		}
		return p, nil
	})

	select {
	case <-ctx.Done():
		return wire.Proposal{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return wire.Proposal{}, res.Err
		}
		if res.Shared {
			c.logger.Debug("quote request shared", "key", key)
		}
		return res.Val.(wire.Proposal), nil
	}
}

// Invalidate drops the entry for fp, e.g. after the venue rejects a buy at
// the cached price.
func (c *Cache) Invalidate(ctx context.Context, fp Fingerprint) error {
	return c.store.Delete(ctx, fp.Key())
}

func (c *Cache) lookup(ctx context.Context, key string) (wire.Proposal, bool) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("quote cache lookup failed", "key", key, "error", err)
		return wire.Proposal{}, false
	}
	if !ok {
		return wire.Proposal{}, false
	}
	if c.now().Sub(e.StoredAt) >= c.ttl {
		return wire.Proposal{}, false
	}
	return e.Proposal, true
}

// prune drops expired entries from stores that do not expire them on their
// own, at most once per TTL.
func (c *Cache) prune() {
	p, ok := c.store.(pruner)
	if !ok {
		return
	}

	now := c.now()
	c.pruneMu.Lock()
	if now.Sub(c.lastPrune) < c.ttl {
		c.pruneMu.Unlock()
		return
	}
	c.lastPrune = now
	c.pruneMu.Unlock()

	if n := p.Prune(now.Add(-c.ttl)); n > 0 {
		c.logger.Debug("pruned expired quotes", "count", n)
	}
}
