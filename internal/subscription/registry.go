package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/rickgao/deriv-gateway/internal/connection"
	"github.com/rickgao/deriv-gateway/internal/metrics"
	"github.com/rickgao/deriv-gateway/internal/wire"
)

// Channel is a streamed data category.
type Channel string

const (
	ChannelTicks         Channel = "ticks"
	ChannelCandles       Channel = "candles"
	ChannelBalance       Channel = "balance"
	ChannelOpenContracts Channel = "open_contracts"
)

// DefaultGranularity is the candle width in seconds when none is given.
const DefaultGranularity = 60

// Errors
var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrMissingSymbol  = errors.New("symbol is required")
)

// ParseChannel converts a channel name.
func ParseChannel(s string) (Channel, error) {
	switch ch := Channel(strings.ToLower(strings.TrimSpace(s))); ch {
	case ChannelTicks, ChannelCandles, ChannelBalance, ChannelOpenContracts:
		return ch, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
	}
}

// perSymbol reports whether the channel is keyed by symbol. Account channels
// are not.
func (c Channel) perSymbol() bool {
	return c == ChannelTicks || c == ChannelCandles
}

// Key identifies one subscription.
type Key struct {
	Channel Channel
	Symbol  string
}

func (k Key) String() string {
	if k.Symbol == "" {
		return string(k.Channel)
	}
	return string(k.Channel) + ":" + k.Symbol
}

// Params are per-subscription options.
type Params struct {
	Granularity int // candle width in seconds
}

// Sender writes a frame to the venue.
type Sender interface {
	Send(frame any) error
}

type entry struct {
	params Params
	stale  bool
}

// Registry tracks subscriptions and their wire state.
type Registry struct {
	sender  Sender
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	entries map[Key]*entry
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(sender Sender, logger *slog.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sender:  sender,
		logger:  logger,
		metrics: m,
		entries: make(map[Key]*entry),
	}
}

// NewKey validates and normalizes a channel/symbol pair.
func NewKey(ch Channel, symbol string) (Key, error) {
	ch, err := ParseChannel(string(ch))
	if err != nil {
		return Key{}, err
	}
	symbol = strings.TrimSpace(symbol)
	if !ch.perSymbol() {
		return Key{Channel: ch}, nil
	}
	if symbol == "" {
		return Key{}, fmt.Errorf("%w for %s", ErrMissingSymbol, ch)
	}
	return Key{Channel: ch, Symbol: symbol}, nil
}

// Subscribe starts a stream. Repeating a tracked key is a no-op. When the
// session is not Ready the key is queued and sent on the next Ready.
func (r *Registry) Subscribe(ch Channel, symbol string, p Params) error {
	key, err := NewKey(ch, symbol)
	if err != nil {
		return err
	}
	if key.Channel == ChannelCandles && p.Granularity <= 0 {
		p.Granularity = DefaultGranularity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; ok {
		return nil
	}

	e := &entry{params: p}
	r.entries[key] = e
	r.metrics.SetSubscriptions(len(r.entries))

	if err := r.sender.Send(subscribeFrame(key, p)); err != nil {
		e.stale = true
		if errors.Is(err, connection.ErrNotReady) {
			r.logger.Info("subscription queued until ready", "key", key.String())
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", key, err)
	}

	r.logger.Debug("subscribed", "key", key.String())
	return nil
}

// Unsubscribe stops a stream. The key is forgotten whether or not the
// unsubscribe frame could be sent; nothing is sent for a key that is not
// active on the current connection.
func (r *Registry) Unsubscribe(ch Channel, symbol string) error {
	key, err := NewKey(ch, symbol)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return nil
	}
	delete(r.entries, key)
	r.metrics.SetSubscriptions(len(r.entries))

	if e.stale {
		return nil
	}
	if err := r.sender.Send(unsubscribeFrame(key)); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", key, err)
	}

	r.logger.Debug("unsubscribed", "key", key.String())
	return nil
}

// MarkStale flags every key for replay. Called when the connection is lost.
func (r *Registry) MarkStale() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		e.stale = true
	}
}

// Replay resends every stale key once and clears its flag. It stops at the
// first failure; the remaining keys stay stale for the next Ready.
func (r *Registry) Replay() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sent := 0
	for _, key := range r.sortedKeys() {
		e := r.entries[key]
		if !e.stale {
			continue
		}
		if err := r.sender.Send(subscribeFrame(key, e.params)); err != nil {
			r.logger.Warn("replay interrupted",
				"key", key.String(),
				"sent", sent,
				"error", err,
			)
			break
		}
		e.stale = false
		sent++
	}

	if sent > 0 {
		r.logger.Info("subscriptions replayed", "count", sent)
	}
	return sent
}

// Active returns the keys whose subscribe frame is live on the current
// connection.
func (r *Registry) Active() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]Key, 0, len(r.entries))
	for _, key := range r.sortedKeys() {
		if !r.entries[key].stale {
			keys = append(keys, key)
		}
	}
	return keys
}

// Stale returns the keys waiting for replay.
func (r *Registry) Stale() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keys []Key
	for _, key := range r.sortedKeys() {
		if r.entries[key].stale {
			keys = append(keys, key)
		}
	}
	return keys
}

// Len returns the number of tracked keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// sortedKeys returns keys in a stable order. Must be called with lock held.
func (r *Registry) sortedKeys() []Key {
	keys := make([]Key, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Channel != keys[j].Channel {
			return keys[i].Channel < keys[j].Channel
		}
		return keys[i].Symbol < keys[j].Symbol
	})
	return keys
}

func subscribeFrame(key Key, p Params) any {
	switch key.Channel {
	case ChannelTicks:
		return wire.TicksRequest{Ticks: key.Symbol, Subscribe: 1}
	case ChannelCandles:
		return wire.CandlesRequest{OHLC: key.Symbol, Granularity: p.Granularity, Subscribe: 1}
	case ChannelBalance:
		return wire.BalanceRequest{Balance: 1, Subscribe: 1}
	default:
		return wire.OpenContractsRequest{ProposalOpenContract: 1, Subscribe: 1}
	}
}

func unsubscribeFrame(key Key) any {
	switch key.Channel {
	case ChannelTicks:
		return wire.TicksRequest{Ticks: key.Symbol, Subscribe: 0}
	case ChannelCandles:
		return wire.CandlesRequest{OHLC: key.Symbol, Subscribe: 0}
	case ChannelBalance:
		return wire.ForgetAllRequest{ForgetAll: wire.KindBalance.Field()}
	default:
		return wire.ForgetAllRequest{ForgetAll: wire.KindOpenContract.Field()}
	}
}
