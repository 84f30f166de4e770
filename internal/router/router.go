package router

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/deriv-gateway/internal/metrics"
	"github.com/rickgao/deriv-gateway/internal/wire"
)

// Handler observes one frame.
type Handler func(wire.Frame)

// HandlerID identifies a registration so it can be removed with Off.
type HandlerID uint64

// Stats contains runtime statistics.
type Stats struct {
	Dispatched    int64
	Unhandled     int64
	HandlerPanics int64
}

type registration struct {
	id HandlerID
	fn Handler
}

// Router fans inbound frames out to registered handlers.
type Router struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	handlers map[wire.Kind][]registration

	nextID atomic.Uint64

	dispatched atomic.Int64
	unhandled  atomic.Int64
	panics     atomic.Int64
}

// NewRouter creates an empty router. m may be nil.
func NewRouter(logger *slog.Logger, m *metrics.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:   logger,
		metrics:  m,
		handlers: make(map[wire.Kind][]registration),
	}
}

// On appends h to the handlers for kind.
func (r *Router) On(kind wire.Kind, h Handler) HandlerID {
	id := HandlerID(r.nextID.Add(1))

	r.mu.Lock()
	r.handlers[kind] = append(r.handlers[kind], registration{id: id, fn: h})
	r.mu.Unlock()

	return id
}

// Off removes the handler registered under id for kind. It reports whether a
// handler was removed.
func (r *Router) Off(kind wire.Kind, id HandlerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.handlers[kind]
	for i, reg := range regs {
		if reg.id != id {
			continue
		}
		// Copy so that a dispatch pass holding the old slice is unaffected.
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(r.handlers, kind)
		} else {
			r.handlers[kind] = next
		}
		return true
	}
	return false
}

// Count returns the number of handlers registered for kind.
func (r *Router) Count(kind wire.Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind])
}

// Dispatch delivers f to every handler registered for f.Kind.
func (r *Router) Dispatch(f wire.Frame) {
	r.mu.RLock()
	regs := r.handlers[f.Kind]
	r.mu.RUnlock()

	r.dispatched.Add(1)
	r.metrics.FrameDispatched(f.Kind.String())

	if len(regs) == 0 {
		r.unhandled.Add(1)
		if f.Kind == wire.KindUnknown {
			r.logger.Debug("unhandled frame", "msg_type", f.MsgType)
		}
		return
	}

	for _, reg := range regs {
		r.invoke(f, reg)
	}
}

// invoke runs a single handler, containing any panic.
func (r *Router) invoke(f wire.Frame, reg registration) {
	defer func() {
		if p := recover(); p != nil {
			r.panics.Add(1)
			r.metrics.HandlerPanicked(f.Kind.String())
			r.logger.Error("handler panicked",
				"kind", f.Kind.String(),
				"handler", uint64(reg.id),
				"panic", fmt.Sprint(p),
			)
		}
	}()
	reg.fn(f)
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	return Stats{
		Dispatched:    r.dispatched.Load(),
		Unhandled:     r.unhandled.Load(),
		HandlerPanics: r.panics.Load(),
	}
}
