package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deriv_gateway"

// Metrics holds the gateway's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	sessionState  *prometheus.GaugeVec
	reconnects    prometheus.Counter
	frames        *prometheus.CounterVec
	panics        *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	quoteLookups  *prometheus.CounterVec
	subscriptions prometheus.Gauge
	openTrades    prometheus.Gauge
}

// New creates a Metrics with its own registry, including go_* and process_*
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current session state (1 for the active state)",
		}, []string{"state"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Number of reconnect attempts",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Inbound frames dispatched, by kind",
		}, []string{"kind"}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Handler panics recovered by the router, by kind",
		}, []string{"kind"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Request/response call latency",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"kind", "outcome"}),
		quoteLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_lookups_total",
			Help:      "Quote cache lookups, by result",
		}, []string{"result"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Number of registered subscriptions",
		}),
		openTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_trades",
			Help:      "Number of tracked open trades",
		}),
	}

	m.registry.MustRegister(
		m.sessionState,
		m.reconnects,
		m.frames,
		m.panics,
		m.callDuration,
		m.quoteLookups,
		m.subscriptions,
		m.openTrades,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetState marks state as the current session state.
func (m *Metrics) SetState(state string) {
	if m == nil {
		return
	}
	m.sessionState.Reset()
	m.sessionState.WithLabelValues(state).Set(1)
}

// ReconnectAttempted counts one reconnect attempt.
func (m *Metrics) ReconnectAttempted() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// FrameDispatched counts one inbound frame of kind.
func (m *Metrics) FrameDispatched(kind string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(kind).Inc()
}

// HandlerPanicked counts one recovered handler panic.
func (m *Metrics) HandlerPanicked(kind string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(kind).Inc()
}

// CallObserved records the latency of one request/response call.
func (m *Metrics) CallObserved(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.callDuration.WithLabelValues(kind, outcome).Observe(d.Seconds())
}

// QuoteLookup counts one quote cache lookup; result is "hit" or "miss".
func (m *Metrics) QuoteLookup(result string) {
	if m == nil {
		return
	}
	m.quoteLookups.WithLabelValues(result).Inc()
}

// SetSubscriptions records the number of registered subscriptions.
func (m *Metrics) SetSubscriptions(n int) {
	if m == nil {
		return
	}
	m.subscriptions.Set(float64(n))
}

// SetOpenTrades records the number of tracked open trades.
func (m *Metrics) SetOpenTrades(n int) {
	if m == nil {
		return
	}
	m.openTrades.Set(float64(n))
}
