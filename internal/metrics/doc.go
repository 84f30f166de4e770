// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Session state and reconnect attempts
//   - Inbound frames by kind and handler panics
//   - Request/response call latency by kind and outcome
//   - Quote cache hits and misses
//   - Active subscriptions and open trades
//
// All methods are safe to call on a nil *Metrics, so packages can accept an
// optional collector without guarding every call site.
package metrics
