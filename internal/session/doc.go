// Package session is the collaborator-facing handle on one venue session.
//
// A Session wires the connection supervisor, event router, subscription
// registry, request bridge, quote cache and position tracker together.
// It is constructed explicitly by the process's composition root; tests
// may run several side by side.
//
// Request-scoped failures reach the caller as *wire.APIError (the venue
// rejected the request) or bridge.ErrTimeout. Transport failures stay
// inside the supervisor; terminal session failures are delivered on Fatal.
package session
