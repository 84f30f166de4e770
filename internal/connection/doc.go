// Package connection implements the Transport Session and the Connection
// Supervisor.
//
// The Transport Session (Client) owns one WebSocket connection:
//   - Dials with a handshake timeout and reports failure as *ConnectionError
//   - Serializes writes behind a mutex with a write deadline
//   - Delivers inbound frames one at a time, in wire order, on Messages()
//   - Reports transport close and read errors on Errors()
//
// The Supervisor drives the session lifecycle on a single goroutine:
//
//	Disconnected -> Connecting -> Authenticating -> Ready
//	Ready -> Reconnecting -> Connecting | Disconnected
//	any -> Closed (Disconnect)
//
// It authorizes immediately after the transport opens, keeps the session
// alive with application pings while Ready, answers venue pings in every
// state, and reconnects with exponential backoff up to a fixed number of
// attempts. Every inbound frame is classified and dispatched through the
// router from the supervisor goroutine, so wire order is preserved.
//
// Transport failures never reach callers directly. Only an
// *AuthenticationError or ErrReconnectExhausted is surfaced, on Fatal().
package connection
