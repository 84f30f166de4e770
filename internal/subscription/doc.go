// Package subscription implements the Subscription Registry.
//
// The registry remembers every stream the caller asked for, keyed by channel
// and symbol, so that a reconnect can restore them. Keys move between two
// flags:
//   - active: the subscribe frame went out on the current connection
//   - stale: the key must be (re)sent when the session is next Ready
//
// One mutex guards the table and is held across the wire send, so a
// reconnect racing with Subscribe cannot lose a stale flag.
package subscription
