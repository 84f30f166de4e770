// Package wire defines the venue's JSON message shapes.
//
// Inbound frames carry no message type tag that is reliable across all
// responses; the kind of a frame is derived from which top-level field is
// present (authorize, error, tick, proposal, ...). Classify performs that
// discrimination once so the rest of the gateway works with a closed Kind
// enumeration instead of string keys.
package wire
