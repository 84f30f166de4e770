// Package router implements the Event Router.
//
// Every inbound frame passes through Dispatch exactly once. Handlers are
// registered per wire.Kind and run synchronously, in registration order, on
// the caller's goroutine (the connection read path). A panicking handler is
// logged and skipped; the remaining handlers still see the frame.
//
// Handlers must return quickly. Work that may block belongs on a Handoff
// queue drained by a separate goroutine.
package router
