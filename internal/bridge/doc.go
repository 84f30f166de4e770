// Package bridge implements the Request/Response Bridge.
//
// The venue protocol is publish/subscribe with no request identifier, so a
// call is answered by "the next frame of the expected kind". Call registers
// one-shot router handlers for that kind and for error frames, sends the
// request, and waits for the first of: a success frame, a matching error
// frame, the timeout, or context cancellation. The handlers are removed on
// every path, so a late response cannot complete a later call.
//
// Calls expecting the same kind are serialized; calls of different kinds run
// concurrently. All calls share one rate limiter.
package bridge
