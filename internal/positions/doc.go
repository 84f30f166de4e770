// Package positions records trades opened through the gateway and retires
// them when the venue reports the contract settled.
//
// Storage is pluggable:
//   - MemoryStore for tests and ephemeral runs
//   - SQLiteStore for a single-host file
//   - PostgresStore for a shared database
//
// The Tracker consumes open-contract frames on its own goroutine via a
// router.Handoff, so the read path never waits on storage.
package positions
