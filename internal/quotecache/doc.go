// Package quotecache implements the Quote Cache.
//
// Quotes are keyed by a normalized Fingerprint of the request. An entry is
// fresh while its age, measured from insertion, is below the TTL. A fresh hit
// is returned without contacting the venue; a miss calls the factory once per
// key even under concurrent callers. Failed lookups are never stored.
//
// Entries live in a Store: MemoryStore for a single process, RedisStore to
// share quotes between gateway processes.
package quotecache
