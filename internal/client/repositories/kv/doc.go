// Package kv provides the client's persistent key/value store: the single
// source of truth for session data across restarts.
//
// Three backends implement Store:
//   - SQLiteRepository: durable local file, schema managed by goose
//     migrations (see InitDatabase).
//   - RedisRepository: namespaced keys in a Redis database.
//   - MemoryRepository: process-local map, used in tests and for
//     throwaway sessions.
//
// Every method may fail (I/O, quota, corruption, closed handle). Callers are
// expected to treat a failure as "state unknown" and pick the safer reading.
package kv
