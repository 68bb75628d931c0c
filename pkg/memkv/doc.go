// Package memkv is a sharded, thread-safe in-memory byte store with per-key
// TTLs. A background goroutine removes keys as their deadline passes, so
// expired entries do not pile up when nobody reads them.
//
// Values are copied on Set and on Get. An optional MaxBytes limit rejects
// writes that would grow the total value size past it.
package memkv
