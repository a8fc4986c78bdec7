// Package store manages the in-memory activity history. It provides a
// thread-safe append-only store with per-client ordering, pagination,
// aggregate statistics, client summaries, and background retention
// eviction.
package store
