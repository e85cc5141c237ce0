// Package store provides a SQLite-backed journal of dispatched phase events.
//
// The journal is a downstream consumer of the event dispatcher, not part of
// the phase machinery. It records:
//   - Runs: one row per tracker session, tagged with engine and payload versions
//   - Events: every dispatched event with its final cancellation decision
//
// # Critical Patterns
//
// Idempotent writes
//   - Events are keyed by their id; rewriting an event is a no-op
//
// Logical ordering
//   - All ordering uses seq INTEGER (the tracker's logical clock), never timestamps
//   - Queries include ORDER BY seq ASC, id COLLATE BINARY ASC
//
// Content addressing
//   - Cause and payload are stored as RFC 8785 canonical JSON
//   - Each row carries the digest computed by ir.EventDigest
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
