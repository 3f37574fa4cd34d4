// Package store provides SQLite-backed durable storage for search logs.
//
// The store implements engine.Recorder with three tables:
//   - runs: One row per Solve call, updated with status and statistics on exit
//   - nodes: The append-only node trace of each run
//   - solutions: A zstd-compressed JSON solution for every optimal run
//
// # Ordering
//
// Traces are ordered by the logical step counter the engine assigns, never
// by wall-clock time. Node queries use ORDER BY step ASC, seq ASC, and run
// listings order by run ID, which for UUIDv7 IDs is creation order.
//
// # Idempotency
//
// Every insert uses ON CONFLICT DO NOTHING, so re-recording a run or a step
// is harmless.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Bounds are stored as TEXT because SQLite REAL columns cannot hold NaN.
package store
