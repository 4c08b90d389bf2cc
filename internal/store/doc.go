// Package store provides SQLite-backed durable storage for the command queue.
//
// The queue is a single table of rows {id, batch, command, args, status}:
//   - id: AUTOINCREMENT, monotonic, never reused
//   - batch: ordering epoch; execution is batch-major, id-minor
//   - args: JSON array of strings
//   - status: P pending, X executed, C purged
//
// # Ordering
//
// ScanPending returns rows ORDER BY batch ASC, id ASC. Callers rely on this
// being the total execution order.
//
// # Transactions
//
// Every row operation is available on both Store and Tx. The scheduler runs
// follow-on inserts and the finalization of the triggering row inside one Tx,
// so a crash leaves either both or neither:
//
//	tx, err := s.Begin(ctx)
//	if err != nil { ... }
//	defer tx.Rollback() // No-op if committed
//	... tx.Insert / tx.Delete ...
//	return tx.Commit()
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - one open connection: SQLite allows a single writer
package store
