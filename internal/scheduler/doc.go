// Package scheduler implements the durable serial command queue.
//
// ARCHITECTURE:
//
// Single Worker:
// One executor goroutine owns the snapshot, cursor and batch counter, and
// performs every write to the store. Callers never touch that state; they
// submit tasks (ExecuteQueue, Append*, Purge*) and get futures back.
//
// Drain Flow:
//  1. ExecuteQueue queues a kick; if a drain is active it does nothing
//  2. load scans pending rows ORDER BY batch, id into the snapshot
//  3. next claims the row at the cursor and invokes its command
//  4. the command's future settles, possibly much later on another goroutine
//  5. settlement re-enters the worker: one transaction inserts follow-ons
//     and finalizes the row, then next runs again
//  6. running off the end of the snapshot re-scans; an empty scan ends
//     the drain
//
// The worker never blocks on a command. While a command is in flight other
// tasks (appends, purges, status barriers) still run.
//
// Batches and Priority:
// A follow-on lands in batch currentBatch + priority. A negative priority
// places it ahead of rows already loaded, so the snapshot is marked stale and
// re-scanned before the next claim. currentBatch only moves forward, except
// for a full purge, which resets it to 0.
//
// Failure Policy:
//   - a rejected command is logged and finalized; the queue continues
//   - a row naming an unregistered command purges the whole queue
//   - control.purge-queue / control.purge-current-batch follow-ons purge
//     and end that result's follow-ons
//   - a store failure during settlement rolls back, leaves the row pending,
//     and ends the drain
package scheduler
