// Package executor implements the serial worker that owns all scheduler state.
//
// One goroutine (Run) drains an unbounded FIFO of tasks. Any goroutine may
// Submit; exactly one task runs at a time. Commands that finish on another
// goroutine re-enter by submitting a task rather than calling back directly.
//
// Instead of comparing goroutine identity, the executor stamps the context it
// passes to each task with a worker token. OnWorker(ctx) checks that token, so
// the "already on the worker" decision travels explicitly with the call.
package executor
