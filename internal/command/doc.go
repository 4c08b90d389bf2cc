// Package command defines the pluggable unit of work run by the scheduler.
//
// A Command is invoked with a name and string arguments and returns a future
// list of follow-on Descriptors. Commands are registered by name in a
// Registry; a Dispatcher groups sub-commands under a namespace so that "fs.rm"
// routes to the "rm" command of the dispatcher registered as "fs".
//
// Descriptors come from three places: a command's own results, a command line
// parsed by Parse, and structured records decoded by FromRecord (plan files).
//
// Errors use a single typed Error with a category code:
//
//   - UNRECOGNIZED_COMMAND: no handler for a name; the scheduler purges the queue
//   - COMMAND_EXECUTION_FAILED: a command rejected; the queue continues
//   - MALFORMED_FOLLOW_ON: a descriptor could not be scheduled; skipped
//   - PERSISTENCE_FAILED: the durable store failed
package command
