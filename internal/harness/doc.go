// Package harness provides conformance testing for the runq scheduler.
//
// The harness registers scripted commands, drives a real scheduler through a
// flow of appends, drains and purges, and validates the resulting trace and
// final queue.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	keep_executed: false
//	handlers:
//	  fetch:
//	    - args: [seed]
//	      resolve:
//	        - {name: fetch, args: [url], priority: -1}
//	    - {}
//	  bad:
//	    - reject: "boom"
//	  slow:
//	    - defer: true
//	      resolve: [child]
//	flow:
//	  - append: fetch seed
//	  - append: {name: bad, priority: 1}
//	  - append: fetch seed
//	    inserted: false
//	  - execute: true
//	  - purge: current-batch
//	assertions:
//	  - type: executed_order
//	    commands: [fetch seed, fetch url]
//	  - type: pending_count
//	    count: 0
//
// # Assertion Types
//
//   - executed_order: executed command lines, exactly and in order
//   - executed_count: command name or line executed exactly N times
//   - pending_count: rows still pending
//   - pending_batches: batch of each pending row, in queue order
//   - trace_contains: a trace line is present
//   - trace_order: trace lines appear in order (non-consecutive)
//
// # Trace Lines
//
// Each scheduler event renders as one line, e.g. "execute batch=0 fetch seed",
// "follow-on batch=-1 fetch url", "purge all rows=2", "idle".
//
// # Golden Files
//
// Golden snapshots live in testdata/golden/{name}.golden. Update them with:
//
//	go test ./internal/harness -update
//
// # Determinism
//
// Each scenario runs against a fresh in-memory store with drain ids
// drain-1, drain-2, ... so traces are reproducible.
package harness
