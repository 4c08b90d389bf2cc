package scheduler

import (
	"fmt"
	"strings"
)

// EventKind names a scheduler transition reported to an Observer.
type EventKind string

const (
	EventLoad         EventKind = "load"         // pending rows scanned
	EventExecute      EventKind = "execute"      // row claimed and command invoked
	EventResolve      EventKind = "resolve"      // command resolved; follow-ons committed
	EventReject       EventKind = "reject"       // command rejected; row finalized
	EventFollowOn     EventKind = "follow-on"    // follow-on row inserted
	EventSkip         EventKind = "skip"         // malformed follow-on or undecodable row skipped
	EventPurge        EventKind = "purge"        // pending rows purged
	EventUnrecognized EventKind = "unrecognized" // no handler; queue purged
	EventAppend       EventKind = "append"       // row appended by a caller
	EventIdle         EventKind = "idle"         // drain finished
)

// Event is one observable scheduler transition. Observers run on the worker
// and must not block.
type Event struct {
	Kind    EventKind
	Drain   string
	ID      int64
	Batch   int
	Command string
	Args    []string
	Count   int64  // rows loaded or purged
	Scope   string // purge scope: "all" or "batch=N"
	Err     string
}

// String renders e as one stable trace line.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	switch e.Kind {
	case EventLoad:
		fmt.Fprintf(&b, " rows=%d", e.Count)
	case EventPurge:
		fmt.Fprintf(&b, " %s rows=%d", e.Scope, e.Count)
	case EventIdle:
	default:
		fmt.Fprintf(&b, " batch=%d %s", e.Batch, e.Command)
		if len(e.Args) > 0 {
			b.WriteString(" ")
			b.WriteString(strings.Join(e.Args, " "))
		}
	}
	if e.Err != "" {
		fmt.Fprintf(&b, " err=%q", e.Err)
	}
	return b.String()
}

// Observer receives scheduler events.
type Observer func(Event)
