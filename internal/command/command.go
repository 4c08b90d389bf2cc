package command

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/runq/internal/future"
)

// Reserved control names. They are only meaningful as follow-ons returned by
// a command; they cannot be registered or invoked directly.
const (
	ControlNamespace  = "control"
	PurgeQueue        = "control.purge-queue"
	PurgeCurrentBatch = "control.purge-current-batch"
)

// Command is a named, pluggable unit of work.
//
// Execute is invoked on the scheduler's worker. It may do its work inline and
// return a settled future, or return a pending future and settle it later from
// any goroutine. The future resolves with follow-on descriptors to schedule
// after this command (possibly none) or rejects with an error.
type Command interface {
	Execute(ctx context.Context, name string, args []string) *future.Future[[]Descriptor]
}

// Result is the future a command settles with its follow-ons.
type Result = future.Future[[]Descriptor]

// Func adapts a function to the Command interface.
type Func func(ctx context.Context, name string, args []string) *future.Future[[]Descriptor]

// Execute calls f.
func (f Func) Execute(ctx context.Context, name string, args []string) *future.Future[[]Descriptor] {
	return f(ctx, name, args)
}

// Done returns a resolved result carrying followOns.
func Done(followOns ...Descriptor) *future.Future[[]Descriptor] {
	if followOns == nil {
		followOns = []Descriptor{}
	}
	return future.Resolved(followOns)
}

// Fail returns a rejected result.
func Fail(err error) *future.Future[[]Descriptor] {
	return future.Rejected[[]Descriptor](err)
}

// Failf returns a rejected result with a formatted error.
func Failf(format string, args ...any) *future.Future[[]Descriptor] {
	return Fail(fmt.Errorf(format, args...))
}

// Descriptor names a command to schedule.
type Descriptor struct {
	Name string   `json:"name" yaml:"name"`
	Args []string `json:"args" yaml:"args"`

	// Priority offsets the target batch from the scheduler's current batch.
	// Nil means 0. Negative values schedule ahead of already-loaded work.
	Priority *int `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// New returns a descriptor with the given name and args.
func New(name string, args ...string) Descriptor {
	if args == nil {
		args = []string{}
	}
	return Descriptor{Name: name, Args: args}
}

// WithPriority returns a copy of d with priority p.
func (d Descriptor) WithPriority(p int) Descriptor {
	d.Priority = &p
	return d
}

// PriorityOrZero returns the priority, defaulting to 0.
func (d Descriptor) PriorityOrZero() int {
	if d.Priority == nil {
		return 0
	}
	return *d.Priority
}

// IsControl reports whether d names a reserved control command.
func (d Descriptor) IsControl() bool {
	return d.Name == PurgeQueue || d.Name == PurgeCurrentBatch
}

// Validate checks that d can be scheduled.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return NewMalformedError("", "missing command name")
	}
	if strings.IndexFunc(d.Name, unicode.IsSpace) >= 0 {
		return NewMalformedError(d.Name, "command name contains whitespace")
	}
	if !utf8.ValidString(d.Name) {
		return NewMalformedError(d.Name, "command name is not valid UTF-8")
	}
	// Args are stored as JSON text, which cannot carry arbitrary bytes.
	for i, arg := range d.Args {
		if !utf8.ValidString(arg) {
			return NewMalformedError(d.Name, fmt.Sprintf("args[%d] is not valid UTF-8: %q", i, arg))
		}
	}
	return nil
}

// String renders d as a command line.
func (d Descriptor) String() string {
	if len(d.Args) == 0 {
		return d.Name
	}
	return d.Name + " " + strings.Join(d.Args, " ")
}
