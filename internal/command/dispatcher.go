package command

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/runq/internal/future"
)

// prefixKey carries the namespace a Dispatcher was invoked under.
type prefixKey struct{}

// Dispatcher groups related commands under one namespace.
//
// Registered as "fs", a dispatcher holding "rm" serves "fs.rm". The namespace
// is taken from the dispatch name on every call, so one dispatcher can be
// registered under several aliases.
type Dispatcher struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{commands: make(map[string]Command)}
}

// Add registers c under sub and returns d for chaining.
// Commands added after the dispatcher is registered with a Registry are not
// visible through that registry.
func (d *Dispatcher) Add(sub string, c Command) *Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[sub] = c
	return d
}

// Commands returns the sub-command names, sorted.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) lookup(sub string) (Command, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.commands[sub]
	return c, ok
}

// Execute splits name on the first "." and forwards to the sub-command.
// It rejects with an UNRECOGNIZED_COMMAND error if there is no match.
func (d *Dispatcher) Execute(ctx context.Context, name string, args []string) *future.Future[[]Descriptor] {
	prefix, sub, ok := strings.Cut(name, ".")
	if !ok {
		return Fail(NewUnrecognizedError(name))
	}
	c, ok := d.lookup(sub)
	if !ok {
		return Fail(NewUnrecognizedError(name))
	}
	return c.Execute(context.WithValue(ctx, prefixKey{}, prefix), name, args)
}

// Prefix returns the namespace the current dispatch came through, or "".
func Prefix(ctx context.Context) string {
	p, _ := ctx.Value(prefixKey{}).(string)
	return p
}

// Qualify returns sub in the namespace of the current dispatch. Sub-commands
// use it to emit follow-ons that route back through the same alias.
func Qualify(ctx context.Context, sub string) string {
	if p := Prefix(ctx); p != "" {
		return p + "." + sub
	}
	return sub
}
