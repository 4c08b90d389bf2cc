package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

var (
	// ErrReservedName is returned when registering in the control namespace.
	ErrReservedName = errors.New("command: reserved name")

	// ErrDuplicateName is returned when a name is already registered.
	ErrDuplicateName = errors.New("command: duplicate name")

	// ErrInvalidName is returned for empty or whitespace-containing names.
	ErrInvalidName = errors.New("command: invalid name")
)

type entryKind uint8

const (
	leafEntry entryKind = iota + 1
	namespaceEntry
)

// entry is a resolved registration: either a leaf command or one
// sub-command of a namespace.
type entry struct {
	kind      entryKind
	cmd       Command
	namespace string
	sub       string
}

// Registry maps command names to handlers.
//
// A Dispatcher registered under a namespace is expanded at registration time
// into one entry per sub-command ("ns.sub"), so Lookup is a single map read.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]entry
	namespaces map[string]*Dispatcher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:    make(map[string]entry),
		namespaces: make(map[string]*Dispatcher),
	}
}

// Register adds c under name. A *Dispatcher becomes a namespace whose
// sub-commands are addressable as name.sub.
func (r *Registry) Register(name string, c Command) error {
	if c == nil {
		return fmt.Errorf("register %q: nil command", name)
	}
	if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("register %q: %w", name, ErrInvalidName)
	}
	if name == ControlNamespace || strings.HasPrefix(name, ControlNamespace+".") {
		return fmt.Errorf("register %q: %w", name, ErrReservedName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, isNamespace := c.(*Dispatcher)
	if !isNamespace {
		if _, exists := r.entries[name]; exists {
			return fmt.Errorf("register %q: %w", name, ErrDuplicateName)
		}
		r.entries[name] = entry{kind: leafEntry, cmd: c}
		return nil
	}

	if strings.Contains(name, ".") {
		return fmt.Errorf("register namespace %q: %w", name, ErrInvalidName)
	}
	if _, exists := r.namespaces[name]; exists {
		return fmt.Errorf("register namespace %q: %w", name, ErrDuplicateName)
	}
	subs := d.Commands()
	for _, sub := range subs {
		if _, exists := r.entries[name+"."+sub]; exists {
			return fmt.Errorf("register %q: %w", name+"."+sub, ErrDuplicateName)
		}
	}
	for _, sub := range subs {
		r.entries[name+"."+sub] = entry{
			kind:      namespaceEntry,
			cmd:       d,
			namespace: name,
			sub:       sub,
		}
	}
	r.namespaces[name] = d
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, c Command) {
	if err := r.Register(name, c); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for a fully qualified name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.cmd, true
}

// Names returns every invokable name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Namespaces returns the registered namespace names, sorted.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registration describes one invokable name.
type Registration struct {
	Name      string
	Namespace string // empty for leaf commands
	Sub       string
}

// Registrations lists every invokable name with its namespace, sorted by name.
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registration, 0, len(r.entries))
	for name, e := range r.entries {
		reg := Registration{Name: name}
		if e.kind == namespaceEntry {
			reg.Namespace = e.namespace
			reg.Sub = e.sub
		}
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
