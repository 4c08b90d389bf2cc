package harness

import (
	"context"
	"errors"
	"slices"

	"github.com/roach88/runq/internal/command"
	"github.com/roach88/runq/internal/future"
	"github.com/roach88/runq/internal/plan"
)

// scripted is a command whose outcomes come from scenario rules.
type scripted struct {
	rules []Rule
}

// Execute implements command.Command.
func (s *scripted) Execute(ctx context.Context, name string, args []string) *command.Result {
	rule, ok := s.match(args)
	if !ok {
		return command.Done()
	}

	settle := func(f *command.Result) {
		if rule.Reject != "" {
			f.Reject(errors.New(rule.Reject))
			return
		}
		followOns := make([]command.Descriptor, 0, len(rule.Resolve))
		for _, entry := range rule.Resolve {
			// Entries were checked when the scenario loaded.
			d, err := plan.ParseEntry(entry)
			if err != nil {
				f.Reject(err)
				return
			}
			followOns = append(followOns, d)
		}
		f.Resolve(followOns)
	}

	f := future.New[[]command.Descriptor]()
	if rule.Defer {
		go settle(f)
		return f
	}
	settle(f)
	return f
}

func (s *scripted) match(args []string) (Rule, bool) {
	for _, r := range s.rules {
		if r.Args == nil || slices.Equal(r.Args, args) {
			return r, true
		}
	}
	return Rule{}, false
}
