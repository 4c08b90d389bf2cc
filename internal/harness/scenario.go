package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/runq/internal/plan"
)

// Scenario defines a scheduler conformance scenario.
// Scenarios script command behavior, drive the queue through a flow of steps
// and assert on the resulting trace and final queue contents.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// KeepExecuted runs the scheduler in audit mode.
	KeepExecuted bool `yaml:"keep_executed,omitempty"`

	// Handlers scripts each registered command name. A name with no rules
	// resolves with no follow-ons.
	Handlers map[string][]Rule `yaml:"handlers"`

	// Flow is run in order against a fresh scheduler.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and the final queue.
	Assertions []Assertion `yaml:"assertions"`
}

// Rule scripts one outcome of a handler. The first rule whose Args match
// the invocation wins.
type Rule struct {
	// Args restricts the rule to invocations with exactly these args.
	// Nil matches any args.
	Args []string `yaml:"args,omitempty"`

	// Resolve lists follow-ons: command lines or {name, args, priority}
	// records.
	Resolve []any `yaml:"resolve,omitempty"`

	// Reject makes the command fail with this message.
	Reject string `yaml:"reject,omitempty"`

	// Defer settles the result from another goroutine.
	Defer bool `yaml:"defer,omitempty"`
}

// Step is one flow action. Exactly one of Append, Execute or Purge is set.
type Step struct {
	// Append queues a command line or record.
	Append any `yaml:"append,omitempty"`

	// Inserted, when set, is the expected outcome of Append (false for a
	// duplicate).
	Inserted *bool `yaml:"inserted,omitempty"`

	// Execute drains the queue and waits for it to go idle.
	Execute bool `yaml:"execute,omitempty"`

	// Purge is "queue" or "current-batch".
	Purge string `yaml:"purge,omitempty"`
}

// Assertion validates the trace or the final queue.
type Assertion struct {
	// Type specifies the assertion type:
	// - "executed_order": executed command lines, exactly and in order
	// - "executed_count": command executed exactly Count times
	// - "pending_count": number of pending rows
	// - "pending_batches": batch of each pending row, in queue order
	// - "trace_contains": trace has the Event line
	// - "trace_order": trace has the Events lines in this order
	Type string `yaml:"type"`

	// Commands is the expected execution order (executed_order).
	Commands []string `yaml:"commands,omitempty"`

	// Command is a name or full command line (executed_count).
	Command string `yaml:"command,omitempty"`

	// Count is the expected number (executed_count, pending_count).
	Count int `yaml:"count,omitempty"`

	// Batches are the expected pending batches (pending_batches).
	Batches []int `yaml:"batches,omitempty"`

	// Event is a trace line (trace_contains).
	Event string `yaml:"event,omitempty"`

	// Events are trace lines (trace_order).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertExecutedOrder  = "executed_order"
	AssertExecutedCount  = "executed_count"
	AssertPendingCount   = "pending_count"
	AssertPendingBatches = "pending_batches"
	AssertTraceContains  = "trace_contains"
	AssertTraceOrder     = "trace_order"
)

// Purge scopes.
const (
	PurgeQueue        = "queue"
	PurgeCurrentBatch = "current-batch"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks required fields and structural constraints.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow is required (at least one step)")
	}

	for name, rules := range s.Handlers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("handlers: empty command name")
		}
		for i, r := range rules {
			if r.Reject != "" && len(r.Resolve) > 0 {
				return fmt.Errorf("handlers.%s[%d]: resolve and reject are exclusive", name, i)
			}
			for j, entry := range r.Resolve {
				if _, err := plan.ParseEntry(entry); err != nil {
					return fmt.Errorf("handlers.%s[%d].resolve[%d]: %w", name, i, j, err)
				}
			}
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *Step) error {
	set := 0
	if step.Append != nil {
		set++
		if _, err := plan.ParseEntry(step.Append); err != nil {
			return fmt.Errorf("flow[%d].append: %w", index, err)
		}
	}
	if step.Execute {
		set++
	}
	if step.Purge != "" {
		set++
		if step.Purge != PurgeQueue && step.Purge != PurgeCurrentBatch {
			return fmt.Errorf("flow[%d]: purge must be %q or %q", index, PurgeQueue, PurgeCurrentBatch)
		}
	}
	if set != 1 {
		return fmt.Errorf("flow[%d]: exactly one of append, execute or purge is required", index)
	}
	if step.Inserted != nil && step.Append == nil {
		return fmt.Errorf("flow[%d]: inserted is only valid with append", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertExecutedOrder:
		if a.Commands == nil {
			return fmt.Errorf("assertions[%d]: commands list is required for executed_order", index)
		}
	case AssertExecutedCount:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for executed_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for executed_count", index)
		}
	case AssertPendingCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for pending_count", index)
		}
	case AssertPendingBatches:
		if a.Batches == nil {
			return fmt.Errorf("assertions[%d]: batches list is required for pending_batches", index)
		}
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
