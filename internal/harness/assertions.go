package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Trace    []string // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, line := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertExecutedOrder:
		return assertExecutedOrder(result, a)
	case AssertExecutedCount:
		return assertExecutedCount(result, a)
	case AssertPendingCount:
		return assertPendingCount(result, a)
	case AssertPendingBatches:
		return assertPendingBatches(result, a)
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertExecutedOrder checks the executed command lines exactly.
func assertExecutedOrder(result *Result, a Assertion) error {
	if slices.Equal(result.Executed, a.Commands) {
		return nil
	}
	return &AssertionError{
		Type:     AssertExecutedOrder,
		Expected: fmt.Sprintf("%q", a.Commands),
		Actual:   fmt.Sprintf("%q", result.Executed),
		Trace:    result.Trace,
	}
}

// assertExecutedCount counts executions whose line or name equals a.Command.
func assertExecutedCount(result *Result, a Assertion) error {
	count := 0
	for _, line := range result.Executed {
		name, _, _ := strings.Cut(line, " ")
		if line == a.Command || name == a.Command {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertExecutedCount,
			Expected: fmt.Sprintf("%d executions of %s", a.Count, a.Command),
			Actual:   fmt.Sprintf("%d executions", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertPendingCount(result *Result, a Assertion) error {
	if len(result.Pending) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertPendingCount,
		Expected: fmt.Sprintf("%d pending rows", a.Count),
		Actual:   fmt.Sprintf("%d pending rows: %s", len(result.Pending), describePending(result.Pending)),
	}
}

func assertPendingBatches(result *Result, a Assertion) error {
	batches := make([]int, len(result.Pending))
	for i, row := range result.Pending {
		batches[i] = row.Batch
	}
	if slices.Equal(batches, a.Batches) {
		return nil
	}
	return &AssertionError{
		Type:     AssertPendingBatches,
		Expected: fmt.Sprintf("batches %v", a.Batches),
		Actual:   fmt.Sprintf("batches %v: %s", batches, describePending(result.Pending)),
	}
}

// assertTraceContains checks that the trace has a line equal to a.Event.
func assertTraceContains(trace []string, a Assertion) error {
	if slices.Contains(trace, a.Event) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %q", a.Event),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the events appear in order.
// Events don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []string, a Assertion) error {
	pos := 0
	for _, want := range a.Events {
		i := slices.Index(trace[pos:], want)
		if i < 0 {
			actual := fmt.Sprintf("missing event: %q", want)
			if slices.Contains(trace, want) {
				actual = fmt.Sprintf("%q appears too early", want)
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %q", a.Events),
				Actual:   actual,
				Trace:    trace,
			}
		}
		pos += i + 1
	}
	return nil
}

func describePending(rows []PendingRow) string {
	if len(rows) == 0 {
		return "none"
	}
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = fmt.Sprintf("[%d] %s", r.Batch, r.Command)
	}
	return strings.Join(parts, ", ")
}
