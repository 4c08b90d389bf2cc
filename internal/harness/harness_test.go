package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_ScenarioFiles(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.Len(t, scenarios, 8)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{
		"a_same_batch",
		"b_negative_priority",
		"d_rejection",
		"e_purge_current_batch",
		"e_purge_negative_batch",
		"f_mixed_priority_follow_ons",
		"deferred_follow_ons",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_UnrecognizedPurgesEverything(t *testing.T) {
	result, err := Run(context.Background(), loadTestScenario(t, "c_unrecognized"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, []string{"a"}, result.Executed)
	assert.Empty(t, result.Pending)
	found := false
	for _, line := range result.Trace {
		if strings.HasPrefix(line, "unrecognized batch=0 nosuch thing") {
			found = true
		}
	}
	assert.True(t, found, "trace: %v", result.Trace)
}

func TestRun_FailingAssertions(t *testing.T) {
	s := &Scenario{
		Name:     "wrong_expectations",
		Handlers: map[string][]Rule{"a": nil},
		Flow: []Step{
			{Append: "a"},
			{Append: "b"},
		},
		Assertions: []Assertion{
			{Type: AssertExecutedOrder, Commands: []string{"a"}},
			{Type: AssertPendingCount, Count: 0},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "executed_order")
	assert.Contains(t, result.Errors[1], "2 pending rows")
}

func TestRun_InsertedMismatch(t *testing.T) {
	no := false
	s := &Scenario{
		Name: "fresh_append",
		Flow: []Step{{Append: "a", Inserted: &no}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "inserted = true, expected false")
}

func TestRun_AppendRejected(t *testing.T) {
	s := &Scenario{
		Name: "control_append",
		Flow: []Step{{Append: "control.purge-queue"}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "MALFORMED_FOLLOW_ON")
}

func TestRun_PurgeSteps(t *testing.T) {
	s := &Scenario{
		Name: "purges",
		Flow: []Step{
			{Append: "a"},
			{Append: map[string]any{"name": "b", "priority": 1}},
			{Purge: PurgeCurrentBatch},
			{Append: map[string]any{"name": "c", "priority": 2}},
		},
		Assertions: []Assertion{
			{Type: AssertPendingBatches, Batches: []int{1, 2}},
			{Type: AssertTraceContains, Event: "purge batch=0 rows=1"},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	s.Flow = append(s.Flow, Step{Purge: PurgeQueue})
	s.Assertions = []Assertion{{Type: AssertPendingCount, Count: 0}}
	result, err = Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_AuditMode(t *testing.T) {
	s := &Scenario{
		Name:         "audit",
		KeepExecuted: true,
		Handlers:     map[string][]Rule{"a": nil},
		Flow: []Step{
			{Append: "a"},
			{Execute: true},
			{Append: "a", Inserted: boolPtr(true)},
		},
		Assertions: []Assertion{
			{Type: AssertExecutedCount, Command: "a", Count: 1},
			{Type: AssertPendingCount, Count: 1},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func boolPtr(b bool) *bool { return &b }
