package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/runq/internal/command"
	"github.com/roach88/runq/internal/plan"
	"github.com/roach88/runq/internal/scheduler"
	"github.com/roach88/runq/internal/store"
)

// DefaultStepTimeout bounds each flow step.
const DefaultStepTimeout = 10 * time.Second

// Harness runs one scenario against a real scheduler.
type Harness struct {
	store   *store.Store
	sched   *scheduler.Scheduler
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	events []scheduler.Event
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger routes scheduler and harness logs to l. Logs are discarded by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithStepTimeout bounds each flow step.
func WithStepTimeout(d time.Duration) Option {
	return func(h *Harness) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a deterministic
// drain id sequence, so traces are reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database and register scripted handlers
// 2. Start the scheduler worker
// 3. Execute flow steps in order
// 4. Wait for the queue to go idle and collect the final queue
// 5. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: DefaultStepTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}

	reg := command.NewRegistry()
	for name, rules := range scenario.Handlers {
		if err := reg.Register(name, &scripted{rules: rules}); err != nil {
			return nil, fmt.Errorf("register handler %s: %w", name, err)
		}
	}

	h.sched = scheduler.New(st, reg,
		scheduler.WithDeleteExecuted(!scenario.KeepExecuted),
		scheduler.WithLogger(h.logger),
		scheduler.WithIDGenerator(scheduler.NewSequenceGenerator("drain")),
		scheduler.WithObserver(h.record),
		scheduler.WithIdlePoll(time.Millisecond),
	)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- h.sched.Run(runCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute flow: %w", err)
		}
	}

	if err := h.waitIdle(ctx); err != nil {
		return nil, fmt.Errorf("wait for idle queue: %w", err)
	}
	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"executed", len(result.Executed),
		"pending", len(result.Pending),
	)
	return result, nil
}

// executeStep runs one flow step. Unexpected append outcomes are recorded on
// result; only infrastructure failures are returned.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	stepCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	switch {
	case step.Append != nil:
		d, err := plan.ParseEntry(step.Append)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", index, err)
		}
		inserted, err := h.sched.AppendDescriptor(d).Await(stepCtx)
		if err != nil {
			result.AddError(fmt.Sprintf("flow step %d: append %s: %v", index, d, err))
			return nil
		}
		if step.Inserted != nil && *step.Inserted != inserted {
			result.AddError(fmt.Sprintf("flow step %d: append %s: inserted = %t, expected %t", index, d, inserted, *step.Inserted))
		}

	case step.Execute:
		if !h.sched.ExecuteQueue() {
			return fmt.Errorf("flow step %d: scheduler stopped", index)
		}
		if err := h.sched.WaitIdle(stepCtx); err != nil {
			return fmt.Errorf("flow step %d: wait for idle: %w", index, err)
		}

	case step.Purge == PurgeQueue:
		if _, err := h.sched.PurgeQueue(stepCtx).Await(stepCtx); err != nil {
			return fmt.Errorf("flow step %d: purge queue: %w", index, err)
		}

	case step.Purge == PurgeCurrentBatch:
		if _, err := h.sched.PurgeCurrentBatch(stepCtx).Await(stepCtx); err != nil {
			return fmt.Errorf("flow step %d: purge current batch: %w", index, err)
		}

	default:
		return fmt.Errorf("flow step %d: nothing to do", index)
	}

	h.logger.Debug("flow step completed", "step", index)
	return nil
}

func (h *Harness) waitIdle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.sched.WaitIdle(ctx)
}

// collect copies the recorded events and the pending rows into result.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	h.mu.Lock()
	for _, ev := range h.events {
		result.Trace = append(result.Trace, ev.String())
		if ev.Kind == scheduler.EventExecute {
			result.Executed = append(result.Executed, commandLine(ev.Command, ev.Args))
		}
	}
	h.mu.Unlock()

	pending, err := h.store.ScanPending(ctx)
	if err != nil {
		return fmt.Errorf("scan pending rows: %w", err)
	}
	for _, rec := range pending {
		result.Pending = append(result.Pending, PendingRow{
			Batch:   rec.Batch,
			Command: commandLine(rec.Command, rec.Args),
		})
	}
	return nil
}

func (h *Harness) record(ev scheduler.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
