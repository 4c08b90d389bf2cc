package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/runq/internal/command"
	"github.com/roach88/runq/internal/future"
	"github.com/roach88/runq/internal/store"
)

// testEnv is a running scheduler over a temp-dir store with an event log.
type testEnv struct {
	t     *testing.T
	store *store.Store
	reg   *command.Registry
	sched *Scheduler

	mu     sync.Mutex
	events []Event
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv builds a scheduler; register commands on env.reg before start.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return newTestEnvOn(t, setupTestStore(t), opts...)
}

// newTestEnvOn builds a scheduler over an existing store.
func newTestEnvOn(t *testing.T, st *store.Store, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		t:     t,
		store: st,
		reg:   command.NewRegistry(),
	}
	base := []Option{
		WithLogger(discardLogger()),
		WithIDGenerator(NewSequenceGenerator("drain")),
		WithObserver(env.record),
		WithIdlePoll(time.Millisecond),
	}
	env.sched = New(env.store, env.reg, append(base, opts...)...)
	return env
}

// start runs the worker until test cleanup.
func (e *testEnv) start() *testEnv {
	e.t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.sched.Run(ctx) }()
	e.t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

func (e *testEnv) record(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *testEnv) register(name string, c command.Command) {
	e.t.Helper()
	require.NoError(e.t, e.reg.Register(name, c))
}

// append appends a command line and waits for the insert.
func (e *testEnv) append(line string) bool {
	e.t.Helper()
	ok, err := e.sched.AppendLine(line).Await(e.ctx())
	require.NoError(e.t, err)
	return ok
}

func (e *testEnv) appendDescriptor(d command.Descriptor) {
	e.t.Helper()
	ok, err := e.sched.AppendDescriptor(d).Await(e.ctx())
	require.NoError(e.t, err)
	require.True(e.t, ok)
}

// drain triggers the queue and waits until it goes idle.
func (e *testEnv) drain() {
	e.t.Helper()
	require.True(e.t, e.sched.ExecuteQueue())
	e.waitIdle()
}

func (e *testEnv) waitIdle() {
	e.t.Helper()
	require.NoError(e.t, e.sched.WaitIdle(e.ctx()))
}

func (e *testEnv) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	e.t.Cleanup(cancel)
	return ctx
}

// eventsOf returns recorded events of the given kind.
func (e *testEnv) eventsOf(kind EventKind) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Event
	for _, ev := range e.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// executed returns "name args..." for each executed row, in order.
func (e *testEnv) executed() []string {
	var out []string
	for _, ev := range e.eventsOf(EventExecute) {
		out = append(out, strings.TrimSpace(ev.Command+" "+strings.Join(ev.Args, " ")))
	}
	return out
}

// trace renders every event, one per line.
func (e *testEnv) trace() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var b strings.Builder
	for _, ev := range e.events {
		b.WriteString(ev.String())
		b.WriteString("\n")
	}
	return b.String()
}

// pending returns the pending rows as "batch:name args..." strings.
func (e *testEnv) pending() []string {
	e.t.Helper()
	recs, err := e.store.ScanPending(context.Background())
	require.NoError(e.t, err)
	out := []string{}
	for _, r := range recs {
		out = append(out, strings.TrimSpace(strconv.Itoa(r.Batch)+":"+r.Command+" "+strings.Join(r.Args, " ")))
	}
	return out
}

// noop resolves with no follow-ons.
func noop() command.Command {
	return command.Func(func(context.Context, string, []string) *command.Result {
		return command.Done()
	})
}

// emitting resolves with the given follow-ons.
func emitting(followOns ...command.Descriptor) command.Command {
	return command.Func(func(context.Context, string, []string) *command.Result {
		return command.Done(followOns...)
	})
}

// failing rejects with msg.
func failing(msg string) command.Command {
	return command.Func(func(context.Context, string, []string) *command.Result {
		return command.Fail(errors.New(msg))
	})
}

// gate is a command whose results are settled by the test.
type gate struct {
	mu      sync.Mutex
	pending []*future.Future[[]command.Descriptor]
	started chan struct{}
}

func newGate() *gate {
	return &gate{started: make(chan struct{}, 16)}
}

func (g *gate) Execute(ctx context.Context, name string, args []string) *command.Result {
	f := future.New[[]command.Descriptor]()
	g.mu.Lock()
	g.pending = append(g.pending, f)
	g.mu.Unlock()
	g.started <- struct{}{}
	return f
}

// wait blocks until the gate has been invoked once more.
func (g *gate) wait(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(5 * time.Second):
		t.Fatal("gate command was not invoked")
	}
}

// release resolves the oldest unsettled invocation from a new goroutine.
func (g *gate) release(followOns ...command.Descriptor) {
	g.mu.Lock()
	f := g.pending[0]
	g.pending = g.pending[1:]
	g.mu.Unlock()
	go f.Resolve(followOns)
}
