package scheduler

import (
	"context"

	"github.com/roach88/runq/internal/command"
	"github.com/roach88/runq/internal/future"
	"github.com/roach88/runq/internal/store"
)

// AppendCommand queues name with args in the current batch. The future
// resolves true if a row was inserted, false if an identical pending row
// (same batch, name and args) already existed.
//
// Appending does not start a drain; call ExecuteQueue.
func (s *Scheduler) AppendCommand(name string, args []string) *future.Future[bool] {
	return s.AppendDescriptor(command.New(name, args...))
}

// AppendLine parses a command line ("name arg -switch value") and appends it.
func (s *Scheduler) AppendLine(line string) *future.Future[bool] {
	d, err := command.Parse(line)
	if err != nil {
		return future.Rejected[bool](err)
	}
	return s.AppendDescriptor(d)
}

// AppendDescriptor appends d at batch currentBatch + priority, with the same
// duplicate check as AppendCommand.
func (s *Scheduler) AppendDescriptor(d command.Descriptor) *future.Future[bool] {
	if err := d.Validate(); err != nil {
		return future.Rejected[bool](err)
	}
	if d.IsControl() || d.Name == command.ControlNamespace {
		return future.Rejected[bool](command.NewMalformedError(d.Name, "control commands are only valid as follow-ons"))
	}

	return onWorker(s, context.Background(), func(ctx context.Context) (bool, error) {
		return s.appendRow(ctx, d)
	})
}

// appendRow inserts d unless an identical pending row exists.
// CRITICAL: Called only on the worker.
func (s *Scheduler) appendRow(ctx context.Context, d command.Descriptor) (bool, error) {
	batch := s.currentBatch + d.PriorityOrZero()

	var (
		id       int64
		inserted bool
	)
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		id, inserted, err = tx.InsertUnique(ctx, batch, d.Name, d.Args)
		return err
	})
	if err != nil {
		perr := command.NewPersistenceError("append", err)
		s.logger.Error("append failed", "command", d.Name, "batch", batch, "error", perr)
		return false, perr
	}

	if !inserted {
		s.logger.Warn("duplicate append skipped", "command", d.Name, "args", d.Args, "batch", batch)
		return false, nil
	}

	if batch < s.currentBatch && s.State() != StateIdle {
		s.stale = true
	}
	s.logger.Debug("command appended", "id", id, "command", d.Name, "batch", batch)
	s.emit(Event{Kind: EventAppend, ID: id, Batch: batch, Command: d.Name, Args: d.Args})
	return true, nil
}
