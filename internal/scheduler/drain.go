package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/runq/internal/command"
	"github.com/roach88/runq/internal/store"
)

// kick starts a drain unless one is already active.
// CRITICAL: Called only on the worker.
func (s *Scheduler) kick(ctx context.Context) {
	if s.State() != StateIdle {
		s.logger.Debug("drain already active", "drain", s.drain)
		return
	}

	s.drain = s.ids.Generate()
	s.executed = 0
	s.logger.Info("drain starting", "drain", s.drain, "batch", s.currentBatch)
	s.load(ctx)
}

// load replaces the snapshot with a fresh scan of pending rows, ordered
// (batch, id), and claims the first one.
func (s *Scheduler) load(ctx context.Context) {
	s.setState(StateLoading)

	records, err := s.store.ScanPending(ctx)
	if err != nil {
		s.logger.Error("load pending rows",
			"drain", s.drain,
			"error", command.NewPersistenceError("scan pending", err),
		)
		s.idle()
		return
	}

	s.snapshot = records
	s.cursor = 0
	s.stale = false
	s.emit(Event{Kind: EventLoad, Count: int64(len(records))})
	s.logger.Debug("pending rows loaded", "drain", s.drain, "rows", len(records))

	if len(records) == 0 {
		s.idle()
		return
	}
	s.next(ctx)
}

// next claims the row at the cursor and invokes its command.
//
// An empty snapshot means a purge cleared it, and the drain stops. A stale
// snapshot, or a cursor past the end, triggers a re-scan so rows inserted
// during the drain are picked up.
func (s *Scheduler) next(ctx context.Context) {
	if len(s.snapshot) == 0 {
		s.idle()
		return
	}
	if s.stale || s.cursor >= len(s.snapshot) {
		s.load(ctx)
		return
	}

	rec := s.snapshot[s.cursor]
	s.cursor++
	if rec.Batch > s.currentBatch {
		s.setBatch(rec.Batch)
	}

	if rec.ArgsErr != nil {
		s.discard(ctx, rec)
		return
	}

	cmd, ok := s.registry.Lookup(rec.Command)
	if !ok {
		err := command.NewUnrecognizedError(rec.Command)
		s.logger.Error("unrecognized command, purging queue",
			"drain", s.drain,
			"id", rec.ID,
			"batch", rec.Batch,
			"command", rec.Command,
			"error", err,
		)
		s.emit(Event{Kind: EventUnrecognized, ID: rec.ID, Batch: rec.Batch, Command: rec.Command, Args: rec.Args, Err: err.Error()})
		// purge logs its own failure
		_, _ = s.purge(ctx, store.AnyBatch)
		s.idle()
		return
	}

	s.setState(StateExecuting)
	s.executed++
	s.logger.Debug("executing command",
		"drain", s.drain,
		"id", rec.ID,
		"batch", rec.Batch,
		"command", rec.Command,
		"args", rec.Args,
	)
	s.emit(Event{Kind: EventExecute, ID: rec.ID, Batch: rec.Batch, Command: rec.Command, Args: rec.Args})

	cmdCtx, span := s.tracer.Start(ctx, "runq.command",
		trace.WithAttributes(
			attribute.String("runq.command", rec.Command),
			attribute.Int64("runq.row_id", rec.ID),
			attribute.Int("runq.batch", rec.Batch),
			attribute.String("runq.drain", s.drain),
		),
	)

	// The result may settle now or later on any goroutine; either way
	// settlement re-enters through the worker queue.
	invoke(cmdCtx, cmd, rec).
		OnSuccess(func(followOns []command.Descriptor) {
			s.resume(rec, span, func(wctx context.Context) {
				s.settle(wctx, rec, span, followOns, nil)
			})
		}).
		OnError(func(err error) {
			s.resume(rec, span, func(wctx context.Context) {
				s.settle(wctx, rec, span, nil, err)
			})
		})
}

// discard finalizes a row whose args could not be decoded without running it,
// then moves on to the next row.
func (s *Scheduler) discard(ctx context.Context, rec store.Record) {
	err := command.NewMalformedError(rec.Command, rec.ArgsErr.Error())
	s.logger.Error("undecodable row, discarding",
		"drain", s.drain,
		"id", rec.ID,
		"batch", rec.Batch,
		"command", rec.Command,
		"error", err,
	)

	if ferr := s.store.InTx(ctx, func(tx *store.Tx) error {
		return s.finalize(ctx, tx, rec)
	}); ferr != nil {
		s.logger.Error("discard failed, stopping drain; row stays pending",
			"drain", s.drain,
			"id", rec.ID,
			"error", command.NewPersistenceError("discard", ferr),
		)
		s.idle()
		return
	}

	s.emit(Event{Kind: EventSkip, ID: rec.ID, Batch: rec.Batch, Command: rec.Command, Err: err.Error()})
	if !s.exec.Submit(s.next) {
		s.idle()
	}
}

// invoke calls cmd, converting a panic or a nil result into a rejection.
func invoke(ctx context.Context, cmd command.Command, rec store.Record) (res *command.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = command.Fail(fmt.Errorf("command panicked: %v", r))
		}
	}()

	res = cmd.Execute(ctx, rec.Command, slices.Clone(rec.Args))
	if res == nil {
		res = command.Failf("command returned no result")
	}
	return res
}

// resume submits a settlement task. If the worker is gone the row stays
// pending and runs again on the next drain.
func (s *Scheduler) resume(rec store.Record, span trace.Span, task func(context.Context)) {
	if !s.exec.Submit(task) {
		s.logger.Warn("worker stopped before settlement; row stays pending",
			"id", rec.ID,
			"command", rec.Command,
		)
		span.SetStatus(codes.Error, "worker stopped before settlement")
		span.End()
	}
}

// purgeEffect is a purge requested by a follow-on, applied to worker state
// once its transaction commits.
type purgeEffect struct {
	filter store.BatchFilter
	rows   int64
}

// settle persists follow-ons and finalizes rec in one transaction, then
// advances the cursor.
//
// A rejected command (cmdErr != nil) is finalized exactly like a resolved one
// with no follow-ons: it is not retried and the queue is not purged.
func (s *Scheduler) settle(ctx context.Context, rec store.Record, span trace.Span, followOns []command.Descriptor, cmdErr error) {
	defer span.End()
	s.setState(StateSettling)

	if cmdErr != nil {
		err := command.NewExecutionError(rec.Command, cmdErr)
		s.logger.Error("command failed",
			"drain", s.drain,
			"id", rec.ID,
			"batch", rec.Batch,
			"command", rec.Command,
			"error", err,
		)
		span.RecordError(cmdErr)
		span.SetStatus(codes.Error, cmdErr.Error())
	}

	var (
		events []Event
		purge  *purgeEffect
		stale  bool
	)
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		for _, d := range followOns {
			if err := d.Validate(); err != nil {
				s.logger.Warn("skipping malformed follow-on",
					"drain", s.drain,
					"id", rec.ID,
					"command", rec.Command,
					"error", err,
				)
				events = append(events, Event{Kind: EventSkip, Batch: s.currentBatch, Command: d.Name, Args: d.Args, Err: err.Error()})
				continue
			}

			if d.IsControl() {
				filter := store.AnyBatch
				if d.Name == command.PurgeCurrentBatch {
					// The batch of the row that asked, which is behind
					// currentBatch when it came from a negative priority.
					filter = store.InBatch(rec.Batch)
				}
				n, err := s.purgeRows(ctx, tx, filter)
				if err != nil {
					return fmt.Errorf("%s: %w", d.Name, err)
				}
				purge = &purgeEffect{filter: filter, rows: n}
				// A purge ends this result's follow-ons.
				break
			}

			target := s.currentBatch + d.PriorityOrZero()
			if target < s.currentBatch {
				// Lands ahead of rows already in the snapshot.
				stale = true
			}
			id, err := tx.Insert(ctx, target, d.Name, d.Args)
			if err != nil {
				return fmt.Errorf("insert follow-on %s: %w", d.Name, err)
			}
			events = append(events, Event{Kind: EventFollowOn, ID: id, Batch: target, Command: d.Name, Args: d.Args})
		}

		return s.finalize(ctx, tx, rec)
	})
	if err != nil {
		perr := command.NewPersistenceError("settle", err)
		s.logger.Error("settle failed, stopping drain; row stays pending",
			"drain", s.drain,
			"id", rec.ID,
			"command", rec.Command,
			"error", perr,
		)
		span.RecordError(perr)
		span.SetStatus(codes.Error, perr.Error())
		s.idle()
		return
	}

	span.SetAttributes(attribute.Int("runq.follow_ons", len(followOns)))
	if cmdErr != nil {
		s.emit(Event{Kind: EventReject, ID: rec.ID, Batch: rec.Batch, Command: rec.Command, Args: rec.Args, Err: cmdErr.Error()})
	} else {
		s.emit(Event{Kind: EventResolve, ID: rec.ID, Batch: rec.Batch, Command: rec.Command, Args: rec.Args})
	}
	for _, ev := range events {
		s.emit(ev)
		if ev.Kind == EventFollowOn {
			s.logger.Debug("follow-on scheduled",
				"drain", s.drain,
				"id", ev.ID,
				"batch", ev.Batch,
				"command", ev.Command,
			)
		}
	}

	if stale {
		s.stale = true
	}
	if purge != nil {
		s.applyPurge(purge.filter)
		s.logger.Info("queue purged by follow-on",
			"drain", s.drain,
			"scope", purge.filter.String(),
			"rows", purge.rows,
			"command", rec.Command,
		)
		s.emit(Event{Kind: EventPurge, Scope: purge.filter.String(), Count: purge.rows})
	}

	s.setState(StateExecuting)
	if !s.exec.Submit(s.next) {
		s.idle()
	}
}

// finalize removes rec from the pending set: deleted, or kept as Executed in
// audit mode. A row already removed by a purge is not an error.
func (s *Scheduler) finalize(ctx context.Context, tx *store.Tx, rec store.Record) error {
	var err error
	if s.deleteExecuted {
		err = tx.Delete(ctx, rec.ID)
	} else {
		err = tx.UpdateStatus(ctx, rec.ID, store.StatusExecuted)
	}
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Debug("row purged while in flight", "id", rec.ID, "command", rec.Command)
		return nil
	}
	return err
}

// idle ends the current drain.
func (s *Scheduler) idle() {
	s.snapshot = nil
	s.cursor = 0
	s.stale = false
	s.setState(StateIdle)

	if s.drain != "" {
		s.logger.Info("drain finished",
			"drain", s.drain,
			"executed", s.executed,
			"batch", s.currentBatch,
		)
		s.emit(Event{Kind: EventIdle})
	}
	s.drain = ""
}
