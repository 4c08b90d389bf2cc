package scheduler

import (
	"context"

	"github.com/roach88/runq/internal/command"
	"github.com/roach88/runq/internal/future"
	"github.com/roach88/runq/internal/store"
)

// PurgeQueue drops every pending row and resets the current batch to 0.
// The future resolves with the number of rows purged.
//
// If ctx belongs to a task on the scheduler's worker (a command calling back
// during Execute), the purge runs synchronously; otherwise it is queued.
func (s *Scheduler) PurgeQueue(ctx context.Context) *future.Future[int64] {
	return onWorker(s, ctx, func(wctx context.Context) (int64, error) {
		return s.purge(wctx, store.AnyBatch)
	})
}

// PurgeCurrentBatch drops pending rows in the current batch only. The current
// batch is not reset.
func (s *Scheduler) PurgeCurrentBatch(ctx context.Context) *future.Future[int64] {
	return onWorker(s, ctx, func(wctx context.Context) (int64, error) {
		return s.purge(wctx, store.InBatch(s.currentBatch))
	})
}

// purge clears worker state for filter, then removes matching pending rows.
// CRITICAL: Called only on the worker.
func (s *Scheduler) purge(ctx context.Context, filter store.BatchFilter) (int64, error) {
	s.applyPurge(filter)

	var n int64
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		n, err = s.purgeRows(ctx, tx, filter)
		return err
	})
	if err != nil {
		perr := command.NewPersistenceError("purge "+filter.String(), err)
		s.logger.Error("purge failed", "scope", filter.String(), "error", perr)
		return 0, perr
	}

	s.logger.Info("queue purged", "scope", filter.String(), "rows", n)
	s.emit(Event{Kind: EventPurge, Scope: filter.String(), Count: n})
	return n, nil
}

// applyPurge drops the snapshot. A full purge also resets the batch counter.
func (s *Scheduler) applyPurge(filter store.BatchFilter) {
	s.snapshot = nil
	s.cursor = 0
	s.stale = false
	if filter == store.AnyBatch {
		s.setBatch(0)
	}
}

// purgeRows deletes matching pending rows, or marks them purged in audit mode.
func (s *Scheduler) purgeRows(ctx context.Context, tx *store.Tx, filter store.BatchFilter) (int64, error) {
	if s.deleteExecuted {
		return tx.DeletePending(ctx, filter)
	}
	return tx.MarkPending(ctx, filter, store.StatusPurged)
}
