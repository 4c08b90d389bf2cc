package store

import (
	"context"
	"fmt"
)

// Insert adds a pending row and returns its id.
// Ids are AUTOINCREMENT, so they never repeat even after rows are deleted.
func (r rows) Insert(ctx context.Context, batch int, command string, args []string) (int64, error) {
	argsJSON, err := marshalArgs(args)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}

	result, err := r.q.ExecContext(ctx, `
		INSERT INTO queue (batch, command, args, status)
		VALUES (?, ?, ?, ?)
	`, batch, command, argsJSON, string(StatusPending))
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert: last insert id: %w", err)
	}
	return id, nil
}

// InsertUnique inserts a pending row unless an identical pending row
// (batch, command, args) already exists. Reports whether a row was inserted.
// Run it inside a Tx when the check and insert must be atomic against other
// writers.
func (r rows) InsertUnique(ctx context.Context, batch int, command string, args []string) (int64, bool, error) {
	n, err := r.CountMatching(ctx, batch, command, args, StatusPending)
	if err != nil {
		return 0, false, err
	}
	if n > 0 {
		return 0, false, nil
	}
	id, err := r.Insert(ctx, batch, command, args)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// UpdateStatus sets the status of one row. Returns ErrNotFound if the id does
// not exist.
func (r rows) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("update status %d: invalid status %q", id, string(status))
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE queue SET status = ? WHERE id = ?
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("update status %d: %w", id, err)
	}
	return expectOne(result.RowsAffected, fmt.Sprintf("update status %d", id))
}

// Delete removes one row. Returns ErrNotFound if the id does not exist.
func (r rows) Delete(ctx context.Context, id int64) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %d: %w", id, err)
	}
	return expectOne(result.RowsAffected, fmt.Sprintf("delete %d", id))
}

// DeletePending removes pending rows matching f and returns how many were
// removed. Executed and purged rows are never touched.
func (r rows) DeletePending(ctx context.Context, f BatchFilter) (int64, error) {
	where, args := f.where()
	result, err := r.q.ExecContext(ctx, `DELETE FROM queue WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete pending (%s): %w", f, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete pending (%s): rows affected: %w", f, err)
	}
	return n, nil
}

// MarkPending flips pending rows matching f to status and returns how many
// changed. Audit mode uses it in place of DeletePending.
func (r rows) MarkPending(ctx context.Context, f BatchFilter, status Status) (int64, error) {
	if !status.Valid() || status == StatusPending {
		return 0, fmt.Errorf("mark pending (%s): invalid status %q", f, string(status))
	}

	where, args := f.where()
	result, err := r.q.ExecContext(ctx,
		`UPDATE queue SET status = ? WHERE `+where,
		append([]any{string(status)}, args...)...,
	)
	if err != nil {
		return 0, fmt.Errorf("mark pending (%s): %w", f, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark pending (%s): rows affected: %w", f, err)
	}
	return n, nil
}

// PurgeTerminal deletes executed and purged rows left behind by audit mode.
func (r rows) PurgeTerminal(ctx context.Context) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM queue WHERE status <> ?`, string(StatusPending))
	if err != nil {
		return 0, fmt.Errorf("purge terminal: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge terminal: rows affected: %w", err)
	}
	return n, nil
}

func expectOne(affected func() (int64, error), op string) error {
	n, err := affected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
