package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ScanPending returns every pending row in execution order:
// ORDER BY batch ASC, id ASC.
//
// Rows whose args cannot be decoded are returned with ArgsErr set.
// Returns an empty slice (not nil) if nothing is pending.
func (r rows) ScanPending(ctx context.Context) ([]Record, error) {
	return r.query(ctx, `
		SELECT id, batch, command, args, status
		FROM queue
		WHERE status = ?
		ORDER BY batch ASC, id ASC
	`, string(StatusPending))
}

// ListAll returns every row regardless of status, in (batch, id) order.
// Used by status reporting; audit mode keeps executed and purged rows around.
func (r rows) ListAll(ctx context.Context) ([]Record, error) {
	return r.query(ctx, `
		SELECT id, batch, command, args, status
		FROM queue
		ORDER BY batch ASC, id ASC
	`)
}

// Get returns the row with the given id, or ErrNotFound.
func (r rows) Get(ctx context.Context, id int64) (Record, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, batch, command, args, status
		FROM queue
		WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, fmt.Errorf("get %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %d: %w", id, err)
	}
	return rec, nil
}

// CountMatching counts rows with exactly this (batch, command, args, status).
func (r rows) CountMatching(ctx context.Context, batch int, command string, args []string, status Status) (int, error) {
	argsJSON, err := marshalArgs(args)
	if err != nil {
		return 0, fmt.Errorf("count matching: %w", err)
	}

	var n int
	err = r.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM queue
		WHERE batch = ? AND command = ? AND args = ? AND status = ?
	`, batch, command, argsJSON, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count matching: %w", err)
	}
	return n, nil
}

// Counts returns the number of rows per status. Statuses with no rows are
// omitted.
func (r rows) Counts(ctx context.Context) (map[Status]int, error) {
	res, err := r.q.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM queue
		GROUP BY status
		ORDER BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer res.Close()

	counts := make(map[Status]int)
	for res.Next() {
		var status string
		var n int
		if err := res.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan counts: %w", err)
		}
		counts[Status(status)] = n
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

func (r rows) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	res, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer res.Close()

	var records []Record
	for res.Next() {
		rec, err := scanRecord(res)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue: %w", err)
	}

	// Return empty slice instead of nil
	if records == nil {
		records = []Record{}
	}

	return records, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var rec Record
	var argsJSON, status string

	if err := s.Scan(&rec.ID, &rec.Batch, &rec.Command, &argsJSON, &status); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan queue row: %w", err)
	}

	rec.Status = Status(status)
	args, err := unmarshalArgs(argsJSON)
	if err != nil {
		rec.Args = []string{}
		rec.ArgsErr = fmt.Errorf("queue row %d: %w", rec.ID, err)
		return rec, nil
	}
	rec.Args = args

	return rec, nil
}
