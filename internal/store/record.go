package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Status is the lifecycle state of a queue row.
type Status string

const (
	// StatusPending rows are waiting to run.
	StatusPending Status = "P"
	// StatusExecuted rows have run; kept only in audit mode.
	StatusExecuted Status = "X"
	// StatusPurged rows were removed by a purge; kept only in audit mode.
	StatusPurged Status = "C"
)

// String returns a lowercase name for the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusExecuted:
		return "executed"
	case StatusPurged:
		return "purged"
	default:
		return fmt.Sprintf("status(%s)", string(s))
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusExecuted, StatusPurged:
		return true
	}
	return false
}

// ErrNotFound is returned when a row id does not exist.
var ErrNotFound = errors.New("store: row not found")

// Record is one row of the queue table.
type Record struct {
	ID      int64
	Batch   int
	Command string
	Args    []string
	Status  Status

	// ArgsErr is set when the args column could not be decoded. Args is
	// empty in that case; the row is still returned so one bad row does not
	// hide the rest of the queue.
	ArgsErr error
}

// BatchFilter scopes bulk operations to one batch or to all batches.
type BatchFilter struct {
	batch int
	all   bool
}

// AnyBatch matches every batch.
var AnyBatch = BatchFilter{all: true}

// InBatch matches rows whose batch equals n.
func InBatch(n int) BatchFilter {
	return BatchFilter{batch: n}
}

// String describes the filter for logs.
func (f BatchFilter) String() string {
	if f.all {
		return "all"
	}
	return fmt.Sprintf("batch=%d", f.batch)
}

// where returns the SQL predicate and its arguments for pending rows
// matching f.
func (f BatchFilter) where() (string, []any) {
	if f.all {
		return "status = ?", []any{string(StatusPending)}
	}
	return "status = ? AND batch = ?", []any{string(StatusPending), f.batch}
}

// querier is the subset of *sql.DB and *sql.Tx the row operations need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rows implements the queue row operations over a DB or a transaction.
type rows struct {
	q querier
}
