package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, err := s1.Insert(ctx, 0, "rm", []string{"/tmp/a"}); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	pending, err := s2.ScanPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "rm", pending[0].Command)
	assert.Equal(t, []string{"/tmp/a"}, pending[0].Args)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
		"idx_queue_status_batch",
	).Scan(&name)
	if err != nil {
		t.Errorf("index not found after idempotent opens: %v", err)
	}

	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestSchema_RejectsUnknownStatus(t *testing.T) {
	s := createTestStore(t)
	_, err := s.db.Exec(`INSERT INTO queue (batch, command, args, status) VALUES (0, 'rm', '[]', 'Z')`)
	assert.Error(t, err, "CHECK constraint must reject unknown status")
}

func TestTx_CommitApplies(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := mustInsert(t, s, 0, "fetch", "url")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.Insert(ctx, 0, "fetch", []string{"next"})
	require.NoError(t, err)
	require.NoError(t, tx.Delete(ctx, id))
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback(), "rollback after commit is a no-op")

	pending, err := s.ScanPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []string{"next"}, pending[0].Args)
}

func TestTx_RollbackDiscards(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := mustInsert(t, s, 0, "fetch", "url")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	_, err = tx.Insert(ctx, 0, "fetch", []string{"next"})
	require.NoError(t, err)
	require.NoError(t, tx.Delete(ctx, id))
	require.NoError(t, tx.Rollback())

	pending, err := s.ScanPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
}

func TestInTx_ErrorRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.Insert(ctx, 0, "rm", nil); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestInTx_Commits(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.Insert(ctx, 0, "rm", nil)
		return err
	})
	require.NoError(t, err)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[Status]int{StatusPending: 1}, counts)
}
