package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustInsert inserts a pending row and returns its id.
func mustInsert(t *testing.T, s *Store, batch int, command string, args ...string) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), batch, command, args)
	if err != nil {
		t.Fatalf("Insert(%d, %q) failed: %v", batch, command, err)
	}
	return id
}

// commandsOf returns the command names of records, in order.
func commandsOf(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Command
	}
	return out
}
