package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chainql/internal/testutil"
)

// createTestStore creates a store in a temp dir with deterministic IDs
// and revisions.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(testutil.SequentialIDs("id", 32)),
		WithClock(testutil.NewDeterministicClock()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedCooks loads a small Cooks table.
func seedCooks(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Exec(ctx, `CREATE TABLE Cooks (ID INTEGER PRIMARY KEY, Name TEXT, Age INTEGER, Active BOOLEAN)`))
	for _, c := range []struct {
		id     int64
		name   string
		age    int64
		active bool
	}{
		{1, "Ada", 34, true},
		{2, "Brian", 19, false},
		{3, "Chen", 52, true},
	} {
		require.NoError(t, s.Exec(ctx, `INSERT INTO Cooks (ID, Name, Age, Active) VALUES (?, ?, ?, ?)`, c.id, c.name, c.age, c.active))
	}
}
