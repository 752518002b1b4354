package sqlite

import (
	"database/sql"
	"testing"
)

// OpenTestDB opens an in-memory attempt-log database with the schema
// migrated, closed when the test finishes. Tests across the module use it
// wherever a real [domain.AttemptLog] is wanted without a file on disk.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
