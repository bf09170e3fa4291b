// Package storagetest opens migrated throwaway databases for tests.
package storagetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"chapel/internal/adapters/storage"
)

// OpenDB returns a migrated temp-file database closed at test cleanup.
// A file is used instead of :memory: so every pooled connection sees the same data.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "chapel.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
