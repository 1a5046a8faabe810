// Package testutil provides helpers for tests: a migrated SQLite database
// per test, fixtures and assertions.
package testutil

import (
	"path/filepath"
	"testing"

	"trafficnotes/internal/database"
)

// SetupTestDB creates a fresh migrated SQLite database in a temp dir. It is
// closed automatically when the test ends.
func SetupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	return db
}
