package database

import (
	"context"
	"path/filepath"
	"testing"
)

// NewTestDatabase opens a migrated SQLite store in a temporary directory.
// The file is removed when the test completes.
func NewTestDatabase(t *testing.T, name string) *Database {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), name+".db")
	db, err := Open(context.Background(), name, DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("could not open test %s database: %v", name, err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate("up"); err != nil {
		t.Fatalf("could not migrate test %s database: %v", name, err)
	}

	return db
}

// NewTestStores opens both stores for tests that span them
func NewTestStores(t *testing.T) *Stores {
	t.Helper()
	return &Stores{
		Blog: NewTestDatabase(t, StoreBlog),
		Keys: NewTestDatabase(t, StoreKeys),
	}
}
