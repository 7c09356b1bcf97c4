// Package testutil provides shared test helpers for setting up document stores and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/ashby/guidepost/internal/docstore"
	"github.com/ashby/guidepost/internal/store"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "guidepost-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDocs creates a temporary document store rooted in a fresh directory.
func TestDocs(t *testing.T) (string, docstore.Store) {
	t.Helper()
	dir := t.TempDir()
	docs, err := docstore.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, docs
}
