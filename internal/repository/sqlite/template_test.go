package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/sakif/promo-studio/internal/repository"
	"github.com/sakif/promo-studio/internal/repository/repotest"
)

// newTestDB opens a fresh in-memory database that is closed with the test.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.TemplateRepository {
		return newTestDB(t)
	})
}

func TestNew_FileDatabaseSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promo.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// migrations must be idempotent
	db, err = New(path)
	if err != nil {
		t.Fatalf("reopening: New() error = %v", err)
	}
	db.Close()
}
