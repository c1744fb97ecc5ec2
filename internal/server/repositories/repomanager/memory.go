package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/entries"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/uploads"
)

// MemoryRepositoryManager returns the same in-memory repositories regardless
// of the database handle. Used by tests that exercise services end to end.
type MemoryRepositoryManager struct {
	entries *entries.MemoryRepository
	uploads *uploads.MemoryRepository
}

var _ RepositoryManager = (*MemoryRepositoryManager)(nil)

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		entries: entries.NewMemoryRepository(),
		uploads: uploads.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Entries(db dbx.DBTX) entries.Repository {
	return m.entries
}

func (m *MemoryRepositoryManager) Uploads(db dbx.DBTX) uploads.Repository {
	return m.uploads
}
