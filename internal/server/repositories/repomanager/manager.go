// Package repomanager hands out repositories bound to a database handle.
// Services pass either the shared *sql.DB or a transaction, which is how a
// multi-row metadata commit (folder move, cascade delete) stays atomic.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/entries"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/uploads"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Entries(db dbx.DBTX) entries.Repository
	Uploads(db dbx.DBTX) uploads.Repository
}
