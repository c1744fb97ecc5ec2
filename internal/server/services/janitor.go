package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/keys"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/uploads"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

// Janitor reclaims abandoned uploads: records whose last chunk arrived
// longer than staleness ago lose their staged chunk objects and then the
// record itself.
type Janitor struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	store  storage.ObjectStore
	logger logging.Logger

	interval  time.Duration
	staleness time.Duration
}

func NewJanitor(db *sql.DB, repos repomanager.RepositoryManager, store storage.ObjectStore,
	logger logging.Logger, interval, staleness time.Duration) *Janitor {
	return &Janitor{
		db:        db,
		repos:     repos,
		store:     store,
		logger:    logger.With("component", "janitor"),
		interval:  interval,
		staleness: staleness,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	j.logger.Info(ctx, "janitor started", "interval", j.interval, "staleness", j.staleness)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Sweep(ctx); err != nil {
				j.logger.Error(ctx, "sweep finished with errors", "error", err)
			}
		case <-ctx.Done():
			j.logger.Info(ctx, "janitor stopped")
			return
		}
	}
}

// Sweep reclaims every stale upload once. A failing record is logged and
// skipped so one bad upload cannot shield the rest; the per-record errors
// are combined into the return value.
func (j *Janitor) Sweep(ctx context.Context) error {
	repo := j.repos.Uploads(j.db)

	stale, err := repo.SelectStale(ctx, time.Now().Add(-j.staleness))
	if err != nil {
		return err
	}

	var errs error
	for _, rec := range stale {
		if err := j.reclaim(ctx, repo, rec); err != nil {
			j.logger.Error(ctx, "reclaim failed",
				"owner", rec.OwnerID, "file", rec.FileName, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		j.logger.Info(ctx, "stale upload reclaimed",
			"owner", rec.OwnerID, "file", rec.FileName, "chunks", len(rec.UploadedChunks))
	}
	return errs
}

// reclaim deletes the staged chunk objects, then the record. Chunk deletion
// going first keeps the failure mode retryable: the record survives and the
// next sweep picks it up again.
func (j *Janitor) reclaim(ctx context.Context, repo uploads.Repository, rec *models.PendingUpload) error {
	chunkKeys := make([]string, 0, len(rec.UploadedChunks))
	for _, idx := range rec.UploadedChunks {
		chunkKeys = append(chunkKeys, keys.ChunkKey(rec.OwnerID, rec.FileName, idx))
	}
	if err := j.store.DeleteMany(ctx, chunkKeys); err != nil {
		return err
	}
	if err := repo.Delete(ctx, rec.OwnerID, rec.FileName); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	return nil
}
