// Package uploads persists PendingUpload records, the durable state of
// in-flight chunked uploads. The chunked upload coordinator is the only
// writer; the janitor is the only other reader.
package uploads

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type Repository interface {
	// Get returns the record keyed by (ownerID, fileName), or
	// common.ErrNotFound.
	Get(ctx context.Context, ownerID, fileName string) (*models.PendingUpload, error)

	// Upsert inserts or fully replaces the record.
	Upsert(ctx context.Context, upload *models.PendingUpload) error

	// Delete removes the record. Returns common.ErrNotFound when no row was
	// deleted, which lets a losing concurrent completion observe the race.
	Delete(ctx context.Context, ownerID, fileName string) error

	// SelectStale returns every record with LastUpdated before the cutoff.
	SelectStale(ctx context.Context, before time.Time) ([]*models.PendingUpload, error)
}
