package uploads

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// MemoryRepository is an in-process Repository used by tests and the
// in-memory backend.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*models.PendingUpload
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*models.PendingUpload)}
}

func recordKey(ownerID, fileName string) string {
	return ownerID + "\x00" + fileName
}

func (r *MemoryRepository) Get(ctx context.Context, ownerID, fileName string) (*models.PendingUpload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[recordKey(ownerID, fileName)]
	if !ok {
		return nil, fmt.Errorf("upload %q: %w", fileName, common.ErrNotFound)
	}
	clone := *rec
	clone.UploadedChunks = append([]int(nil), rec.UploadedChunks...)
	return &clone, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, upload *models.PendingUpload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *upload
	clone.UploadedChunks = append([]int(nil), upload.UploadedChunks...)
	r.records[recordKey(upload.OwnerID, upload.FileName)] = &clone
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, ownerID, fileName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey(ownerID, fileName)
	if _, ok := r.records[key]; !ok {
		return fmt.Errorf("upload %q: %w", fileName, common.ErrNotFound)
	}
	delete(r.records, key)
	return nil
}

func (r *MemoryRepository) SelectStale(ctx context.Context, before time.Time) ([]*models.PendingUpload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*models.PendingUpload
	for _, rec := range r.records {
		if rec.LastUpdated.Before(before) {
			clone := *rec
			clone.UploadedChunks = append([]int(nil), rec.UploadedChunks...)
			result = append(result, &clone)
		}
	}
	return result, nil
}

// Len reports the number of stored records. Test helper.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
