package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/events"
	"github.com/dmitrijs2005/gophdrive/internal/server/keys"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

// fetchConcurrency caps parallel chunk downloads during reassembly.
const fetchConcurrency = 8

const defaultMimeType = "application/octet-stream"

// UploadService coordinates chunked uploads: chunks arrive in any order,
// possibly duplicated, and each upload finalizes into exactly one entry.
type UploadService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	store  storage.ObjectStore
	events events.Publisher
	logger logging.Logger

	// locks serializes chunk submissions and completion per (owner, file).
	locks *keyedMutex
}

func NewUploadService(db *sql.DB, repos repomanager.RepositoryManager,
	store storage.ObjectStore, publisher events.Publisher, logger logging.Logger) *UploadService {
	return &UploadService{
		db:     db,
		repos:  repos,
		store:  store,
		events: publisher,
		logger: logger.With("component", "uploads"),
		locks:  newKeyedMutex(),
	}
}

func uploadLockKey(ownerID, fileName string) string {
	return ownerID + ":" + fileName
}

// SubmitChunk stages one chunk of an in-flight upload. The first chunk of a
// file creates the tracking record; every later one must declare the same
// total. Resubmitting an index overwrites the staged object and leaves the
// record's chunk set unchanged.
func (s *UploadService) SubmitChunk(ctx context.Context, ownerID, fileName string, chunkIndex, totalChunks int, data []byte) error {
	if err := keys.ValidateName(fileName); err != nil {
		return err
	}
	if totalChunks <= 0 {
		return fmt.Errorf("%w: total chunks %d", common.ErrInvalidChunk, totalChunks)
	}
	if chunkIndex < 0 || chunkIndex >= totalChunks {
		return fmt.Errorf("%w: index %d out of range [0, %d)", common.ErrInvalidChunk, chunkIndex, totalChunks)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty chunk %d", common.ErrInvalidChunk, chunkIndex)
	}

	unlock := s.locks.Lock(uploadLockKey(ownerID, fileName))
	defer unlock()

	repo := s.repos.Uploads(s.db)
	now := time.Now()

	rec, err := repo.Get(ctx, ownerID, fileName)
	switch {
	case err == nil:
		if rec.ChunkCount != totalChunks {
			return fmt.Errorf("%w: declared %d chunks, upload expects %d",
				common.ErrInvalidChunk, totalChunks, rec.ChunkCount)
		}
	case errors.Is(err, common.ErrNotFound):
		rec = &models.PendingUpload{
			OwnerID:    ownerID,
			FileName:   fileName,
			ChunkCount: totalChunks,
			StartedAt:  now,
		}
	default:
		return err
	}

	if err := s.store.Put(ctx, keys.ChunkKey(ownerID, fileName, chunkIndex), data, ""); err != nil {
		return err
	}

	if !rec.HasChunk(chunkIndex) {
		rec.UploadedChunks = append(rec.UploadedChunks, chunkIndex)
	}
	rec.LastUpdated = now
	return repo.Upsert(ctx, rec)
}

// CompleteUpload reassembles a fully-uploaded file into its final object and
// creates the entry. The sequence is ordered for crash safety: fetch chunks,
// write the final object at the key derived from the target folder, delete
// the staged chunks, create the entry, drop the tracking record. Up to the
// final write, every failure leaves the record and chunks intact, so the
// call is retryable.
func (s *UploadService) CompleteUpload(ctx context.Context, ownerID, fileName string, parentID *string, mimeType string) (*models.Entry, error) {
	unlock := s.locks.Lock(uploadLockKey(ownerID, fileName))
	defer unlock()

	upRepo := s.repos.Uploads(s.db)
	rec, err := upRepo.Get(ctx, ownerID, fileName)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// no record: never started, reclaimed, or already completed
			return nil, fmt.Errorf("upload %q: %w", fileName, common.ErrIncompleteUpload)
		}
		return nil, err
	}
	if !rec.Complete() {
		return nil, fmt.Errorf("upload %q: %d of %d chunks: %w",
			fileName, len(rec.UploadedChunks), rec.ChunkCount, common.ErrIncompleteUpload)
	}

	entRepo := s.repos.Entries(s.db)
	prefix, err := parentPrefix(ctx, entRepo, ownerID, parentID)
	if err != nil {
		return nil, err
	}
	if err := ensureVacant(ctx, entRepo, ownerID, parentID, fileName); err != nil {
		return nil, err
	}

	content, err := s.assemble(ctx, rec)
	if err != nil {
		return nil, err
	}

	if mimeType == "" {
		mimeType = defaultMimeType
	}
	finalKey := keys.FileKey(prefix, fileName)
	if err := s.store.Put(ctx, finalKey, content, mimeType); err != nil {
		return nil, err
	}

	// The final object is durable; chunks are now redundant. Cleanup failure
	// is logged and left to the janitor rather than failing the completion.
	chunkKeys := make([]string, rec.ChunkCount)
	for i := range chunkKeys {
		chunkKeys[i] = keys.ChunkKey(ownerID, fileName, i)
	}
	if err := s.store.DeleteMany(ctx, chunkKeys); err != nil {
		s.logger.Warn(ctx, "chunk cleanup failed", "owner", ownerID, "file", fileName, "error", err)
	}

	entry := &models.Entry{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Name:     fileName,
		ParentID: parentID,
		Key:      finalKey,
		Size:     int64(len(content)),
		MimeType: mimeType,
		Tags:     deriveTags(fileName, mimeType),
	}
	if err := entRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := upRepo.Delete(ctx, ownerID, fileName); err != nil {
		s.logger.Warn(ctx, "dropping upload record failed", "owner", ownerID, "file", fileName, "error", err)
	}

	s.logger.Info(ctx, "upload completed", "owner", ownerID, "file", fileName, "size", entry.Size)
	s.events.Publish(ctx, ownerID, models.Event{Type: models.EventEntryAdded, Entry: entry})
	return entry, nil
}

// assemble fetches every staged chunk concurrently and concatenates them in
// strict index order.
func (s *UploadService) assemble(ctx context.Context, rec *models.PendingUpload) ([]byte, error) {
	parts := make([][]byte, rec.ChunkCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i := 0; i < rec.ChunkCount; i++ {
		g.Go(func() error {
			data, err := s.store.Get(gctx, keys.ChunkKey(rec.OwnerID, rec.FileName, i))
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			parts[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, part := range parts {
		buf.Write(part)
	}
	return buf.Bytes(), nil
}
