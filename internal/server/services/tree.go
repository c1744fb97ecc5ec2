package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/events"
	"github.com/dmitrijs2005/gophdrive/internal/server/keys"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/entries"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

// FileService owns the metadata tree and every structural mutation of it.
type FileService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	store      storage.ObjectStore
	events     events.Publisher
	logger     logging.Logger
	presignTTL time.Duration

	// locks serializes structural mutations per entry id.
	locks *keyedMutex
}

func NewFileService(db *sql.DB, repos repomanager.RepositoryManager,
	store storage.ObjectStore, publisher events.Publisher,
	logger logging.Logger, presignTTL time.Duration) *FileService {
	return &FileService{
		db:         db,
		repos:      repos,
		store:      store,
		events:     publisher,
		logger:     logger.With("component", "files"),
		presignTTL: presignTTL,
		locks:      newKeyedMutex(),
	}
}

// parentPrefix resolves the key prefix a new child lives under: the owner
// root for a nil parent, the parent folder's key otherwise.
func parentPrefix(ctx context.Context, repo entries.Repository, ownerID string, parentID *string) (string, error) {
	if parentID == nil {
		return keys.RootPrefix(ownerID), nil
	}
	parent, err := repo.GetByID(ctx, ownerID, *parentID)
	if err != nil {
		return "", fmt.Errorf("parent %s: %w", *parentID, err)
	}
	if !parent.IsFolder {
		// a parent that is not a folder does not resolve as a parent at all
		return "", fmt.Errorf("%w: parent %s is not a folder", common.ErrNotFound, *parentID)
	}
	return parent.Key, nil
}

// ensureVacant verifies no live sibling of parentID already uses name.
func ensureVacant(ctx context.Context, repo entries.Repository, ownerID string, parentID *string, name string) error {
	_, err := repo.FindByName(ctx, ownerID, parentID, name)
	if err == nil {
		return fmt.Errorf("name %q: %w", name, common.ErrConflict)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}
	return nil
}

// CreateFolder creates an empty folder under parentID (nil for root). A
// zero-byte marker object is written at the folder key first so the prefix
// is visible in the bucket even before any file lands under it; the metadata
// row commits only after that write succeeds.
func (s *FileService) CreateFolder(ctx context.Context, ownerID, name string, parentID *string) (*models.Entry, error) {
	if err := keys.ValidateName(name); err != nil {
		return nil, err
	}

	repo := s.repos.Entries(s.db)
	prefix, err := parentPrefix(ctx, repo, ownerID, parentID)
	if err != nil {
		return nil, err
	}
	if err := ensureVacant(ctx, repo, ownerID, parentID, name); err != nil {
		return nil, err
	}

	key := keys.FolderKey(prefix, name)
	if err := s.store.Put(ctx, key, nil, ""); err != nil {
		return nil, err
	}

	entry := &models.Entry{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Name:     name,
		ParentID: parentID,
		IsFolder: true,
		Key:      key,
	}
	if err := repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, ownerID, models.Event{Type: models.EventEntryAdded, Entry: entry})
	return entry, nil
}

// GetEntry returns a single entry of the owner.
func (s *FileService) GetEntry(ctx context.Context, ownerID, id string) (*models.Entry, error) {
	return s.repos.Entries(s.db).GetByID(ctx, ownerID, id)
}

// FindByName looks up a direct child of parentID (nil for root) by name.
func (s *FileService) FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*models.Entry, error) {
	return s.repos.Entries(s.db).FindByName(ctx, ownerID, parentID, name)
}

// ListChildren lists the direct children of parentID (nil for root), folders
// before files, each group sorted by name.
func (s *FileService) ListChildren(ctx context.Context, ownerID string, parentID *string) ([]*models.Entry, error) {
	repo := s.repos.Entries(s.db)
	if parentID != nil {
		if _, err := parentPrefix(ctx, repo, ownerID, parentID); err != nil {
			return nil, err
		}
	}
	return repo.ListChildren(ctx, ownerID, parentID)
}

// Search returns files whose name or tags match the query.
func (s *FileService) Search(ctx context.Context, ownerID, query string, limit, offset int) ([]*models.Entry, error) {
	return s.repos.Entries(s.db).Search(ctx, ownerID, query, limit, offset)
}

// GetDownloadURL returns a presigned, time-limited download URL for a file.
func (s *FileService) GetDownloadURL(ctx context.Context, ownerID, id string) (string, error) {
	entry, err := s.repos.Entries(s.db).GetByID(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	if entry.IsFolder {
		return "", fmt.Errorf("%w: entry %s is a folder", common.ErrValidation, id)
	}
	return s.store.PresignGet(ctx, entry.Key, s.presignTTL)
}

// Delete removes an entry; for folders the whole subtree goes with it.
// Objects are deleted before the metadata rows: object deletion is
// idempotent, so a failure partway leaves a state where the same call simply
// succeeds on retry, and the tree never references a key that was deleted
// out from under it.
func (s *FileService) Delete(ctx context.Context, ownerID, id string) error {
	unlock := s.locks.Lock(ownerID + ":" + id)
	defer unlock()

	repo := s.repos.Entries(s.db)
	entry, err := repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}

	subtree := []*models.Entry{entry}
	if entry.IsFolder {
		subtree, err = repo.ListSubtree(ctx, ownerID, id)
		if err != nil {
			return err
		}
	}

	objectKeys := make([]string, 0, len(subtree))
	ids := make([]string, 0, len(subtree))
	for _, node := range subtree {
		objectKeys = append(objectKeys, node.Key)
		ids = append(ids, node.ID)
	}

	if err := s.store.DeleteMany(ctx, objectKeys); err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Entries(tx).DeleteByIDs(ctx, ownerID, ids)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "entry deleted", "owner", ownerID, "id", id, "entries", len(ids))
	s.events.Publish(ctx, ownerID, models.Event{Type: models.EventEntryDeleted, EntryID: id})
	return nil
}
