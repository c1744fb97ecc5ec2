package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/keys"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// Move reparents an entry under newParentID (nil for root). Objects are
// copied to their new keys first, metadata commits in one transaction, and
// the old objects are deleted last; a failure before the commit leaves the
// tree pointing at the old, still-present objects.
func (s *FileService) Move(ctx context.Context, ownerID, id string, newParentID *string) (*models.Entry, error) {
	unlock := s.locks.Lock(ownerID + ":" + id)
	defer unlock()

	repo := s.repos.Entries(s.db)
	entry, err := repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	destPrefix, err := parentPrefix(ctx, repo, ownerID, newParentID)
	if err != nil {
		return nil, err
	}
	// Folder keys are prefixes of their descendants' keys, so a destination
	// inside the moved subtree (the folder itself included) shows up as a
	// prefix match.
	if entry.IsFolder && strings.HasPrefix(destPrefix, entry.Key) {
		return nil, fmt.Errorf("%w: cannot move folder %q into its own subtree", common.ErrValidation, entry.Name)
	}

	var newKey string
	if entry.IsFolder {
		newKey = keys.FolderKey(destPrefix, entry.Name)
	} else {
		newKey = keys.FileKey(destPrefix, entry.Name)
	}
	if newKey == entry.Key {
		// moving to the current parent; nothing to do
		return entry, nil
	}

	if err := ensureVacant(ctx, repo, ownerID, newParentID, entry.Name); err != nil {
		return nil, err
	}

	oldKeys, err := s.relocate(ctx, entry, newKey, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Entries(tx).UpdateLocation(ctx, ownerID, id, newParentID, newKey)
	})
	if err != nil {
		return nil, err
	}
	s.cleanupObjects(ctx, ownerID, oldKeys)

	entry.ParentID = newParentID
	entry.Key = newKey
	s.logger.Info(ctx, "entry moved", "owner", ownerID, "id", id, "key", newKey)
	s.events.Publish(ctx, ownerID, models.Event{Type: models.EventEntryMoved, Entry: entry})
	return entry, nil
}

// Rename changes an entry's display name, rewriting only the leaf segment of
// its key (and, for folders, of every descendant key). Same copy-first,
// commit, delete-last sequence as Move.
func (s *FileService) Rename(ctx context.Context, ownerID, id, newName string) (*models.Entry, error) {
	if err := keys.ValidateName(newName); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(ownerID + ":" + id)
	defer unlock()

	repo := s.repos.Entries(s.db)
	entry, err := repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if entry.Name == newName {
		return entry, nil
	}

	if err := ensureVacant(ctx, repo, ownerID, entry.ParentID, newName); err != nil {
		return nil, err
	}

	newKey, err := keys.ReplaceLeaf(entry.Key, newName)
	if err != nil {
		return nil, err
	}

	oldKeys, err := s.relocate(ctx, entry, newKey, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Entries(tx).UpdateName(ctx, ownerID, id, newName, newKey)
	})
	if err != nil {
		return nil, err
	}
	s.cleanupObjects(ctx, ownerID, oldKeys)

	entry.Name = newName
	entry.Key = newKey
	s.logger.Info(ctx, "entry renamed", "owner", ownerID, "id", id, "key", newKey)
	s.events.Publish(ctx, ownerID, models.Event{Type: models.EventEntryMoved, Entry: entry})
	return entry, nil
}

// relocate carries out the shared mechanics of Move and Rename: copy every
// affected object from its current key to the one derived from newKey, then
// commit the metadata in one transaction (the caller-supplied update for the
// entry itself, plus the subtree prefix rewrite for folders). It returns the
// superseded object keys for post-commit cleanup.
func (s *FileService) relocate(ctx context.Context, entry *models.Entry, newKey string,
	updateSelf func(ctx context.Context, tx dbx.DBTX) error) ([]string, error) {

	repo := s.repos.Entries(s.db)

	subtree := []*models.Entry{entry}
	if entry.IsFolder {
		var err error
		subtree, err = repo.ListSubtree(ctx, entry.OwnerID, entry.ID)
		if err != nil {
			return nil, err
		}
	}

	oldKeys := make([]string, 0, len(subtree))
	for _, node := range subtree {
		dst, err := keys.RewritePrefix(node.Key, entry.Key, newKey)
		if err != nil {
			return nil, err
		}
		if err := s.store.Copy(ctx, node.Key, dst); err != nil {
			return nil, fmt.Errorf("copy %q: %w", node.Key, err)
		}
		oldKeys = append(oldKeys, node.Key)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := s.repos.Entries(tx)
		if entry.IsFolder {
			if err := txRepo.RewriteKeyPrefix(ctx, entry.OwnerID, entry.Key, newKey); err != nil {
				return err
			}
		}
		return updateSelf(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return oldKeys, nil
}

// cleanupObjects removes superseded objects after a successful metadata
// commit. Best-effort: a failure leaves duplicates that no key references,
// which is cheaper to tolerate than to roll back a committed move.
func (s *FileService) cleanupObjects(ctx context.Context, ownerID string, objectKeys []string) {
	if err := s.store.DeleteMany(ctx, objectKeys); err != nil {
		s.logger.Warn(ctx, "cleanup of superseded objects failed",
			"owner", ownerID, "keys", len(objectKeys), "error", err)
	}
}
