package entries

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// MemoryRepository is an in-process Repository used by tests and the
// in-memory backend. It enforces the same sibling-name uniqueness the
// Postgres unique index does.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*models.Entry
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[string]*models.Entry)}
}

func (r *MemoryRepository) Create(ctx context.Context, entry *models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.OwnerID == entry.OwnerID && sameParent(e.ParentID, entry.ParentID) && e.Name == entry.Name {
			return fmt.Errorf("entry %q: %w", entry.Name, common.ErrConflict)
		}
	}
	clone := *entry
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	clone.UpdatedAt = clone.CreatedAt
	r.entries[clone.ID] = &clone
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, ownerID, id string) (*models.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.OwnerID != ownerID {
		return nil, fmt.Errorf("entry %q: %w", id, common.ErrNotFound)
	}
	clone := *e
	return &clone, nil
}

func (r *MemoryRepository) FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*models.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.OwnerID == ownerID && sameParent(e.ParentID, parentID) && e.Name == name {
			clone := *e
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("entry %q: %w", name, common.ErrNotFound)
}

func (r *MemoryRepository) ListChildren(ctx context.Context, ownerID string, parentID *string) ([]*models.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*models.Entry
	for _, e := range r.entries {
		if e.OwnerID == ownerID && sameParent(e.ParentID, parentID) {
			clone := *e
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].IsFolder != result[j].IsFolder {
			return result[i].IsFolder
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (r *MemoryRepository) ListSubtree(ctx context.Context, ownerID, rootID string) ([]*models.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	root, ok := r.entries[rootID]
	if !ok || root.OwnerID != ownerID {
		return nil, nil
	}
	var result []*models.Entry
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		e := r.entries[id]
		clone := *e
		result = append(result, &clone)
		for _, child := range r.entries {
			if child.OwnerID == ownerID && child.ParentID != nil && *child.ParentID == id {
				queue = append(queue, child.ID)
			}
		}
	}
	return result, nil
}

func (r *MemoryRepository) UpdateLocation(ctx context.Context, ownerID, id string, parentID *string, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.OwnerID != ownerID {
		return common.ErrNotFound
	}
	e.ParentID = parentID
	e.Key = key
	e.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) UpdateName(ctx context.Context, ownerID, id, name, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.OwnerID != ownerID {
		return common.ErrNotFound
	}
	e.Name = name
	e.Key = key
	e.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) RewriteKeyPrefix(ctx context.Context, ownerID, oldPrefix, newPrefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.OwnerID == ownerID && strings.HasPrefix(e.Key, oldPrefix) {
			e.Key = newPrefix + e.Key[len(oldPrefix):]
			e.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (r *MemoryRepository) DeleteByIDs(ctx context.Context, ownerID string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if e, ok := r.entries[id]; ok && e.OwnerID == ownerID {
			delete(r.entries, id)
		}
	}
	return nil
}

func (r *MemoryRepository) Search(ctx context.Context, ownerID, query string, limit, offset int) ([]*models.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := strings.ToLower(query)
	var matched []*models.Entry
	for _, e := range r.entries {
		if e.OwnerID != ownerID || e.IsFolder {
			continue
		}
		if strings.Contains(strings.ToLower(e.Name), needle) || tagsMatch(e.Tags, needle) {
			clone := *e
			matched = append(matched, &clone)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// Len reports the number of stored entries. Test helper.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func tagsMatch(tags []string, needle string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
