package entries

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// Repository is the persistence contract for the filesystem tree. The
// sibling-name uniqueness invariant is enforced here (backed by a unique
// index in the Postgres implementation); structural consistency of keys is
// the services layer's job.
type Repository interface {
	// Create inserts a new entry. Returns common.ErrConflict when a live
	// sibling with the same name exists.
	Create(ctx context.Context, entry *models.Entry) error

	// GetByID returns the entry owned by ownerID, or common.ErrNotFound.
	GetByID(ctx context.Context, ownerID, id string) (*models.Entry, error)

	// FindByName looks up a child of parentID (nil for root) by name.
	// Returns common.ErrNotFound when absent.
	FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*models.Entry, error)

	// ListChildren returns the children of parentID (nil for root), folders
	// before files, each group ordered by name. The ordering is a contract
	// consumed directly by clients.
	ListChildren(ctx context.Context, ownerID string, parentID *string) ([]*models.Entry, error)

	// ListSubtree returns rootID and every descendant, root first.
	ListSubtree(ctx context.Context, ownerID, rootID string) ([]*models.Entry, error)

	// UpdateLocation rewrites parent and key of a single entry.
	UpdateLocation(ctx context.Context, ownerID, id string, parentID *string, key string) error

	// UpdateName rewrites name and key of a single entry.
	UpdateName(ctx context.Context, ownerID, id, name, key string) error

	// RewriteKeyPrefix substitutes oldPrefix with newPrefix in every key of
	// the owner that starts with oldPrefix. Combined with UpdateLocation in
	// one transaction this commits a folder move over the whole subtree.
	RewriteKeyPrefix(ctx context.Context, ownerID, oldPrefix, newPrefix string) error

	// DeleteByIDs removes the given entries of the owner.
	DeleteByIDs(ctx context.Context, ownerID string, ids []string) error

	// Search returns files (never folders) whose name or tags contain the
	// query, case-insensitively.
	Search(ctx context.Context, ownerID, query string, limit, offset int) ([]*models.Entry, error)
}
