// Package entries provides the PostgreSQL-backed repository for filesystem
// tree metadata.
package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// pgUniqueViolation is the SQLSTATE raised by the sibling-name unique index.
const pgUniqueViolation = "23505"

const entryColumns = `id, owner_id, name, parent_id, is_folder, key, size, mime_type, tags, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.Entry) error {
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	query := `
		INSERT INTO entries (id, owner_id, name, parent_id, is_folder, key, size, mime_type, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.OwnerID, entry.Name, entry.ParentID, entry.IsFolder,
		entry.Key, entry.Size, entry.MimeType, tags)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("entry %q: %w", entry.Name, common.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, ownerID, id string) (*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE owner_id=$1 AND id=$2`
	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, ownerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entry %q: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

func (r *PostgresRepository) FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE owner_id=$1 AND COALESCE(parent_id, '')=COALESCE($2::text, '') AND name=$3`
	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, ownerID, parentID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entry %q: %w", name, common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

func (r *PostgresRepository) ListChildren(ctx context.Context, ownerID string, parentID *string) ([]*models.Entry, error) {
	// Folders sort before files, then lexicographic by name. Clients render
	// the sequence directly.
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE owner_id=$1 AND COALESCE(parent_id, '')=COALESCE($2::text, '')
		ORDER BY is_folder DESC, name ASC`
	return r.selectEntries(ctx, query, ownerID, parentID)
}

func (r *PostgresRepository) ListSubtree(ctx context.Context, ownerID, rootID string) ([]*models.Entry, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT ` + entryColumns + ` FROM entries WHERE owner_id=$1 AND id=$2
			UNION ALL
			SELECT e.id, e.owner_id, e.name, e.parent_id, e.is_folder, e.key, e.size, e.mime_type, e.tags, e.created_at, e.updated_at
			FROM entries e JOIN subtree s ON e.parent_id = s.id
		)
		SELECT ` + entryColumns + ` FROM subtree`
	return r.selectEntries(ctx, query, ownerID, rootID)
}

func (r *PostgresRepository) UpdateLocation(ctx context.Context, ownerID, id string, parentID *string, key string) error {
	query := `UPDATE entries SET parent_id=$3, key=$4, updated_at=now() WHERE owner_id=$1 AND id=$2`
	return r.execOne(ctx, query, ownerID, id, parentID, key)
}

func (r *PostgresRepository) UpdateName(ctx context.Context, ownerID, id, name, key string) error {
	query := `UPDATE entries SET name=$3, key=$4, updated_at=now() WHERE owner_id=$1 AND id=$2`
	return r.execOne(ctx, query, ownerID, id, name, key)
}

func (r *PostgresRepository) RewriteKeyPrefix(ctx context.Context, ownerID, oldPrefix, newPrefix string) error {
	// left() comparison instead of LIKE: prefixes may contain LIKE
	// metacharacters coming from user-chosen names.
	query := `UPDATE entries
		SET key = $3 || substr(key, char_length($2) + 1), updated_at = now()
		WHERE owner_id = $1 AND left(key, char_length($2)) = $2`
	if _, err := r.db.ExecContext(ctx, query, ownerID, oldPrefix, newPrefix); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByIDs(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM entries WHERE owner_id=$1 AND id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, ownerID, ids); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Search(ctx context.Context, ownerID, query string, limit, offset int) ([]*models.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM entries
		WHERE owner_id=$1 AND is_folder = FALSE
		AND (name ILIKE '%' || $2 || '%' OR tags::text ILIKE '%' || $2 || '%')
		ORDER BY name ASC LIMIT $3 OFFSET $4`
	return r.selectEntries(ctx, q, ownerID, escapeLike(query), limit, offset)
}

// escapeLike neutralizes LIKE metacharacters in user-supplied search text so
// a query of "100%" matches the literal string, not every file.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *PostgresRepository) selectEntries(ctx context.Context, query string, args ...any) ([]*models.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		entry models.Entry
		tags  []byte
	)
	if err := row.Scan(
		&entry.ID, &entry.OwnerID, &entry.Name, &entry.ParentID, &entry.IsFolder,
		&entry.Key, &entry.Size, &entry.MimeType, &tags, &entry.CreatedAt, &entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &entry.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return &entry, nil
}
