package uploads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, fileName string) (*models.PendingUpload, error) {
	query := `SELECT owner_id, file_name, chunk_count, uploaded_chunks, started_at, last_updated
		FROM pending_uploads WHERE owner_id=$1 AND file_name=$2`

	var (
		upload models.PendingUpload
		chunks []byte
	)
	err := r.db.QueryRowContext(ctx, query, ownerID, fileName).Scan(
		&upload.OwnerID, &upload.FileName, &upload.ChunkCount, &chunks,
		&upload.StartedAt, &upload.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("upload %q: %w", fileName, common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(chunks, &upload.UploadedChunks); err != nil {
		return nil, fmt.Errorf("unmarshal chunks: %w", err)
	}
	return &upload, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, upload *models.PendingUpload) error {
	chunks, err := json.Marshal(upload.UploadedChunks)
	if err != nil {
		return fmt.Errorf("marshal chunks: %w", err)
	}
	query := `
		INSERT INTO pending_uploads (owner_id, file_name, chunk_count, uploaded_chunks, started_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, file_name)
		DO UPDATE SET
			chunk_count = EXCLUDED.chunk_count,
			uploaded_chunks = EXCLUDED.uploaded_chunks,
			last_updated = EXCLUDED.last_updated
	`
	_, err = r.db.ExecContext(ctx, query,
		upload.OwnerID, upload.FileName, upload.ChunkCount, chunks,
		upload.StartedAt, upload.LastUpdated)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, fileName string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_uploads WHERE owner_id=$1 AND file_name=$2`, ownerID, fileName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("upload %q: %w", fileName, common.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) SelectStale(ctx context.Context, before time.Time) ([]*models.PendingUpload, error) {
	query := `SELECT owner_id, file_name, chunk_count, uploaded_chunks, started_at, last_updated
		FROM pending_uploads WHERE last_updated < $1`
	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PendingUpload
	for rows.Next() {
		var (
			upload models.PendingUpload
			chunks []byte
		)
		if err := rows.Scan(
			&upload.OwnerID, &upload.FileName, &upload.ChunkCount, &chunks,
			&upload.StartedAt, &upload.LastUpdated,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(chunks, &upload.UploadedChunks); err != nil {
			return nil, fmt.Errorf("unmarshal chunks: %w", err)
		}
		result = append(result, &upload)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
