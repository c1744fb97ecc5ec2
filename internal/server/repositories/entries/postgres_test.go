package entries

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

func entryRows(entries ...*models.Entry) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "name", "parent_id", "is_folder", "key",
		"size", "mime_type", "tags", "created_at", "updated_at",
	})
	for _, e := range entries {
		rows.AddRow(e.ID, e.OwnerID, e.Name, e.ParentID, e.IsFolder, e.Key,
			e.Size, e.MimeType, []byte(`["doc"]`), e.CreatedAt, e.UpdatedAt)
	}
	return rows
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO entries`).
		WithArgs("e1", "u1", "a.txt", nil, false, "u1/a.txt", int64(3), "text/plain", []byte(`["doc"]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Entry{
		ID: "e1", OwnerID: "u1", Name: "a.txt", Key: "u1/a.txt",
		Size: 3, MimeType: "text/plain", Tags: []string{"doc"},
	})
	assert.NoError(t, err)
}

func TestPostgresRepository_Create_SiblingNameTaken(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO entries`).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	err := repo.Create(context.Background(), &models.Entry{ID: "e1", OwnerID: "u1", Name: "a.txt"})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestPostgresRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	want := &models.Entry{
		ID: "e1", OwnerID: "u1", Name: "a.txt", Key: "u1/a.txt",
		Size: 3, MimeType: "text/plain", CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectQuery(`SELECT .+ FROM entries WHERE owner_id=\$1 AND id=\$2`).
		WithArgs("u1", "e1").
		WillReturnRows(entryRows(want))

	got, err := repo.GetByID(context.Background(), "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.Name)
	assert.Equal(t, []string{"doc"}, got.Tags)
}

func TestPostgresRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM entries WHERE owner_id=\$1 AND id=\$2`).
		WithArgs("u1", "missing").
		WillReturnRows(entryRows())

	_, err := repo.GetByID(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPostgresRepository_FindByName_RootLevel(t *testing.T) {
	repo, mock := newMockRepo(t)

	want := &models.Entry{ID: "e1", OwnerID: "u1", Name: "docs", IsFolder: true, Key: "u1/docs/"}
	mock.ExpectQuery(`SELECT .+ FROM entries\s+WHERE owner_id=\$1 AND COALESCE\(parent_id, ''\)=COALESCE\(\$2::text, ''\) AND name=\$3`).
		WithArgs("u1", nil, "docs").
		WillReturnRows(entryRows(want))

	got, err := repo.FindByName(context.Background(), "u1", nil, "docs")
	require.NoError(t, err)
	assert.True(t, got.IsFolder)
}

func TestPostgresRepository_ListChildren(t *testing.T) {
	repo, mock := newMockRepo(t)

	folder := &models.Entry{ID: "e1", OwnerID: "u1", Name: "docs", IsFolder: true, Key: "u1/docs/"}
	file := &models.Entry{ID: "e2", OwnerID: "u1", Name: "a.txt", Key: "u1/a.txt"}
	mock.ExpectQuery(`SELECT .+ FROM entries\s+WHERE owner_id=\$1 AND COALESCE\(parent_id, ''\)=COALESCE\(\$2::text, ''\)\s+ORDER BY is_folder DESC, name ASC`).
		WithArgs("u1", nil).
		WillReturnRows(entryRows(folder, file))

	got, err := repo.ListChildren(context.Background(), "u1", nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "docs", got[0].Name)
	assert.Equal(t, "a.txt", got[1].Name)
}

func TestPostgresRepository_ListSubtree(t *testing.T) {
	repo, mock := newMockRepo(t)

	root := &models.Entry{ID: "e1", OwnerID: "u1", Name: "docs", IsFolder: true, Key: "u1/docs/"}
	child := &models.Entry{ID: "e2", OwnerID: "u1", Name: "a.txt", Key: "u1/docs/a.txt"}
	mock.ExpectQuery(`WITH RECURSIVE subtree AS`).
		WithArgs("u1", "e1").
		WillReturnRows(entryRows(root, child))

	got, err := repo.ListSubtree(context.Background(), "u1", "e1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID, "root comes first")
}

func TestPostgresRepository_UpdateLocation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE entries SET parent_id=\$3, key=\$4, updated_at=now\(\)`).
		WithArgs("u1", "e1", nil, "u1/a.txt").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLocation(context.Background(), "u1", "e1", nil, "u1/a.txt")
	assert.NoError(t, err)
}

func TestPostgresRepository_UpdateName_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE entries SET name=\$3, key=\$4, updated_at=now\(\)`).
		WithArgs("u1", "missing", "b.txt", "u1/b.txt").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateName(context.Background(), "u1", "missing", "b.txt", "u1/b.txt")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPostgresRepository_RewriteKeyPrefix(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE entries`)).
		WithArgs("u1", "u1/a/", "u1/b/a/").
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := repo.RewriteKeyPrefix(context.Background(), "u1", "u1/a/", "u1/b/a/")
	assert.NoError(t, err)
}

func TestPostgresRepository_DeleteByIDs_EmptyIsNoop(t *testing.T) {
	repo, _ := newMockRepo(t)
	// no expectations: the repository must not touch the database
	assert.NoError(t, repo.DeleteByIDs(context.Background(), "u1", nil))
}

func TestPostgresRepository_Search(t *testing.T) {
	repo, mock := newMockRepo(t)

	file := &models.Entry{ID: "e1", OwnerID: "u1", Name: "report.pdf", Key: "u1/report.pdf"}
	mock.ExpectQuery(`SELECT .+ FROM entries\s+WHERE owner_id=\$1 AND is_folder = FALSE`).
		WithArgs("u1", "report", 10, 0).
		WillReturnRows(entryRows(file))

	got, err := repo.Search(context.Background(), "u1", "report", 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "report.pdf", got[0].Name)
}

func TestPostgresRepository_Search_EscapesLikeMetacharacters(t *testing.T) {
	repo, mock := newMockRepo(t)

	// "100%" must reach the database as a literal pattern, not a wildcard
	mock.ExpectQuery(`SELECT .+ FROM entries\s+WHERE owner_id=\$1 AND is_folder = FALSE`).
		WithArgs("u1", `100\%`, 10, 0).
		WillReturnRows(entryRows())

	_, err := repo.Search(context.Background(), "u1", "100%", 10, 0)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM entries\s+WHERE owner_id=\$1 AND is_folder = FALSE`).
		WithArgs("u1", `a\_b\\c`, 10, 0).
		WillReturnRows(entryRows())

	_, err = repo.Search(context.Background(), "u1", `a_b\c`, 10, 0)
	require.NoError(t, err)
}

func TestPostgresRepository_DBError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM entries`).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), "u1", "e1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNotFound)
}
