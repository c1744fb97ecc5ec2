package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

// testEnv wires the services against in-memory repositories and an in-memory
// object store. The sqlite handle only provides transaction begin/commit for
// dbx.WithTx; the memory repositories ignore it.
type testEnv struct {
	db     *sql.DB
	repos  *repomanager.MemoryRepositoryManager
	store  *storage.MemoryStore
	events *capturePublisher

	files   *FileService
	uploads *UploadService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	env := &testEnv{
		db:     db,
		repos:  repomanager.NewMemoryRepositoryManager(),
		store:  storage.NewMemoryStore(),
		events: &capturePublisher{},
	}
	env.files = NewFileService(db, env.repos, env.store, env.events, logger, time.Minute)
	env.uploads = NewUploadService(db, env.repos, env.store, env.events, logger)
	return env
}

// uploadFile pushes content through the chunked upload path in a single
// chunk and completes it, returning the created entry.
func (e *testEnv) uploadFile(t *testing.T, ownerID, name string, parentID *string, content []byte, mimeType string) *models.Entry {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.uploads.SubmitChunk(ctx, ownerID, name, 0, 1, content))
	entry, err := e.uploads.CompleteUpload(ctx, ownerID, name, parentID, mimeType)
	require.NoError(t, err)
	return entry
}

type capturePublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *capturePublisher) Publish(ctx context.Context, ownerID string, event models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) byType(eventType models.EventType) []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Event
	for _, ev := range p.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// flakyStore fails the next failCopies Copy calls and delegates everything
// else. Used to verify that a half-done relocation never commits metadata.
type flakyStore struct {
	storage.ObjectStore
	mu         sync.Mutex
	failCopies int
}

func (f *flakyStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	f.mu.Lock()
	fail := f.failCopies > 0
	if fail {
		f.failCopies--
	}
	f.mu.Unlock()
	if fail {
		return errors.New("transient copy failure")
	}
	return f.ObjectStore.Copy(ctx, srcKey, dstKey)
}

func strPtr(s string) *string { return &s }
