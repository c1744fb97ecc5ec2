// Package server initializes and runs the main application server.
// It connects the metadata database and the object store, wires the
// filesystem services, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/config"
	"github.com/dmitrijs2005/gophdrive/internal/server/events"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophdrive/internal/server/services"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

// shutdownTimeout bounds the drain of in-flight HTTP requests on exit.
const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	hub     *events.Hub
	files   *services.FileService
	uploads *services.UploadService
	janitor *services.Janitor
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := connectDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3RootUser,
		SecretKey:    cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	hub := events.NewHub(logger)

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		hub:     hub,
		files:   services.NewFileService(db, repos, store, hub, logger, cfg.PresignTTL),
		uploads: services.NewUploadService(db, repos, store, hub, logger),
		janitor: services.NewJanitor(db, repos, store, logger, cfg.JanitorInterval, cfg.JanitorStaleness),
	}, nil
}

// connectDB opens the pool and waits for the database to accept connections,
// backing off between attempts. Containerized deployments routinely start
// the server before Postgres is ready.
func connectDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Files exposes the tree service for the fronting transport layer.
func (app *App) Files() *services.FileService { return app.files }

// Uploads exposes the chunked upload coordinator for the fronting transport
// layer.
func (app *App) Uploads() *services.UploadService { return app.uploads }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startEventServer(ctx context.Context, cancelFunc context.CancelFunc) {

	mux := http.NewServeMux()
	mux.Handle("/events", app.hub)

	srv := &http.Server{Addr: app.config.EndpointAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		app.hub.Close()
	}()

	app.logger.Info(ctx, "event server listening", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.janitor.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startEventServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err)
	}
}
