// Command server starts the inkseal document-signing service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/inkseal/inkseal/internal/config"
	"github.com/inkseal/inkseal/internal/limiter"
	"github.com/inkseal/inkseal/internal/migrate"
	"github.com/inkseal/inkseal/internal/repository/postgres"
	httpserver "github.com/inkseal/inkseal/internal/server/http"
	"github.com/inkseal/inkseal/internal/service"
	"github.com/inkseal/inkseal/internal/stamp"
	"github.com/inkseal/inkseal/internal/storage"
	storagefs "github.com/inkseal/inkseal/internal/storage/fs"
	storagegcs "github.com/inkseal/inkseal/internal/storage/gcs"
	storagemem "github.com/inkseal/inkseal/internal/storage/memory"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, wires the dependency graph and
// serves HTTP until interrupted.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.ListenAddr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store", zap.Error(err))
	}

	// Repositories
	docRepo := postgres.NewDocumentRepo(db)
	sigRepo := postgres.NewSignatureRepo(db)
	auditRepo := postgres.NewAuditRepo(db)

	lim := limiter.NewPGWithQuerier(db.Pool, cfg.LimiterWindow, cfg.LimiterMaxFails, cfg.LimiterBlockFor)
	stamper := &stamp.Command{Path: cfg.StampCommand}

	// Services
	audit := service.NewAuditRecorder(auditRepo, logger)
	docSvc := service.NewDocumentService(docRepo, blobs, audit, logger, cfg.MaxUploadBytes)
	sigSvc := service.NewSignatureService(docRepo, sigRepo, blobs, audit, lim, logger, cfg.PublicBaseURL)
	finSvc := service.NewFinalizeService(docRepo, sigRepo, blobs, stamper, audit, lim)

	app := httpserver.New(docSvc, sigSvc, finSvc, audit, headerIdentity, logger, int64(cfg.MaxUploadBytes))

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: app.Router()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.StorageBackend {
	case "gcs":
		opts := []storagegcs.StoreOptionFunc{storagegcs.WithBucket(cfg.GCSBucket)}
		if cfg.GCSCredentials != "" {
			opts = append(opts, storagegcs.WithCredentialsFile(cfg.GCSCredentials))
		}
		return storagegcs.New(ctx, opts...)
	case "memory":
		return storagemem.New(), nil
	default:
		return storagefs.New(cfg.StorageDir)
	}
}

// headerIdentity trusts the owner ID asserted by the fronting auth proxy.
// Credential verification happens there, not in this process.
func headerIdentity(r *http.Request) (uuid.UUID, error) {
	return uuid.FromString(r.Header.Get("X-Owner-Id"))
}
