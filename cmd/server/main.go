// DraftDesk Gateway
//
// Features:
// - Prometheus metrics & structured logging (zap)
// - Attachment upload/preview/download/delete with opaque ids
// - Signed render grants for an external document renderer
// - Collaborative document persistence over websocket sessions
// - Local and S3 storage backends, optional PostgreSQL metadata
package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/draftdesk/draftdesk/internal/api"
	"github.com/draftdesk/draftdesk/internal/auth"
	"github.com/draftdesk/draftdesk/internal/blob"
	bloblocal "github.com/draftdesk/draftdesk/internal/blob/local"
	blobs3 "github.com/draftdesk/draftdesk/internal/blob/s3"
	"github.com/draftdesk/draftdesk/internal/collab"
	"github.com/draftdesk/draftdesk/internal/config"
	"github.com/draftdesk/draftdesk/internal/logging"
	"github.com/draftdesk/draftdesk/internal/metadata"
	metalocal "github.com/draftdesk/draftdesk/internal/metadata/local"
	"github.com/draftdesk/draftdesk/internal/metadata/postgres"
	"github.com/draftdesk/draftdesk/internal/metrics"
	"github.com/draftdesk/draftdesk/internal/registry"
	"github.com/draftdesk/draftdesk/internal/render"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("DraftDesk Gateway starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metadata and document stores: PostgreSQL when configured, local
	// sidecar files otherwise.
	var (
		metaStore metadata.Store
		docStore  collab.DocumentStore
		pgStore   *postgres.Store
	)
	if cfg.DatabaseURL != "" {
		logging.Info("connecting to PostgreSQL...")
		pgStore, err = postgres.New(cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("database connection failed", zap.Error(err))
		}

		migrationsDir := findMigrationsDir()
		if migrationsDir != "" {
			logging.Info("running migrations...", zap.String("dir", migrationsDir))
			if err := pgStore.Migrate(migrationsDir); err != nil {
				logging.Fatal("migration failed", zap.Error(err))
			}
		}

		metaStore = pgStore
		docStore = collab.NewPostgresStore(pgStore.DB())
	} else {
		logging.Info("no DATABASE_URL set, using local stores",
			zap.String("uploads", cfg.LocalStoragePath),
			zap.String("documents", cfg.LocalDocumentsPath))
		metaStore, err = metalocal.New(cfg.LocalStoragePath)
		if err != nil {
			logging.Fatal("metadata store init failed", zap.Error(err))
		}
		docStore, err = collab.NewLocalStore(cfg.LocalDocumentsPath)
		if err != nil {
			logging.Fatal("document store init failed", zap.Error(err))
		}
	}
	defer metaStore.Close()
	defer docStore.Close()

	// Blob backend
	var blobBackend blob.Backend
	if cfg.StorageBackend == "s3" {
		blobBackend, err = blobs3.New(ctx, blobs3.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	} else {
		blobBackend, err = bloblocal.New(bloblocal.Config{
			RootPath: cfg.LocalStoragePath,
		})
	}
	if err != nil {
		logging.Fatal("storage backend init failed", zap.Error(err))
	}
	defer blobBackend.Close()
	logging.Info("storage backend initialized", zap.String("type", blobBackend.Type()))

	reg := registry.New(metaStore, blobBackend, cfg.MaxUploadSize)

	// Auth: session domain for users, render domain for the renderer
	sessions, err := auth.NewSessionAuth(cfg.SessionSecret, cfg.AuthUsername,
		cfg.AuthPassword, cfg.SessionTokenTTL)
	if err != nil {
		logging.Fatal("session auth init failed", zap.Error(err))
	}
	renderVerifier := auth.NewVerifier(auth.DomainRender, cfg.RenderSecret)

	issuer := render.NewIssuer(cfg.RenderSecret, cfg.PublicBaseURL, cfg.GrantTTL)

	// Collaboration hub
	bridge := collab.NewBridge(docStore)
	hub := collab.NewHub(bridge, cfg.CollabSaveInterval)

	srv := api.NewServer(reg, sessions, renderVerifier, issuer,
		docStore, hub, cfg.MaxUploadFiles)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP(S) server
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	useTLS := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	// Graceful shutdown: flush collaboration sessions before closing
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")

		flushCtx, flushCancel := context.WithTimeout(context.Background(), 15*time.Second)
		hub.Close(flushCtx)
		flushCancel()

		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	// Periodic metrics update
	if pgStore != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pgStore.UpdateConnectionMetrics()
				}
			}
		}()
	}

	if useTLS {
		logging.Info("server listening with TLS", zap.String("addr", cfg.ListenAddr))
		err = httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	} else {
		logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
		err = httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
	logging.Info("server stopped")
}

func findMigrationsDir() string {
	candidates := []string{
		"migrations",
		"../migrations",
	}

	exe, _ := os.Executable()
	if exe != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "migrations"))
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
