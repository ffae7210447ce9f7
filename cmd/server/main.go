package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bizdesk/backend/internal/cache"
	"bizdesk/backend/internal/catalog"
	"bizdesk/backend/internal/config"
	"bizdesk/backend/internal/httpapi"
	"bizdesk/backend/internal/logging"
	"bizdesk/backend/internal/metrics"
	"bizdesk/backend/internal/service"
	"bizdesk/backend/internal/store"
	"bizdesk/backend/internal/store/memory"
	pgstore "bizdesk/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(logging.Config{
		ServiceName: "bizdesk-backend",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	application, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           application.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("bizdesk backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	application.close(logger)

	logger.Info("server stopped")
}

type app struct {
	handler http.Handler
	closers []func() error
}

// newApp wires the repository, caches and HTTP API from cfg. Postgres and
// Redis are used when configured; otherwise everything runs in process.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			a.close(logger)
			return nil, err
		}
		repo = pg
		logger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded(logger)
		logger.Info("repository: in-memory")
	}

	var snapshots cache.SnapshotCache = cache.NoopSnapshotCache{}
	var drafts cache.DraftStore = cache.NewMemoryDraftStore()
	if cfg.RedisAddr != "" {
		redisClient := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, drafts and snapshots stay in process", zap.Error(err))
			_ = redisClient.Close()
		} else {
			snapshots = redisClient.Snapshots()
			drafts = redisClient.Drafts()
			a.closers = append(a.closers, redisClient.Close)
			logger.Info("cache: redis")
		}
	} else {
		logger.Info("cache: in-process")
	}

	m := metrics.New()
	loader := catalog.NewLoader(repo, snapshots, cfg.CatalogCacheTTL(), logger)
	svc := service.New(repo, service.Options{
		Catalog:            loader,
		Drafts:             drafts,
		DraftTTL:           cfg.DraftTTL(),
		Metrics:            m,
		Logger:             logger,
		DefaultSalesPerson: cfg.DefaultSalesPerson,
	})
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, cfg.AccessTokenTTL(), repo, logger)
	api := httpapi.New(svc, auth, m, logger, cfg.AllowedOrigin)

	a.handler = api.Handler()
	return a, nil
}

func (a *app) close(logger *zap.Logger) {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}
	a.closers = nil
}
