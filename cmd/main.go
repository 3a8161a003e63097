package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/craftbridge/catalog-backend/internal/config"
	"github.com/craftbridge/catalog-backend/internal/dispatch"
	apphttp "github.com/craftbridge/catalog-backend/internal/http"
	"github.com/craftbridge/catalog-backend/internal/http/handlers"
	"github.com/craftbridge/catalog-backend/internal/observability"
	"github.com/craftbridge/catalog-backend/internal/platform/locker"
	"github.com/craftbridge/catalog-backend/internal/platform/logger"
	"github.com/craftbridge/catalog-backend/internal/platform/objectstore"
	"github.com/craftbridge/catalog-backend/internal/status"
	"github.com/craftbridge/catalog-backend/internal/store"
	"github.com/craftbridge/catalog-backend/internal/transport"
	"github.com/craftbridge/catalog-backend/internal/upload"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Config load failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "catalog-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})

	// Store
	storeService, err := store.NewService(log, cfg.Store)
	if err != nil {
		log.Fatal("Store init failed", "error", err)
	}
	if err := storeService.AutoMigrateAll(); err != nil {
		log.Fatal("Store auto migration failed", "error", err)
	}
	db := storeService.DB()

	// Repos
	sessionRepo := store.NewSessionRepo(db, log)
	catalogRepo := store.NewCatalogRepo(db, log)

	// Redis
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis ping failed", "addr", cfg.Redis.Addr, "error", err)
	}

	// Object storage
	objects, err := objectstore.NewGCSStore(log, cfg.Bucket)
	if err != nil {
		log.Fatal("Object store init failed", "error", err)
	}

	// Completion lock
	locks, err := locker.NewRedisLocker(log, rdb)
	if err != nil {
		log.Fatal("Locker init failed", "error", err)
	}

	// Transport + dispatcher
	tp, err := transport.NewRedisStreamTransport(log, rdb, cfg.StreamPrefix, cfg.DedupWindow)
	if err != nil {
		log.Fatal("Transport init failed", "error", err)
	}
	dispatcher := dispatch.New(log, cfg, tp)

	// Services
	manager := upload.NewManager(log, cfg, sessionRepo, catalogRepo, objects, dispatcher, locks)
	projector := status.New(log, catalogRepo)

	// Expiry sweeper
	expirer := upload.NewExpirer(log, sessionRepo, manager, cfg.SweepInterval)
	go func() {
		if err := expirer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Expirer stopped", "error", err)
		}
	}()

	// HTTP
	server := apphttp.NewServer(apphttp.RouterConfig{
		Log:           log,
		UploadHandler: handlers.NewUploadHandler(manager),
		StatusHandler: handlers.NewStatusHandler(projector),
		HealthHandler: handlers.NewHealthHandler(),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		errCh <- server.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown failed", "error", err)
	}
	if otelShutdown != nil {
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn("Otel shutdown failed", "error", err)
		}
	}
	if err := rdb.Close(); err != nil {
		log.Warn("Redis close failed", "error", err)
	}
	log.Info("Shutdown complete")
}
