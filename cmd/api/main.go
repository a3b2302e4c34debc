package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Subicson333/verify/internal/api"
	"github.com/Subicson333/verify/internal/config"
	"github.com/Subicson333/verify/internal/exceptions"
	"github.com/Subicson333/verify/internal/lifecycle"
	"github.com/Subicson333/verify/internal/logger"
	"github.com/Subicson333/verify/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repo, closeRepo, err := storage.OpenRepository(ctx, cfg)
	if err != nil {
		zl.Fatal("open repository", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer func() { _ = closeRepo() }()

	var submissions *storage.MinioStore
	if cfg.MinioAccessKey != "" {
		submissions, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket, cfg.SubmissionsPrefix)
		if err != nil {
			zl.Fatal("connect minio", zap.Error(err))
		}
	} else {
		zl.Warn("MINIO_ACCESS_KEY not set; verification submissions disabled")
	}

	manager := lifecycle.NewManager(lifecycle.WithSLAThresholdDays(cfg.SLAThresholdDays))
	svc := lifecycle.NewService(repo, manager, zl)
	detector := exceptions.NewDetector(cfg.SLAThresholdDays, cfg.StalledAfterDays, nil)

	// a nil *MinioStore must not reach the handler as a non-nil interface
	var h *api.Handler
	if submissions != nil {
		h = api.NewHandler(svc, detector, submissions, zl)
	} else {
		h = api.NewHandler(svc, detector, nil, zl)
	}
	router := api.NewRouter(h)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("api listening", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}
