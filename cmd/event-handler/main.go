package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/Subicson333/verify/internal/config"
	"github.com/Subicson333/verify/internal/events"
	"github.com/Subicson333/verify/internal/logger"
	appTemporal "github.com/Subicson333/verify/internal/temporal"
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

	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		zl.Fatal("connect minio", zap.Error(err))
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		zl.Fatal("connect temporal", zap.Error(err))
	}
	defer temporalClient.Close()

	source := events.NewMinioVendorInboxSource(minioClient, cfg.MinioBucket, cfg.VendorInboxPrefix)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zl.Info("event-handler listening for vendor results",
		zap.String("bucket", cfg.MinioBucket),
		zap.String("prefix", cfg.VendorInboxPrefix),
	)
	err = source.Run(ctx, func(parent context.Context, event events.VendorResultEvent) error {
		workflowID := appTemporal.VendorWorkflowID(cfg.WorkflowIDPrefix, event.ObjectKey)
		execCtx, cancel := context.WithTimeout(parent, 15*time.Second)
		defer cancel()

		_, startErr := temporalClient.ExecuteWorkflow(execCtx, client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: cfg.TemporalTaskQueue,
		}, appTemporal.VendorUpdateWorkflowName, appTemporal.VendorUpdateWorkflowInput{
			ObjectKey: event.ObjectKey,
		})
		if startErr != nil {
			var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
			if errors.As(startErr, &alreadyStarted) {
				zl.Info("workflow already started", zap.String("object_key", event.ObjectKey), zap.String("workflow_id", workflowID))
				return nil
			}
			return fmt.Errorf("start workflow for object %s: %w", event.ObjectKey, startErr)
		}

		zl.Info("started workflow", zap.String("workflow_id", workflowID), zap.String("object_key", event.ObjectKey))
		return nil
	})
	if err != nil {
		zl.Fatal("event-handler stopped with error", zap.Error(err))
	}
}
