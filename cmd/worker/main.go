package main

import (
	"context"
	"errors"
	"log"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/Subicson333/verify/internal/config"
	"github.com/Subicson333/verify/internal/lifecycle"
	"github.com/Subicson333/verify/internal/logger"
	"github.com/Subicson333/verify/internal/storage"
	appTemporal "github.com/Subicson333/verify/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.ValidateShared(); err != nil {
		log.Fatalf("worker config: %v", err)
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

	inbox, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket, cfg.SubmissionsPrefix)
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

	manager := lifecycle.NewManager(lifecycle.WithSLAThresholdDays(cfg.SLAThresholdDays))
	activities := &appTemporal.Activities{
		Inbox: inbox,
		Cases: lifecycle.NewService(repo, manager, zl),
	}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.VendorUpdateWorkflow, workflow.RegisterOptions{Name: appTemporal.VendorUpdateWorkflowName})
	w.RegisterWorkflowWithOptions(appTemporal.SLARefreshWorkflow, workflow.RegisterOptions{Name: appTemporal.SLARefreshWorkflowName})
	w.RegisterActivity(activities.FetchVendorUpdateActivity)
	w.RegisterActivity(activities.IngestVendorUpdateActivity)
	w.RegisterActivity(activities.RefreshSLARiskActivity)

	if err := scheduleSLARefresh(temporalClient, cfg); err != nil {
		zl.Fatal("schedule sla refresh", zap.Error(err))
	}

	zl.Info("worker running", zap.String("task_queue", cfg.TemporalTaskQueue))
	if err := w.Run(worker.InterruptCh()); err != nil {
		zl.Fatal("worker stopped with error", zap.Error(err))
	}
}

func scheduleSLARefresh(c client.Client, cfg config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           appTemporal.SLARefreshWorkflowID(cfg.WorkflowIDPrefix),
		TaskQueue:    cfg.TemporalTaskQueue,
		CronSchedule: cfg.SLARefreshCron,
	}, appTemporal.SLARefreshWorkflowName)
	var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
	if err != nil && !errors.As(err, &alreadyStarted) {
		return err
	}
	return nil
}
