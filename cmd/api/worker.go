package main

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DaphneDana/Matlab-app/internal/config"
	"github.com/DaphneDana/Matlab-app/internal/jobs"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run simulation tasks from the Redis queue",
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.JobBackend != config.BackendQueue {
		return errors.New("worker requires JOB_BACKEND=queue")
	}
	if cfg.JobStore != config.StoreRedis {
		return errors.New("worker requires JOB_STORE=redis so that the API can read progress")
	}

	store, closeStore, err := setupStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}

	worker, err := jobs.NewWorker(opt, store, jobs.WorkerOptions{
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger.Named("worker"),
	})
	if err != nil {
		return err
	}

	logger.Info("Starting simulation worker",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.String("queue", jobs.QueueName))
	// asynq サーバーが SIGINT/SIGTERM を受けて停止します。
	return worker.Run()
}
