package main

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DaphneDana/Matlab-app/internal/config"
	"github.com/DaphneDana/Matlab-app/internal/fixtures"
	"github.com/DaphneDana/Matlab-app/internal/jobs"
)

type closer func() error

func setupStore(cfg *config.Config) (jobs.Store, closer, error) {
	if cfg.JobStore != config.StoreRedis {
		return jobs.NewMemoryStore(cfg.JobTTL()), func() error { return nil }, nil
	}

	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(opt)
	return jobs.NewRedisStore(redisClient, cfg.JobTTL()), redisClient.Close, nil
}

func resultIDFor(view jobs.View) string {
	if view == jobs.ViewInput {
		return fixtures.NewResultID
	}
	return fixtures.HomeResultID
}

func setupJobs(cfg *config.Config, logger *zap.Logger) (*jobs.Manager, closer, error) {
	store, closeStore, err := setupStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	var runner jobs.Runner
	closeRunner := func() error { return nil }
	switch cfg.JobBackend {
	case config.BackendQueue:
		opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
		if err != nil {
			_ = closeStore()
			return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		queue := jobs.NewQueueRunner(opt, resultIDFor)
		runner = queue
		closeRunner = queue.Close
	default:
		runner = jobs.NewLocalRunner(nil, nil)
	}

	manager, err := jobs.NewManager(store, runner, jobs.ManagerOptions{
		TickInterval:    cfg.TickInterval(),
		CompletionDelay: cfg.CompletionDelay(),
		Logger:          logger.Named("jobs"),
		ResultIDFor:     resultIDFor,
	})
	if err != nil {
		return nil, nil, errors.Join(err, closeRunner(), closeStore())
	}
	return manager, func() error { return errors.Join(closeRunner(), closeStore()) }, nil
}
