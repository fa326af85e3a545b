package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/DaphneDana/Matlab-app/internal/simulator"
)

// WorkerOptions はワーカーの設定です。
type WorkerOptions struct {
	Concurrency int
	Scheduler   simulator.Scheduler
	Random      simulator.RandomSource
	Logger      *zap.Logger
}

// Worker は Asynq からシミュレーションタスクを受け取り、進捗をストアへ書き込みます。
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	store  Store
	sched  simulator.Scheduler
	rnd    simulator.RandomSource
	logger *zap.Logger
}

// NewWorker は Worker を初期化します。opt が nil の場合はサーバーを作らずハンドラのみ提供します。
func NewWorker(opt asynq.RedisConnOpt, store Store, opts WorkerOptions) (*Worker, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	w := &Worker{
		mux:    asynq.NewServeMux(),
		store:  store,
		sched:  opts.Scheduler,
		rnd:    opts.Random,
		logger: logger,
	}
	if opt != nil {
		w.server = asynq.NewServer(opt, asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueName: 1,
			},
			Logger: logger.Sugar(),
		})
	}
	w.mux.HandleFunc(TaskTypeSimulate, w.HandleSimulationTask)
	return w, nil
}

// Run はシャットダウンシグナルを受けるまでタスクを処理します。
func (w *Worker) Run() error {
	if w.server == nil {
		return errors.New("worker has no queue connection")
	}
	if err := w.server.Run(w.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		return fmt.Errorf("asynq server stopped: %w", err)
	}
	return nil
}

// Shutdown はサーバーを停止します。
func (w *Worker) Shutdown() {
	if w.server != nil {
		w.server.Shutdown()
	}
}

// HandleSimulationTask はシミュレーターを完了まで、または ctx がキャンセルされるまで動かします。
func (w *Worker) HandleSimulationTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}

	profile, err := simulator.ProfileByName(payload.Profile)
	if err != nil {
		return err
	}
	profile = profile.WithTiming(
		time.Duration(payload.TickMillis)*time.Millisecond,
		time.Duration(payload.CompletionMillis)*time.Millisecond,
	)

	done := make(chan simulator.State, 1)
	sim, err := simulator.New(profile, simulator.Options{
		Scheduler: w.sched,
		Random:    w.rnd,
		OnProgress: func(st simulator.State) {
			if err := w.store.UpdateProgress(ctx, payload.JobID, progressFromState(st)); err != nil {
				w.logger.Warn("failed to update progress", zap.String("job_id", payload.JobID), zap.Error(err))
			}
		},
		OnComplete: func(st simulator.State) {
			done <- st
		},
	})
	if err != nil {
		return err
	}

	always := simulator.PreconditionFunc(func() bool { return true })
	if outcome := sim.Start(always); outcome != simulator.OutcomeStarted {
		return fmt.Errorf("simulator did not start: %s", outcome)
	}
	w.logger.Info("simulation task started", zap.String("job_id", payload.JobID), zap.String("profile", profile.Name))

	select {
	case st := <-done:
		if err := w.store.MarkDone(ctx, payload.JobID, payload.ResultID); err != nil {
			return fmt.Errorf("mark job done: %w", err)
		}
		w.logger.Info("simulation task completed", zap.String("job_id", payload.JobID), zap.Int("ticks", st.Ticks))
		return nil
	case <-ctx.Done():
		sim.Cancel()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()
		if err := w.store.MarkCancelled(cleanupCtx, payload.JobID); err != nil && !errors.Is(err, ErrJobNotFound) {
			w.logger.Warn("failed to mark job cancelled", zap.String("job_id", payload.JobID), zap.Error(err))
		}
		w.logger.Info("simulation task cancelled", zap.String("job_id", payload.JobID))
		return ctx.Err()
	}
}
