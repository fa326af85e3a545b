package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/DaphneDana/Matlab-app/internal/simulator"
)

const (
	// TaskTypeSimulate はシミュレーションタスクの種別です。
	TaskTypeSimulate = "analysis:simulate"
	// QueueName はシミュレーションタスクを投入するキューです。
	QueueName = "analysis"

	taskTimeout = 10 * time.Minute
)

// TaskPayload はシミュレーションタスクのペイロードです。
type TaskPayload struct {
	JobID            string `json:"jobId"`
	Profile          string `json:"profile"`
	TickMillis       int64  `json:"tickMillis"`
	CompletionMillis int64  `json:"completionMillis"`
	ResultID         string `json:"resultId"`
}

// QueueRunner は Asynq にタスクを投入し、ワーカープロセスでシミュレーターを動かします。
type QueueRunner struct {
	client      *asynq.Client
	inspector   *asynq.Inspector
	resultIDFor func(View) string
}

// NewQueueRunner は QueueRunner を初期化します。
func NewQueueRunner(opt asynq.RedisConnOpt, resultIDFor func(View) string) *QueueRunner {
	if resultIDFor == nil {
		resultIDFor = DefaultResultID
	}
	return &QueueRunner{
		client:      asynq.NewClient(opt),
		inspector:   asynq.NewInspector(opt),
		resultIDFor: resultIDFor,
	}
}

// Launch はタスクを投入します。前提条件は投入前に API 側で評価します。
func (r *QueueRunner) Launch(ctx context.Context, record Record, profile simulator.Profile, pre simulator.Precondition, _ Hooks) (Handle, simulator.StartOutcome, error) {
	if pre == nil || !pre.Satisfied() {
		return nil, simulator.OutcomePreconditionUnmet, nil
	}

	body, err := json.Marshal(&TaskPayload{
		JobID:            record.JobID,
		Profile:          profile.Name,
		TickMillis:       profile.TickInterval.Milliseconds(),
		CompletionMillis: profile.CompletionDelay.Milliseconds(),
		ResultID:         r.resultIDFor(record.View),
	})
	if err != nil {
		return nil, "", err
	}

	task := asynq.NewTask(TaskTypeSimulate, body, asynq.Queue(QueueName))
	info, err := r.client.EnqueueContext(ctx, task,
		asynq.TaskID(record.JobID),
		asynq.MaxRetry(0),
		asynq.Timeout(taskTimeout),
	)
	if err != nil {
		return nil, "", fmt.Errorf("enqueue simulation task: %w", err)
	}
	return queueHandle{inspector: r.inspector, taskID: info.ID}, simulator.OutcomeStarted, nil
}

// Close はクライアントとインスペクターを閉じます。
func (r *QueueRunner) Close() error {
	return errors.Join(r.client.Close(), r.inspector.Close())
}

type queueHandle struct {
	inspector *asynq.Inspector
	taskID    string
}

// Cancel は未着手のタスクを削除し、実行中ならキャンセルを通知します。
func (h queueHandle) Cancel(context.Context) error {
	err := h.inspector.DeleteTask(QueueName, h.taskID)
	if err == nil {
		return nil
	}
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	if err := h.inspector.CancelProcessing(h.taskID); err != nil {
		return fmt.Errorf("cancel task %s: %w", h.taskID, err)
	}
	return nil
}
