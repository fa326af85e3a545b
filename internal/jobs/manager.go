package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DaphneDana/Matlab-app/internal/simulator"
)

const hookTimeout = 5 * time.Second

// Handle は起動済みの実行を中断するためのハンドルです。
type Handle interface {
	Cancel(ctx context.Context) error
}

// Hooks は実行中のシミュレーターから届く通知です。
type Hooks struct {
	OnProgress func(simulator.State)
	OnComplete func(simulator.State)
}

// Runner はシミュレーションを実際に走らせる場所（プロセス内 / キュー）を抽象化します。
type Runner interface {
	Launch(ctx context.Context, record Record, profile simulator.Profile, pre simulator.Precondition, hooks Hooks) (Handle, simulator.StartOutcome, error)
}

// StartResult は Start の結果です。Started が false でもエラーではありません。
type StartResult struct {
	Started bool                   `json:"started"`
	Outcome simulator.StartOutcome `json:"outcome"`
	Record  *Record                `json:"job,omitempty"`
}

// ManagerOptions は Manager の設定です。
type ManagerOptions struct {
	TickInterval    time.Duration
	CompletionDelay time.Duration
	Events          *EventBus
	Logger          *zap.Logger
	// ResultIDFor は完了時に結果画面へ渡す結果IDを返します。
	ResultIDFor func(View) string
}

type run struct {
	jobID  string
	handle Handle

	// mu はフックの配送と破棄を直列化します。closed 後のフックは何もしません。
	mu     sync.Mutex
	closed bool
}

// close は配送中のフックの終了を待ってから run を閉じます。フック内から呼んではいけません。
func (r *run) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// deliver は run が閉じられていなければ fn を実行します。
func (r *run) deliver(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		fn()
	}
}

// Manager は画面ごとに1つの実行を管理します。
type Manager struct {
	store  Store
	runner Runner
	opts   ManagerOptions
	events *EventBus
	logger *zap.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// NewManager は Manager を初期化します。
func NewManager(store Store, runner Runner, opts ManagerOptions) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := opts.Events
	if events == nil {
		events = NewEventBus(0)
	}
	if opts.ResultIDFor == nil {
		opts.ResultIDFor = DefaultResultID
	}
	return &Manager{
		store:  store,
		runner: runner,
		opts:   opts,
		events: events,
		logger: logger,
		runs:   make(map[string]*run),
	}, nil
}

// DefaultResultID は home では画面内表示用の "home"、input では結果画面の "new" を返します。
func DefaultResultID(view View) string {
	if view == ViewInput {
		return "new"
	}
	return "home"
}

// Events はイベントバスを返します。
func (m *Manager) Events() *EventBus {
	return m.events
}

// Start は画面のジョブを開始します。
// 実行中、または前提条件を満たさない場合は何もせず Started=false を返します。
func (m *Manager) Start(ctx context.Context, owner string, view View, in RunInput) (*StartResult, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	in = in.Normalize()

	key := runKey(owner, view)
	m.mu.Lock()
	defer m.mu.Unlock()

	var last *Record
	prev := m.runs[key]
	if prev != nil {
		rec, err := m.store.Get(ctx, prev.jobID)
		if err != nil {
			return nil, fmt.Errorf("load current job: %w", err)
		}
		if rec.IsRunning() {
			return &StartResult{Outcome: simulator.OutcomeAlreadyRunning, Record: rec}, nil
		}
		last = rec
	}

	pre := PreconditionFor(view, in)
	if !pre.Satisfied() {
		if err := in.Validate(); err != nil {
			m.logger.Debug("start input rejected", zap.String("view", string(view)), zap.Error(err))
		}
		return &StartResult{Outcome: simulator.OutcomePreconditionUnmet, Record: last}, nil
	}

	if prev != nil {
		m.discardLocked(ctx, key, prev)
	}

	profile := ProfileFor(view).WithTiming(m.opts.TickInterval, m.opts.CompletionDelay)
	record := &Record{
		JobID:   uuid.NewString(),
		Owner:   owner,
		View:    view,
		Profile: profile.Name,
		Status:  StatusRunning,
		Progress: progressFromState(simulator.State{
			Phase: simulator.PhaseFor(0),
		}),
		Input:    in.Summary(),
		ResultID: "",
	}
	record.TaskID = record.JobID
	if err := m.store.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	current := &run{jobID: record.JobID}
	handle, outcome, err := m.runner.Launch(ctx, *record, profile, pre, m.hooksFor(*record, current))
	if err != nil {
		_ = m.store.Delete(ctx, record.JobID)
		return nil, fmt.Errorf("launch job: %w", err)
	}
	if outcome != simulator.OutcomeStarted {
		_ = m.store.Delete(ctx, record.JobID)
		return &StartResult{Outcome: outcome}, nil
	}

	current.handle = handle
	m.runs[key] = current
	m.events.Publish(Event{
		JobID:  record.JobID,
		Owner:  owner,
		View:   view,
		Type:   EventTypeStatus,
		Status: StatusRunning,
		Phase:  record.Progress.Phase,
	})
	m.logger.Info("analysis job started",
		zap.String("job_id", record.JobID),
		zap.String("view", string(view)),
		zap.String("profile", profile.Name))

	return &StartResult{Started: true, Outcome: outcome, Record: record}, nil
}

// Snapshot は画面の現在のジョブを返します。
func (m *Manager) Snapshot(ctx context.Context, owner string, view View) (*Record, error) {
	m.mu.Lock()
	current := m.runs[runKey(owner, view)]
	m.mu.Unlock()

	if current == nil {
		return nil, ErrJobNotFound
	}
	rec, err := m.store.Get(ctx, current.jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrJobNotFound
	}
	return rec, nil
}

// Cancel は画面の破棄に伴いジョブを中断します。以降そのジョブは更新されません。
func (m *Manager) Cancel(ctx context.Context, owner string, view View) (*Record, error) {
	key := runKey(owner, view)
	m.mu.Lock()
	current := m.runs[key]
	if current == nil {
		m.mu.Unlock()
		return nil, ErrJobNotFound
	}
	delete(m.runs, key)
	m.mu.Unlock()

	current.close()
	if err := current.handle.Cancel(ctx); err != nil {
		m.logger.Warn("failed to cancel analysis job", zap.String("job_id", current.jobID), zap.Error(err))
	}
	if err := m.store.MarkCancelled(ctx, current.jobID); err != nil && !errors.Is(err, ErrJobNotFound) {
		return nil, err
	}

	rec, err := m.store.Get(ctx, current.jobID)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.Status == StatusCancelled {
		m.events.Publish(Event{
			JobID:   rec.JobID,
			Owner:   owner,
			View:    rec.View,
			Type:    EventTypeStatus,
			Status:  StatusCancelled,
			Percent: rec.Progress.Percent,
			Phase:   rec.Progress.Phase,
		})
		m.logger.Info("analysis job cancelled",
			zap.String("job_id", rec.JobID),
			zap.Float64("percent", rec.Progress.Percent))
	}
	return rec, nil
}

// Shutdown は管理中のすべての実行を中断します。
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	runs := m.runs
	m.runs = make(map[string]*run)
	m.mu.Unlock()

	for _, r := range runs {
		r.close()
		if err := r.handle.Cancel(ctx); err != nil {
			m.logger.Warn("failed to cancel analysis job on shutdown", zap.String("job_id", r.jobID), zap.Error(err))
		}
		_ = m.store.MarkCancelled(ctx, r.jobID)
	}
}

func (m *Manager) discardLocked(ctx context.Context, key string, prev *run) {
	prev.close()
	if err := prev.handle.Cancel(ctx); err != nil {
		m.logger.Warn("failed to discard previous job", zap.String("job_id", prev.jobID), zap.Error(err))
	}
	_ = m.store.Delete(ctx, prev.jobID)
	delete(m.runs, key)
}

func (m *Manager) hooksFor(record Record, r *run) Hooks {
	resultID := m.opts.ResultIDFor(record.View)
	return Hooks{
		OnProgress: func(st simulator.State) {
			r.deliver(func() {
				ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
				defer cancel()
				if err := m.store.UpdateProgress(ctx, record.JobID, progressFromState(st)); err != nil {
					m.logger.Warn("failed to update progress", zap.String("job_id", record.JobID), zap.Error(err))
					return
				}
				m.events.Publish(Event{
					JobID:   record.JobID,
					Owner:   record.Owner,
					View:    record.View,
					Type:    EventTypeProgress,
					Status:  StatusRunning,
					Percent: st.Progress,
					Phase:   st.Phase,
				})
			})
		},
		OnComplete: func(st simulator.State) {
			r.deliver(func() {
				ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
				defer cancel()
				if err := m.store.MarkDone(ctx, record.JobID, resultID); err != nil {
					m.logger.Warn("failed to mark job done", zap.String("job_id", record.JobID), zap.Error(err))
					return
				}
				m.events.Publish(Event{
					JobID:    record.JobID,
					Owner:    record.Owner,
					View:     record.View,
					Type:     EventTypeResult,
					Status:   StatusSucceeded,
					Percent:  st.Progress,
					Phase:    st.Phase,
					ResultID: resultID,
				})
				m.logger.Info("analysis job completed",
					zap.String("job_id", record.JobID),
					zap.Int("ticks", st.Ticks),
					zap.String("result_id", resultID))
			})
		},
	}
}

func runKey(owner string, view View) string {
	return owner + "/" + string(view)
}
