package simulator

import "sync"

// State はシミュレーターのある時点のスナップショットです。
type State struct {
	Progress  float64 `json:"progress"`
	Phase     Phase   `json:"phase"`
	Running   bool    `json:"isRunning"`
	Complete  bool    `json:"isComplete"`
	Cancelled bool    `json:"cancelled,omitempty"`
	Ticks     int     `json:"ticks"`
}

// Precondition は実行開始の前提条件です。
type Precondition interface {
	Satisfied() bool
}

// PreconditionFunc は関数を Precondition として扱います。
type PreconditionFunc func() bool

// Satisfied は前提条件を満たすかを返します。
func (f PreconditionFunc) Satisfied() bool {
	if f == nil {
		return false
	}
	return f()
}

// StartOutcome は Start の結果です。失敗もエラーではなく結果として返します。
type StartOutcome string

const (
	OutcomeStarted           StartOutcome = "started"
	OutcomeAlreadyRunning    StartOutcome = "already_running"
	OutcomePreconditionUnmet StartOutcome = "precondition_unmet"
	OutcomeClosed            StartOutcome = "closed"
)

// Options はシミュレーターの依存とコールバックです。
type Options struct {
	Scheduler  Scheduler
	Random     RandomSource
	OnProgress func(State)
	OnComplete func(State)
}

// Simulator は 0 から 100 まで進む擬似ジョブです。
type Simulator struct {
	mu   sync.Mutex
	cbMu sync.Mutex

	profile    Profile
	sched      Scheduler
	rnd        RandomSource
	onProgress func(State)
	onComplete func(State)

	progress float64
	ticks    int
	running  bool
	complete bool
	closed   bool

	// gen は実行ごとに進み、古いティックや完了通知を無効化します。
	gen        uint64
	stopTick   func()
	stopFinish func()
}

// New はシミュレーターを作成します。
func New(profile Profile, opts Options) (*Simulator, error) {
	if err := profile.validate(); err != nil {
		return nil, err
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = RealScheduler()
	}
	rnd := opts.Random
	if rnd == nil {
		rnd = DefaultRandom()
	}
	return &Simulator{
		profile:    profile,
		sched:      sched,
		rnd:        rnd,
		onProgress: opts.OnProgress,
		onComplete: opts.OnComplete,
	}, nil
}

// Profile は使用中のプロファイルを返します。
func (s *Simulator) Profile() Profile {
	return s.profile
}

// Start は前提条件を満たし、実行中でなければ進捗を 0 に戻してティックを開始します。
func (s *Simulator) Start(pre Precondition) StartOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return OutcomeClosed
	case s.running:
		return OutcomeAlreadyRunning
	case pre == nil || !pre.Satisfied():
		return OutcomePreconditionUnmet
	}

	s.gen++
	gen := s.gen
	s.progress = 0
	s.ticks = 0
	s.running = true
	s.complete = false
	s.stopTick = s.sched.Every(s.profile.TickInterval, func() { s.tick(gen) })
	return OutcomeStarted
}

func (s *Simulator) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.running || s.progress >= MaxProgress {
		s.mu.Unlock()
		return
	}

	next := s.progress + s.profile.Increment.Next(s.rnd)
	if next > MaxProgress {
		next = MaxProgress
	}
	if next < s.progress {
		next = s.progress
	}
	s.progress = next
	s.ticks++

	reached := next >= MaxProgress
	if reached {
		s.stopTickLocked()
	}
	progressed := s.snapshotLocked()

	var completed *State
	if reached {
		if s.profile.CompletionDelay > 0 {
			s.stopFinish = s.sched.After(s.profile.CompletionDelay, func() { s.finish(gen) })
		} else {
			st := s.markCompleteLocked()
			completed = &st
		}
	}

	s.cbMu.Lock()
	s.mu.Unlock()
	defer s.cbMu.Unlock()

	s.deliver(gen, s.onProgress, progressed)
	if completed != nil {
		s.deliver(gen, s.onComplete, *completed)
	}
}

func (s *Simulator) finish(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.running || s.complete {
		s.mu.Unlock()
		return
	}
	s.stopFinish = nil
	st := s.markCompleteLocked()

	s.cbMu.Lock()
	s.mu.Unlock()
	defer s.cbMu.Unlock()

	s.deliver(gen, s.onComplete, st)
}

// deliver は cbMu を保持した状態で呼び出します。Cancel 済みの実行には通知しません。
func (s *Simulator) deliver(gen uint64, cb func(State), st State) {
	if cb == nil {
		return
	}
	s.mu.Lock()
	current := gen == s.gen
	s.mu.Unlock()
	if current {
		cb(st)
	}
}

func (s *Simulator) markCompleteLocked() State {
	s.running = false
	s.complete = true
	return s.snapshotLocked()
}

// Cancel はティックと保留中の完了通知を止めます。以降コールバックは呼ばれません。
// キャンセル後のシミュレーターは再開できません。実行中だった場合 true を返します。
// 配送中のコールバックの終了は待たないため、呼び出し側が待つ必要があれば自分で直列化します。
func (s *Simulator) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	wasRunning := s.running
	s.closed = true
	s.gen++
	s.running = false
	s.stopTickLocked()
	if s.stopFinish != nil {
		s.stopFinish()
		s.stopFinish = nil
	}
	return wasRunning
}

// Snapshot は現在の状態を返します。
func (s *Simulator) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Simulator) stopTickLocked() {
	if s.stopTick != nil {
		s.stopTick()
		s.stopTick = nil
	}
}

func (s *Simulator) snapshotLocked() State {
	return State{
		Progress:  s.progress,
		Phase:     PhaseFor(s.progress),
		Running:   s.running,
		Complete:  s.complete,
		Cancelled: s.closed && !s.complete,
		Ticks:     s.ticks,
	}
}
