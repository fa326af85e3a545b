package simulator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaphneDana/Matlab-app/internal/simulator/simulatortest"
)

var always = PreconditionFunc(func() bool { return true })

type recorder struct {
	mu        sync.Mutex
	progress  []State
	completed []State
}

func (r *recorder) options(sched Scheduler, rnd RandomSource) Options {
	return Options{
		Scheduler: sched,
		Random:    rnd,
		OnProgress: func(st State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress = append(r.progress, st)
		},
		OnComplete: func(st State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completed = append(r.completed, st)
		},
	}
}

func (r *recorder) completions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completed)
}

func TestPhaseFor(t *testing.T) {
	tests := []struct {
		progress float64
		want     Phase
	}{
		{0, PhaseValidating},
		{29.999, PhaseValidating},
		{30, PhaseRunning},
		{69.99, PhaseRunning},
		{70, PhaseGenerating},
		{99.999, PhaseGenerating},
		{100, PhaseComplete},
		{130, PhaseComplete},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, PhaseFor(tc.progress), "progress=%v", tc.progress)
	}
	assert.Equal(t, "Complete!", PhaseComplete.Caption())
	assert.Equal(t, "Uploading and validating files...", PhaseValidating.Caption())
}

func TestQuickProfileCompletesOnTenthTick(t *testing.T) {
	sched := simulatortest.NewScheduler()
	rec := &recorder{}
	sim, err := New(QuickProfile(), rec.options(sched, nil))
	require.NoError(t, err)

	require.Equal(t, OutcomeStarted, sim.Start(always))
	require.True(t, sim.Snapshot().Running)

	sched.TickN(9)
	st := sim.Snapshot()
	assert.Equal(t, 90.0, st.Progress)
	assert.Equal(t, PhaseGenerating, st.Phase)
	assert.False(t, st.Complete)

	sched.Tick()
	st = sim.Snapshot()
	assert.Equal(t, 100.0, st.Progress)
	assert.True(t, st.Complete)
	assert.False(t, st.Running)
	assert.Equal(t, PhaseComplete, st.Phase)
	assert.Equal(t, 1, rec.completions())
	assert.Equal(t, 0, sched.ActiveTickers())

	sched.TickN(5)
	assert.Equal(t, 1, rec.completions())
	assert.Equal(t, 10, sim.Snapshot().Ticks)
}

func TestDetailedProfileClampsAndWaitsForDelay(t *testing.T) {
	sched := simulatortest.NewScheduler()
	rec := &recorder{}
	sim, err := New(DetailedProfile(), rec.options(sched, simulatortest.NewSequence(0.5)))
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, sim.Start(always))

	sched.TickN(13)
	assert.Equal(t, 97.5, sim.Snapshot().Progress)

	sched.Tick()
	st := sim.Snapshot()
	assert.Equal(t, 100.0, st.Progress, "final tick clamps to exactly 100")
	assert.True(t, st.Running, "completion is delayed")
	assert.False(t, st.Complete)
	assert.Equal(t, 0, rec.completions())
	assert.Equal(t, 1, sched.PendingTimers())

	assert.Equal(t, 1, sched.FireTimers())
	st = sim.Snapshot()
	assert.True(t, st.Complete)
	assert.False(t, st.Running)
	assert.Equal(t, 1, rec.completions())
	assert.Equal(t, 0, sched.FireTimers())
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	sched := simulatortest.NewScheduler()
	sim, err := New(QuickProfile(), Options{Scheduler: sched})
	require.NoError(t, err)

	require.Equal(t, OutcomeStarted, sim.Start(always))
	sched.TickN(2)
	before := sim.Snapshot()

	assert.Equal(t, OutcomeAlreadyRunning, sim.Start(always))
	assert.Equal(t, before, sim.Snapshot())
	assert.Equal(t, 1, sched.ActiveTickers())

	sched.Tick()
	assert.Equal(t, 30.0, sim.Snapshot().Progress, "one increment per tick period")
}

func TestStartWithoutPrecondition(t *testing.T) {
	sched := simulatortest.NewScheduler()
	sim, err := New(QuickProfile(), Options{Scheduler: sched})
	require.NoError(t, err)

	assert.Equal(t, OutcomePreconditionUnmet, sim.Start(PreconditionFunc(func() bool { return false })))
	assert.Equal(t, OutcomePreconditionUnmet, sim.Start(nil))
	assert.Equal(t, State{Phase: PhaseValidating}, sim.Snapshot())
	assert.Equal(t, 0, sched.ActiveTickers())
}

func TestCancelStopsFurtherMutation(t *testing.T) {
	sched := simulatortest.NewScheduler()
	rec := &recorder{}
	profile := Profile{Name: "test", TickInterval: time.Millisecond, Increment: FixedIncrement{Step: 14}}
	sim, err := New(profile, rec.options(sched, nil))
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, sim.Start(always))

	sched.TickN(3)
	require.Equal(t, 42.0, sim.Snapshot().Progress)

	assert.True(t, sim.Cancel())
	assert.Equal(t, 0, sched.Tick())
	sched.FireTimers()

	st := sim.Snapshot()
	assert.Equal(t, 42.0, st.Progress)
	assert.False(t, st.Complete)
	assert.False(t, st.Running)
	assert.True(t, st.Cancelled)
	assert.Equal(t, 0, rec.completions())
	assert.Len(t, rec.progress, 3)

	assert.Equal(t, OutcomeClosed, sim.Start(always))
	assert.False(t, sim.Cancel())
}

func TestCancelDuringCompletionDelay(t *testing.T) {
	sched := simulatortest.NewScheduler()
	rec := &recorder{}
	sim, err := New(DetailedProfile(), rec.options(sched, simulatortest.NewSequence(0.99)))
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, sim.Start(always))

	for sim.Snapshot().Progress < MaxProgress {
		sched.Tick()
	}
	require.Equal(t, 1, sched.PendingTimers())

	sim.Cancel()
	assert.Equal(t, 0, sched.FireTimers())
	assert.False(t, sim.Snapshot().Complete)
	assert.Equal(t, 0, rec.completions())
}

func TestProgressIsMonotonicAndBounded(t *testing.T) {
	sched := simulatortest.NewScheduler()
	rec := &recorder{}
	rnd := simulatortest.NewSequence(0.9, 0.0, 0.37, 0.999, 0.12, 0.64)
	sim, err := New(DetailedProfile(), rec.options(sched, rnd))
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, sim.Start(always))

	for i := 0; i < 100 && sched.ActiveTickers() > 0; i++ {
		sched.Tick()
	}
	sched.FireTimers()

	require.NotEmpty(t, rec.progress)
	prev := 0.0
	for _, st := range rec.progress {
		assert.GreaterOrEqual(t, st.Progress, prev)
		assert.LessOrEqual(t, st.Progress, MaxProgress)
		prev = st.Progress
	}
	assert.Equal(t, MaxProgress, prev)
	assert.Equal(t, 1, rec.completions())
}

type shrinking struct{}

func (shrinking) Next(RandomSource) float64 { return -5 }

func TestNegativeIncrementNeverDecreases(t *testing.T) {
	sched := simulatortest.NewScheduler()
	sim, err := New(Profile{Name: "neg", TickInterval: time.Millisecond, Increment: shrinking{}}, Options{Scheduler: sched})
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, sim.Start(always))

	sched.TickN(3)
	assert.Equal(t, 0.0, sim.Snapshot().Progress)
	assert.Equal(t, 3, sim.Snapshot().Ticks)
}

func TestRestartAfterCompletion(t *testing.T) {
	sched := simulatortest.NewScheduler()
	rec := &recorder{}
	sim, err := New(QuickProfile(), rec.options(sched, nil))
	require.NoError(t, err)

	require.Equal(t, OutcomeStarted, sim.Start(always))
	sched.TickN(10)
	require.True(t, sim.Snapshot().Complete)

	require.Equal(t, OutcomeStarted, sim.Start(always))
	st := sim.Snapshot()
	assert.Equal(t, 0.0, st.Progress)
	assert.False(t, st.Complete)
	assert.Equal(t, 1, sched.ActiveTickers())

	sched.TickN(10)
	assert.Equal(t, 2, rec.completions())
}

func TestNewRejectsInvalidProfile(t *testing.T) {
	_, err := New(Profile{Name: "bad"}, Options{})
	assert.Error(t, err)

	_, err = New(Profile{Name: "bad", TickInterval: time.Second}, Options{})
	assert.Error(t, err)
}

func TestRealSchedulerCompletes(t *testing.T) {
	done := make(chan State, 1)
	profile := Profile{Name: "fast", TickInterval: time.Millisecond, Increment: FixedIncrement{Step: 50}, CompletionDelay: time.Millisecond}
	sim, err := New(profile, Options{OnComplete: func(st State) { done <- st }})
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, sim.Start(always))

	select {
	case st := <-done:
		assert.True(t, st.Complete)
		assert.Equal(t, MaxProgress, st.Progress)
	case <-time.After(2 * time.Second):
		t.Fatal("simulation did not complete")
	}
}

func TestProfileByName(t *testing.T) {
	p, err := ProfileByName(ProfileDetailed)
	require.NoError(t, err)
	assert.Equal(t, DefaultCompletionDelay, p.CompletionDelay)

	q := QuickProfile().WithTiming(50*time.Millisecond, time.Second)
	assert.Equal(t, 50*time.Millisecond, q.TickInterval)
	assert.Zero(t, q.CompletionDelay, "quick profile keeps completing immediately")

	_, err = ProfileByName("unknown")
	assert.Error(t, err)
}
