package jobs

import (
	"context"

	"github.com/DaphneDana/Matlab-app/internal/simulator"
)

// LocalRunner は API プロセス内でシミュレーターを動かします。
type LocalRunner struct {
	// Scheduler / Random が nil の場合は実時間と math/rand を使います。
	Scheduler simulator.Scheduler
	Random    simulator.RandomSource
}

// NewLocalRunner は LocalRunner を作成します。
func NewLocalRunner(sched simulator.Scheduler, rnd simulator.RandomSource) *LocalRunner {
	return &LocalRunner{Scheduler: sched, Random: rnd}
}

// Launch はシミュレーターを作成して開始します。
func (r *LocalRunner) Launch(_ context.Context, _ Record, profile simulator.Profile, pre simulator.Precondition, hooks Hooks) (Handle, simulator.StartOutcome, error) {
	sim, err := simulator.New(profile, simulator.Options{
		Scheduler:  r.Scheduler,
		Random:     r.Random,
		OnProgress: hooks.OnProgress,
		OnComplete: hooks.OnComplete,
	})
	if err != nil {
		return nil, "", err
	}
	outcome := sim.Start(pre)
	if outcome != simulator.OutcomeStarted {
		return nil, outcome, nil
	}
	return localHandle{sim: sim}, outcome, nil
}

type localHandle struct {
	sim *simulator.Simulator
}

func (h localHandle) Cancel(context.Context) error {
	h.sim.Cancel()
	return nil
}
