package simulator

import (
	"fmt"
	"time"
)

const (
	// DefaultTickInterval はティックの既定間隔です。
	DefaultTickInterval = 300 * time.Millisecond
	// DefaultCompletionDelay は詳細プロファイルの完了通知までの遅延です。
	DefaultCompletionDelay = 500 * time.Millisecond
)

// Increment は1ティックあたりの進捗増分を決めます。
type Increment interface {
	Next(rnd RandomSource) float64
}

// RandomIncrement は [0, Max) の一様乱数で進めます。
type RandomIncrement struct {
	Max float64
}

// Next は次の増分を返します。
func (i RandomIncrement) Next(rnd RandomSource) float64 {
	if rnd == nil {
		rnd = DefaultRandom()
	}
	return rnd.Float64() * i.Max
}

// FixedIncrement は常に Step ずつ進めます。
type FixedIncrement struct {
	Step float64
}

// Next は次の増分を返します。
func (i FixedIncrement) Next(RandomSource) float64 {
	return i.Step
}

// Profile はシミュレーションの進め方を表します。
type Profile struct {
	Name            string
	TickInterval    time.Duration
	Increment       Increment
	CompletionDelay time.Duration
}

const (
	ProfileQuick    = "quick"
	ProfileDetailed = "detailed"
)

// QuickProfile は固定 10 ずつ進み、到達と同時に完了します。
func QuickProfile() Profile {
	return Profile{
		Name:         ProfileQuick,
		TickInterval: DefaultTickInterval,
		Increment:    FixedIncrement{Step: 10},
	}
}

// DetailedProfile は最大 15 の乱数で進み、到達後 500ms で完了します。
func DetailedProfile() Profile {
	return Profile{
		Name:            ProfileDetailed,
		TickInterval:    DefaultTickInterval,
		Increment:       RandomIncrement{Max: 15},
		CompletionDelay: DefaultCompletionDelay,
	}
}

// ProfileByName は名前からプロファイルを取得します。
func ProfileByName(name string) (Profile, error) {
	switch name {
	case ProfileQuick:
		return QuickProfile(), nil
	case ProfileDetailed:
		return DetailedProfile(), nil
	default:
		return Profile{}, fmt.Errorf("unknown simulation profile: %q", name)
	}
}

// WithTiming はティック間隔と完了遅延を上書きしたコピーを返します（0以下は元の値を維持）。
// 完了遅延を持たないプロファイルには遅延を追加しません。
func (p Profile) WithTiming(tick, completionDelay time.Duration) Profile {
	if tick > 0 {
		p.TickInterval = tick
	}
	if completionDelay > 0 && p.CompletionDelay > 0 {
		p.CompletionDelay = completionDelay
	}
	return p
}

func (p Profile) validate() error {
	if p.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if p.Increment == nil {
		return fmt.Errorf("increment is required")
	}
	if p.CompletionDelay < 0 {
		return fmt.Errorf("completion delay must not be negative")
	}
	return nil
}
