package simulator

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Scheduler は周期実行と遅延実行を提供します。
// 戻り値の関数を呼ぶとそれ以降の実行を止めます（複数回呼んでも安全です）。
type Scheduler interface {
	Every(d time.Duration, fn func()) (stop func())
	After(d time.Duration, fn func()) (stop func())
}

// RandomSource は [0, 1) の乱数を返します。
type RandomSource interface {
	Float64() float64
}

type realScheduler struct{}

// RealScheduler は time.Ticker / time.AfterFunc を使う Scheduler を返します。
func RealScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

func (realScheduler) After(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, fn)
	return func() {
		timer.Stop()
	}
}

type globalRandom struct{}

func (globalRandom) Float64() float64 {
	return rand.Float64()
}

// DefaultRandom は math/rand/v2 のグローバル乱数を使う RandomSource を返します。
func DefaultRandom() RandomSource {
	return globalRandom{}
}
