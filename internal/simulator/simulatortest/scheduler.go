// Package simulatortest はシミュレーターを決定的に駆動するためのテスト用部品を提供します。
package simulatortest

import (
	"sync"
	"time"
)

type entry struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

// Scheduler は手動でティックを進める simulator.Scheduler の実装です。
type Scheduler struct {
	mu      sync.Mutex
	tickers []*entry
	timers  []*entry
}

// NewScheduler は空の Scheduler を返します。
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Every は周期実行を登録します。実行は Tick を呼んだときだけ行われます。
func (s *Scheduler) Every(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{delay: d, fn: fn}
	s.tickers = append(s.tickers, e)
	return s.stopper(e)
}

// After は遅延実行を登録します。実行は FireTimers を呼んだときだけ行われます。
func (s *Scheduler) After(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{delay: d, fn: fn}
	s.timers = append(s.timers, e)
	return s.stopper(e)
}

func (s *Scheduler) stopper(e *entry) func() {
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		e.stopped = true
	}
}

// Tick は有効な周期実行をすべて1回ずつ呼び、呼んだ数を返します。
func (s *Scheduler) Tick() int {
	s.mu.Lock()
	active := make([]*entry, 0, len(s.tickers))
	for _, e := range s.tickers {
		if !e.stopped {
			active = append(active, e)
		}
	}
	s.mu.Unlock()

	for _, e := range active {
		e.fn()
	}
	return len(active)
}

// TickN は Tick を n 回呼びます。
func (s *Scheduler) TickN(n int) {
	for i := 0; i < n; i++ {
		s.Tick()
	}
}

// FireTimers は保留中の遅延実行をすべて呼び、呼んだ数を返します。
func (s *Scheduler) FireTimers() int {
	s.mu.Lock()
	pending := make([]*entry, 0, len(s.timers))
	for _, e := range s.timers {
		if !e.stopped {
			e.stopped = true
			pending = append(pending, e)
		}
	}
	s.timers = nil
	s.mu.Unlock()

	for _, e := range pending {
		e.fn()
	}
	return len(pending)
}

// ActiveTickers は停止されていない周期実行の数を返します。
func (s *Scheduler) ActiveTickers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.tickers {
		if !e.stopped {
			n++
		}
	}
	return n
}

// PendingTimers は保留中の遅延実行の数を返します。
func (s *Scheduler) PendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.timers {
		if !e.stopped {
			n++
		}
	}
	return n
}

// Sequence は与えた値を順に返す乱数源です（末尾まで来たら先頭に戻ります）。
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequence は Sequence を作成します。
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

// Float64 は次の値を返します。
func (q *Sequence) Float64() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.values) == 0 {
		return 0
	}
	v := q.values[q.next%len(q.values)]
	q.next++
	return v
}
