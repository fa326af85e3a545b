package jobs

import (
	"sync"
	"time"

	"github.com/DaphneDana/Matlab-app/internal/simulator"
)

// EventType は画面へ通知するイベントの種別です。
type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeProgress EventType = "progress"
	EventTypeResult   EventType = "result"
)

// Event は購読側がポーリングで受け取る連番付きのイベントです。
type Event struct {
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	JobID     string          `json:"jobId"`
	Owner     string          `json:"-"`
	View      View            `json:"view"`
	Type      EventType       `json:"type"`
	Status    Status          `json:"status,omitempty"`
	Percent   float64         `json:"percent"`
	Phase     simulator.Phase `json:"phase,omitempty"`
	ResultID  string          `json:"resultId,omitempty"`
}

const (
	defaultEventsPerStream = 200
	streamIdleTTL          = 30 * time.Minute
)

type eventStream struct {
	events []Event
	// evicted は上限超過で捨てた最大の連番です。
	evicted  int64
	lastSeen time.Time
}

// EventBus は所有者と画面ごとに直近のイベントを保持し、差分取得を提供します。
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	now       func() time.Time
	streams   map[string]*eventStream
}

// NewEventBus は画面ごとに maxEvents 件までを保持するイベントバッファを作成します。
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = defaultEventsPerStream
	}

	return &EventBus{
		maxEvents: maxEvents,
		now:       time.Now,
		streams:   make(map[string]*eventStream),
	}
}

// Publish はイベントを追加し、連番とタイムスタンプを付与します。
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for key, st := range b.streams {
		if now.Sub(st.lastSeen) > streamIdleTTL {
			delete(b.streams, key)
		}
	}

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = now.UTC()
	}

	key := runKey(event.Owner, event.View)
	st, ok := b.streams[key]
	if !ok {
		st = &eventStream{}
		b.streams[key] = st
	}
	st.lastSeen = now
	st.events = append(st.events, event)
	if len(st.events) > b.maxEvents {
		trim := len(st.events) - b.maxEvents
		st.evicted = st.events[trim-1].Seq
		st.events = append([]Event(nil), st.events[trim:]...)
	}

	return event
}

// Since は seq より大きい連番を持つ、指定した画面のイベントを返します。
func (b *EventBus) Since(owner string, view View, seq int64) []Event {
	events, _ := b.Poll(owner, view, seq)
	return events
}

// Poll は Since と同じイベントに加え、seq 以降のイベントが上限超過で欠けているかを返します。
// truncated が true の場合、購読側は現在の状態を取り直す必要があります。
func (b *EventBus) Poll(owner string, view View, seq int64) (events []Event, truncated bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st, ok := b.streams[runKey(owner, view)]
	if !ok || len(st.events) == 0 {
		return nil, false
	}

	out := make([]Event, 0, len(st.events))
	for _, event := range st.events {
		if event.Seq <= seq {
			continue
		}
		out = append(out, event)
	}
	return out, st.evicted > seq
}
