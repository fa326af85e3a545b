package jobs

import (
	"time"

	"github.com/DaphneDana/Matlab-app/internal/simulator"
)

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "done"
	StatusCancelled Status = "cancelled"
)

// View はジョブを起動した画面を表します。
type View string

const (
	ViewHome  View = "home"
	ViewInput View = "input"
)

// ParseView は文字列を View に変換します。
func ParseView(raw string) (View, bool) {
	switch View(raw) {
	case ViewHome:
		return ViewHome, true
	case ViewInput:
		return ViewInput, true
	default:
		return "", false
	}
}

// ProgressInfo は進捗の補足情報を表します。
type ProgressInfo struct {
	Percent float64         `json:"percent"`
	Phase   simulator.Phase `json:"phase"`
	Message string          `json:"message,omitempty"`
}

// InputSummary は結果画面の「Input Summary」に表示する入力情報です。
type InputSummary struct {
	Value        string   `json:"value,omitempty"`
	Files        []string `json:"files,omitempty"`
	AnalysisType string   `json:"analysisType,omitempty"`
	Confidence   int      `json:"confidence,omitempty"`
	SampleSize   string   `json:"sampleSize,omitempty"`
}

// Record はジョブの現在状態を表します。
type Record struct {
	JobID     string       `json:"jobId"`
	Owner     string       `json:"owner"`
	View      View         `json:"view"`
	Profile   string       `json:"profile"`
	Status    Status       `json:"status"`
	Progress  ProgressInfo `json:"progress"`
	Input     InputSummary `json:"input"`
	ResultID  string       `json:"resultId,omitempty"`
	TaskID    string       `json:"taskId,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// IsRunning は実行中かを返します。
func (r *Record) IsRunning() bool {
	return r != nil && r.Status == StatusRunning
}

// IsComplete は完了済みかを返します。
func (r *Record) IsComplete() bool {
	return r != nil && r.Status == StatusSucceeded
}

func progressFromState(st simulator.State) ProgressInfo {
	return ProgressInfo{
		Percent: st.Progress,
		Phase:   st.Phase,
		Message: st.Phase.Caption(),
	}
}
