// Package simulator は擬似的な長時間ジョブの進捗シミュレーターを提供します。
package simulator

const (
	// MaxProgress は進捗の上限値です。
	MaxProgress = 100.0

	// RunningThreshold 以上で「分析中」フェーズになります。
	RunningThreshold = 30.0
	// GeneratingThreshold 以上で「結果生成中」フェーズになります。
	GeneratingThreshold = 70.0
)

// Phase は進捗値から導出される表示用のフェーズです。
type Phase string

const (
	PhaseValidating Phase = "validating"
	PhaseRunning    Phase = "running"
	PhaseGenerating Phase = "generating"
	PhaseComplete   Phase = "complete"
)

var phaseCaptions = map[Phase]string{
	PhaseValidating: "Uploading and validating files...",
	PhaseRunning:    "Running analysis...",
	PhaseGenerating: "Generating results...",
	PhaseComplete:   "Complete!",
}

// PhaseFor は進捗値に対応するフェーズを返します。
func PhaseFor(progress float64) Phase {
	switch {
	case progress >= MaxProgress:
		return PhaseComplete
	case progress >= GeneratingThreshold:
		return PhaseGenerating
	case progress >= RunningThreshold:
		return PhaseRunning
	default:
		return PhaseValidating
	}
}

// Caption はステータス表示用の文言を返します。
func (p Phase) Caption() string {
	return phaseCaptions[p]
}
