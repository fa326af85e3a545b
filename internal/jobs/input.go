package jobs

import (
	"strconv"
	"strings"

	"github.com/DaphneDana/Matlab-app/internal/simulator"
)

// AnalysisType は入力画面で選択する分析種別です。
type AnalysisType string

const (
	AnalysisDescriptive AnalysisType = "descriptive"
	AnalysisCorrelation AnalysisType = "correlation"
	AnalysisRegression  AnalysisType = "regression"
	AnalysisClustering  AnalysisType = "clustering"
	AnalysisTimeSeries  AnalysisType = "timeseries"
)

var analysisTypeLabels = map[AnalysisType]string{
	AnalysisDescriptive: "Descriptive Statistics",
	AnalysisCorrelation: "Correlation Analysis",
	AnalysisRegression:  "Regression Analysis",
	AnalysisClustering:  "Clustering",
	AnalysisTimeSeries:  "Time Series Analysis",
}

// Label は履歴画面と共通の表示名を返します。
func (a AnalysisType) Label() string {
	return analysisTypeLabels[a]
}

const (
	DefaultConfidence = 95
	MinConfidence     = 80
	MaxConfidence     = 99
)

// RunInput は実行ボタン押下時の入力です。
type RunInput struct {
	Value        string       `json:"value"`
	Files        []string     `json:"-"`
	AnalysisType AnalysisType `json:"analysisType"`
	Confidence   int          `json:"confidence"`
	SampleSize   string       `json:"sampleSize"`
}

// Normalize は空白を取り除き、既定値を補います。
func (in RunInput) Normalize() RunInput {
	in.Value = strings.TrimSpace(in.Value)
	in.SampleSize = strings.TrimSpace(in.SampleSize)
	in.AnalysisType = AnalysisType(strings.TrimSpace(string(in.AnalysisType)))
	if in.Confidence == 0 {
		in.Confidence = DefaultConfidence
	}
	return in
}

// Validate は入力値の形式を検証します。形式が不正な入力は前提条件未達として扱われます。
func (in RunInput) Validate() error {
	if in.Value != "" {
		if _, err := strconv.ParseFloat(in.Value, 64); err != nil {
			return newError("INVALID_INPUT", "入力値は数値で指定してください。", err)
		}
	}
	if in.AnalysisType != "" {
		if _, ok := analysisTypeLabels[in.AnalysisType]; !ok {
			return newError("INVALID_INPUT", "分析種別が不正です。", nil)
		}
	}
	if in.Confidence < MinConfidence || in.Confidence > MaxConfidence {
		return newError("INVALID_INPUT", "信頼水準は 80〜99 の範囲で指定してください。", nil)
	}
	if in.SampleSize != "" {
		n, err := strconv.Atoi(in.SampleSize)
		if err != nil || n <= 0 {
			return newError("INVALID_INPUT", "サンプルサイズは正の整数で指定してください。", err)
		}
	}
	return nil
}

// Summary は結果表示用の入力サマリーを返します。
func (in RunInput) Summary() InputSummary {
	summary := InputSummary{
		Value:        in.Value,
		AnalysisType: string(in.AnalysisType),
		Confidence:   in.Confidence,
		SampleSize:   in.SampleSize,
	}
	if len(in.Files) > 0 {
		summary.Files = append([]string(nil), in.Files...)
	}
	return summary
}

// PreconditionFor は画面ごとの実行前提条件を返します。
//
// home: 入力値かファイルのどちらかが必要です。
// input: ファイルが1つ以上あり、分析種別が選択されている必要があります。
// どちらの画面でも Validate を通らない入力は満たしません。
func PreconditionFor(view View, in RunInput) simulator.Precondition {
	return simulator.PreconditionFunc(func() bool {
		if in.Validate() != nil {
			return false
		}
		switch view {
		case ViewHome:
			return strings.TrimSpace(in.Value) != "" || len(in.Files) > 0
		case ViewInput:
			return len(in.Files) > 0 && in.AnalysisType != ""
		default:
			return false
		}
	})
}

// ProfileFor は画面ごとのシミュレーションプロファイルを返します。
func ProfileFor(view View) simulator.Profile {
	if view == ViewInput {
		return simulator.DetailedProfile()
	}
	return simulator.QuickProfile()
}
