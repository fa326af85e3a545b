// Package fixtures はダッシュボード画面が表示する固定データを提供します。
// データは埋め込みの YAML から一度だけ読み込まれ、以降は変更されません。
package fixtures

import (
	_ "embed"
	"fmt"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed dashboard.yaml
var dashboardYAML []byte

// Status は過去の分析の状態です。
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusProcessing Status = "processing"
)

// ParseStatus は文字列を Status に変換します。
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusCompleted, StatusFailed, StatusProcessing:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status: %q", raw)
	}
}

// UnmarshalYAML は未知の状態を拒否します。
func (s *Status) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseStatus(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = parsed
	return nil
}

// RecentRun はホーム画面サイドバーの直近の実行です。
type RecentRun struct {
	ID        int    `yaml:"id" json:"id"`
	Input     string `yaml:"input" json:"input"`
	Timestamp string `yaml:"timestamp" json:"timestamp"`
	Status    Status `yaml:"status" json:"status"`
}

// Analysis は履歴に並ぶ過去の分析です。
type Analysis struct {
	ID             int    `yaml:"id" json:"id"`
	Title          string `yaml:"title" json:"title"`
	Date           string `yaml:"date" json:"date"`
	Time           string `yaml:"time" json:"time,omitempty"`
	Status         Status `yaml:"status" json:"status"`
	Type           string `yaml:"type" json:"type"`
	FileName       string `yaml:"fileName" json:"fileName"`
	RecordCount    int    `yaml:"recordCount" json:"recordCount"`
	ProcessingTime string `yaml:"processingTime" json:"processingTime,omitempty"`
}

// Records は件数を桁区切りで返します。0 件の場合は "-" です。
func (a Analysis) Records() string {
	if a.RecordCount <= 0 {
		return "-"
	}
	return FormatCount(a.RecordCount)
}

// Metric は表示用のラベルと値の組です。
type Metric struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

// BarPoint は月次の棒グラフの値です。
type BarPoint struct {
	Name   string  `yaml:"name" json:"name"`
	Value  float64 `yaml:"value" json:"value"`
	Growth float64 `yaml:"growth" json:"growth"`
}

// LinePoint は週次の折れ線グラフの値です。
type LinePoint struct {
	Name     string  `yaml:"name" json:"name"`
	Users    float64 `yaml:"users" json:"users"`
	Sessions float64 `yaml:"sessions" json:"sessions"`
}

// PieSlice は円グラフの1要素です。
type PieSlice struct {
	Name  string  `yaml:"name" json:"name"`
	Value float64 `yaml:"value" json:"value"`
	Color string  `yaml:"color" json:"color"`
}

// TableRow は詳細結果テーブルの1行です。
type TableRow struct {
	ID       int    `yaml:"id" json:"id"`
	Category string `yaml:"category" json:"category"`
	Revenue  int    `yaml:"revenue" json:"revenue"`
	Growth   string `yaml:"growth" json:"growth"`
	Status   string `yaml:"status" json:"status"`
}

// ChartPoint はホーム画面のグラフの値です。
type ChartPoint struct {
	Name  string  `yaml:"name" json:"name"`
	Value float64 `yaml:"value" json:"value"`
}

// ResultDetail は結果詳細画面のデータです。どの結果IDでも同じ内容を返します。
type ResultDetail struct {
	ID             string      `yaml:"-" json:"id"`
	Title          string      `yaml:"title" json:"title"`
	Date           string      `yaml:"date" json:"date"`
	Status         Status      `yaml:"status" json:"status"`
	Type           string      `yaml:"type" json:"type"`
	FileName       string      `yaml:"fileName" json:"fileName"`
	RecordCount    int         `yaml:"recordCount" json:"recordCount"`
	ProcessingTime string      `yaml:"processingTime" json:"processingTime"`
	Message        string      `yaml:"message" json:"message"`
	SummaryStats   []Metric    `yaml:"summaryStats" json:"summaryStats"`
	Bar            []BarPoint  `yaml:"bar" json:"bar"`
	Line           []LinePoint `yaml:"line" json:"line"`
	Pie            []PieSlice  `yaml:"pie" json:"pie"`
	Table          []TableRow  `yaml:"table" json:"table"`
}

// HomeResult はホーム画面で実行完了後に表示する結果です。
type HomeResult struct {
	Status     string       `yaml:"status" json:"status"`
	KeyMetrics []Metric     `yaml:"keyMetrics" json:"keyMetrics"`
	Chart      []ChartPoint `yaml:"chart" json:"chart"`
}

// UserProfile は設定画面のアカウント情報です。
type UserProfile struct {
	Name          string `yaml:"name" json:"name"`
	Email         string `yaml:"email" json:"email"`
	Plan          string `yaml:"plan" json:"plan"`
	JoinDate      string `yaml:"joinDate" json:"joinDate"`
	AnalysesCount int    `yaml:"analysesCount" json:"analysesCount"`
	StorageUsed   string `yaml:"storageUsed" json:"storageUsed"`
	StorageLimit  string `yaml:"storageLimit" json:"storageLimit"`
}

// Dashboard は固定データ全体です。
type Dashboard struct {
	RecentRuns []RecentRun  `yaml:"recentRuns"`
	History    []Analysis   `yaml:"history"`
	ResultIDs  []int        `yaml:"results"`
	Detail     ResultDetail `yaml:"detail"`
	Home       HomeResult   `yaml:"home"`
	User       UserProfile  `yaml:"user"`
}

// Parse は YAML を読み込み、参照の整合性を検証します。
func Parse(data []byte) (*Dashboard, error) {
	var d Dashboard
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Dashboard) validate() error {
	seen := make(map[int]bool, len(d.History))
	for _, a := range d.History {
		if seen[a.ID] {
			return fmt.Errorf("duplicate history id: %d", a.ID)
		}
		seen[a.ID] = true
	}
	for _, id := range d.ResultIDs {
		if !seen[id] {
			return fmt.Errorf("result %d is not in history", id)
		}
	}
	if d.Detail.Title == "" {
		return fmt.Errorf("result detail is missing")
	}
	return nil
}

var (
	defaultOnce sync.Once
	defaultDash *Dashboard
	defaultErr  error
)

// Default は埋め込みデータを返します。読み込みは一度だけ行われます。
func Default() (*Dashboard, error) {
	defaultOnce.Do(func() {
		defaultDash, defaultErr = Parse(dashboardYAML)
	})
	return defaultDash, defaultErr
}

var countPrinter = message.NewPrinter(language.English)

// FormatCount は 15420 を "15,420" のように桁区切りで整形します。
func FormatCount(n int) string {
	return countPrinter.Sprintf("%d", n)
}
