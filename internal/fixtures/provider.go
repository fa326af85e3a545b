package fixtures

import (
	"fmt"
	"strings"
)

// FilterAll はフィルタを適用しないことを表します。
const FilterAll = "all"

// HistoryQuery は履歴画面の検索条件です。
type HistoryQuery struct {
	Search string
	Status string
	Type   string
}

// Validate は状態フィルタが既知の値かを検証します。
func (q HistoryQuery) Validate() error {
	if q.Status == "" || q.Status == FilterAll {
		return nil
	}
	if _, err := ParseStatus(q.Status); err != nil {
		return err
	}
	return nil
}

// Matches はタイトルとファイル名の部分一致（大文字小文字を区別しない）と各フィルタで判定します。
func (q HistoryQuery) Matches(a Analysis) bool {
	if term := strings.ToLower(q.Search); term != "" {
		if !strings.Contains(strings.ToLower(a.Title), term) &&
			!strings.Contains(strings.ToLower(a.FileName), term) {
			return false
		}
	}
	if q.Status != "" && q.Status != FilterAll && string(a.Status) != q.Status {
		return false
	}
	if q.Type != "" && q.Type != FilterAll && a.Type != q.Type {
		return false
	}
	return true
}

// IsFiltered は何らかの条件が指定されているかを返します。
func (q HistoryQuery) IsFiltered() bool {
	return q.Search != "" ||
		(q.Status != "" && q.Status != FilterAll) ||
		(q.Type != "" && q.Type != FilterAll)
}

// Provider は固定データへの読み取り専用アクセスを提供します。返す値はすべてコピーです。
type Provider struct {
	d *Dashboard
}

// NewProvider は Provider を作成します。
func NewProvider(d *Dashboard) (*Provider, error) {
	if d == nil {
		return nil, fmt.Errorf("dashboard is nil")
	}
	return &Provider{d: d}, nil
}

// RecentRuns は直近の実行を返します。
func (p *Provider) RecentRuns() []RecentRun {
	return append([]RecentRun(nil), p.d.RecentRuns...)
}

// History は条件に合う履歴を返します。
func (p *Provider) History(q HistoryQuery) []Analysis {
	out := make([]Analysis, 0, len(p.d.History))
	for _, a := range p.d.History {
		if q.Matches(a) {
			out = append(out, a)
		}
	}
	return out
}

// HistoryTotal は履歴の総件数です。
func (p *Provider) HistoryTotal() int {
	return len(p.d.History)
}

// AnalysisTypes は履歴に現れる分析種別を出現順で返します。
func (p *Provider) AnalysisTypes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range p.d.History {
		if !seen[a.Type] {
			seen[a.Type] = true
			out = append(out, a.Type)
		}
	}
	return out
}

// Analysis は履歴IDから分析を取得します。
func (p *Provider) Analysis(id int) (Analysis, bool) {
	for _, a := range p.d.History {
		if a.ID == id {
			return a, true
		}
	}
	return Analysis{}, false
}

// Results は結果一覧に表示する分析を返します。
func (p *Provider) Results() []Analysis {
	out := make([]Analysis, 0, len(p.d.ResultIDs))
	for _, id := range p.d.ResultIDs {
		if a, ok := p.Analysis(id); ok {
			out = append(out, a)
		}
	}
	return out
}

// NewResultID は入力画面の実行完了後に遷移する結果IDです。
const NewResultID = "new"

// HomeResultID はホーム画面内に表示する結果のIDです。
const HomeResultID = "home"

const maxResultIDLen = 64

// validResultID は ID が英数字・ハイフン・アンダースコアのみかを返します。
func validResultID(id string) bool {
	if id == "" || len(id) > maxResultIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Result は結果詳細を返します。どの ID でも内容は同じ固定データで、ID だけを差し替えます。
func (p *Provider) Result(id string) (ResultDetail, bool) {
	if !validResultID(id) {
		return ResultDetail{}, false
	}
	detail := p.d.Detail
	detail.ID = id
	detail.SummaryStats = append([]Metric(nil), detail.SummaryStats...)
	detail.Bar = append([]BarPoint(nil), detail.Bar...)
	detail.Line = append([]LinePoint(nil), detail.Line...)
	detail.Pie = append([]PieSlice(nil), detail.Pie...)
	detail.Table = append([]TableRow(nil), detail.Table...)
	return detail, true
}

// Home はホーム画面の結果を返します。
func (p *Provider) Home() HomeResult {
	home := p.d.Home
	home.KeyMetrics = append([]Metric(nil), home.KeyMetrics...)
	home.Chart = append([]ChartPoint(nil), home.Chart...)
	return home
}

// User はアカウント情報を返します。
func (p *Provider) User() UserProfile {
	return p.d.User
}

// ResultPayload はジョブ完了時に画面へ渡す結果を返します。
func (p *Provider) ResultPayload(id string) (any, bool) {
	if id == HomeResultID {
		return p.Home(), true
	}
	detail, ok := p.Result(id)
	if !ok {
		return nil, false
	}
	return detail, true
}
