package fixtures

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	d, err := Default()
	require.NoError(t, err)
	p, err := NewProvider(d)
	require.NoError(t, err)
	return p
}

func TestDefaultFixturesLoad(t *testing.T) {
	p := newProvider(t)

	assert.Len(t, p.RecentRuns(), 3)
	assert.Equal(t, 8, p.HistoryTotal())
	assert.Len(t, p.Results(), 4)
	assert.Len(t, p.Home().Chart, 6)
	assert.Equal(t, []float64{400, 300, 600, 800, 500, 700}, chartValues(p.Home().Chart))
	assert.Equal(t, "John Doe", p.User().Name)

	detail, ok := p.Result(NewResultID)
	require.True(t, ok)
	assert.Equal(t, "new", detail.ID)
	assert.Equal(t, StatusCompleted, detail.Status)
	assert.Equal(t, "$125K", detail.SummaryStats[0].Value)
	assert.Equal(t, "+12%", detail.SummaryStats[1].Value)
	assert.Equal(t, "-2%", detail.Table[2].Growth)
	assert.Equal(t, "Home & Garden", detail.Table[3].Category)
	assert.Equal(t, "#3B82F6", detail.Pie[0].Color)
}

func chartValues(points []ChartPoint) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		out = append(out, p.Value)
	}
	return out
}

func TestParseRejectsUnknownStatus(t *testing.T) {
	_, err := Parse([]byte("history:\n  - id: 1\n    status: archived\ndetail:\n  title: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archived")
}

func TestParseRejectsDanglingResult(t *testing.T) {
	_, err := Parse([]byte("history:\n  - id: 1\n    status: completed\nresults: [2]\ndetail:\n  title: x\n"))
	assert.Error(t, err)
}

func TestProviderReturnsCopies(t *testing.T) {
	p := newProvider(t)

	detail, _ := p.Result("1")
	detail.Table[0].Category = "changed"
	again, _ := p.Result("1")
	assert.Equal(t, "Electronics", again.Table[0].Category)

	home := p.Home()
	home.KeyMetrics[0].Value = "0"
	assert.Equal(t, "542.3", p.Home().KeyMetrics[0].Value)
}

func TestResultLookup(t *testing.T) {
	p := newProvider(t)

	for _, id := range []string{"8", "99", "abc", "run_2024-q4"} {
		detail, ok := p.Result(id)
		assert.True(t, ok, id)
		assert.Equal(t, id, detail.ID)
	}
	for _, id := range []string{"", `a"b`, "a b", strings.Repeat("x", 65)} {
		_, ok := p.Result(id)
		assert.False(t, ok, id)
	}

	payload, ok := p.ResultPayload(HomeResultID)
	require.True(t, ok)
	assert.IsType(t, HomeResult{}, payload)
}

func TestHistoryQuery(t *testing.T) {
	p := newProvider(t)

	tests := []struct {
		name  string
		query HistoryQuery
		ids   []int
	}{
		{"all", HistoryQuery{Status: FilterAll, Type: FilterAll}, []int{1, 2, 3, 4, 5, 6, 7, 8}},
		{"search title case insensitive", HistoryQuery{Search: "SALES"}, []int{1}},
		{"search file name", HistoryQuery{Search: ".json"}, []int{4, 7}},
		{"failed", HistoryQuery{Status: "failed"}, []int{3, 7}},
		{"type", HistoryQuery{Type: "Clustering"}, []int{3, 8}},
		{"combined", HistoryQuery{Status: "completed", Type: "Clustering"}, []int{8}},
		{"no match", HistoryQuery{Search: "nothing"}, []int{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ids := []int{}
			for _, a := range p.History(tc.query) {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tc.ids, ids)
		})
	}

	assert.False(t, HistoryQuery{Status: FilterAll}.IsFiltered())
	assert.True(t, HistoryQuery{Search: "x"}.IsFiltered())
	assert.Error(t, HistoryQuery{Status: "archived"}.Validate())
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "15,420", FormatCount(15420))
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "-", Analysis{RecordCount: 0}.Records())
	assert.Equal(t, "1,234,567", Analysis{RecordCount: 1234567}.Records())
}

func TestExport(t *testing.T) {
	p := newProvider(t)
	detail, _ := p.Result("new")

	csvBody, err := Export(detail, ExportCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvBody)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "id,category,revenue,growth,status", lines[0])
	assert.Equal(t, "1,Electronics,45000,+12%,High", lines[1])

	jsonBody, err := Export(detail, ExportJSON)
	require.NoError(t, err)
	var decoded ResultDetail
	require.NoError(t, json.Unmarshal(jsonBody, &decoded))
	assert.Equal(t, "new", decoded.ID)

	_, err = ParseExportFormat("xml")
	assert.Error(t, err)
}

func newRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router.Group("/api"), newProvider(t))
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHistoryHandler(t *testing.T) {
	router := newRouter(t)

	rec := get(router, "/api/history?search=data&status=completed")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Analyses []struct {
			ID      int    `json:"id"`
			Records string `json:"records"`
		} `json:"analyses"`
		Total    int  `json:"total"`
		Count    int  `json:"count"`
		Filtered bool `json:"filtered"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 8, body.Total)
	assert.True(t, body.Filtered)
	require.Equal(t, 3, body.Count)
	assert.Equal(t, 1, body.Analyses[0].ID)
	assert.Equal(t, "15,420", body.Analyses[0].Records)
	assert.Equal(t, 5, body.Analyses[2].ID)

	rec = get(router, "/api/history?status=archived")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResultHandlers(t *testing.T) {
	router := newRouter(t)

	rec := get(router, "/api/results/new")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":"15,420 records"`)

	rec = get(router, "/api/results/404")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"404"`)

	rec = get(router, "/api/results/a%22b")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(router, "/api/results/new/export?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "analysis-new.csv")

	rec = get(router, "/api/results/new/export?format=pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(router, "/api/results")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Product Performance Metrics")

	rec = get(router, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dataset_A.csv")
}
