package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DaphneDana/Matlab-app/internal/config"
	"github.com/DaphneDana/Matlab-app/internal/fixtures"
	"github.com/DaphneDana/Matlab-app/internal/jobs"
	"github.com/DaphneDana/Matlab-app/internal/simulator"
	"github.com/DaphneDana/Matlab-app/internal/simulator/simulatortest"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) (*gin.Engine, *simulatortest.Scheduler) {
	t.Helper()
	t.Setenv("GIN_MODE", "")
	cfg := config.FromEnv()
	cfg.GinMode = gin.TestMode

	sched := simulatortest.NewScheduler()
	manager, err := jobs.NewManager(jobs.NewMemoryStore(time.Minute), jobs.NewLocalRunner(sched, nil), jobs.ManagerOptions{
		ResultIDFor: resultIDFor,
	})
	require.NoError(t, err)

	deps, err := newServerDeps(cfg, manager)
	require.NoError(t, err)
	return newRouter(cfg, zap.NewNop(), deps), sched
}

type client struct {
	router  *gin.Engine
	cookies []*http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	if got := rec.Result().Cookies(); len(got) > 0 {
		c.cookies = got
	}
	return rec
}

func (c *client) json(t *testing.T, method, path, body string) map[string]any {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := c.do(req)
	require.Less(t, rec.Code, 300, rec.Body.String())
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	router, _ := newTestServer(t)
	c := &client{router: router}

	body := c.json(t, http.MethodGet, "/health", "")
	assert.Equal(t, "ok", body["status"])
}

func TestHomeRunCompletesWithHomeResult(t *testing.T) {
	router, sched := newTestServer(t)
	c := &client{router: router}

	started := c.json(t, http.MethodPost, "/api/analysis/home/start", `{"value":"42"}`)
	assert.Equal(t, true, started["started"])

	sched.TickN(10)

	status := c.json(t, http.MethodGet, "/api/analysis/home", "")
	assert.Equal(t, true, status["isComplete"])
	result, ok := status["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Analysis Completed Successfully", result["status"])
}

func TestHomeStartWithNonNumericValueIsNoop(t *testing.T) {
	router, sched := newTestServer(t)
	c := &client{router: router}

	body := c.json(t, http.MethodPost, "/api/analysis/home/start", `{"value":"mean(A)"}`)
	assert.Equal(t, false, body["started"])
	assert.Equal(t, string(simulator.OutcomePreconditionUnmet), body["outcome"])
	assert.Zero(t, sched.Tick())
}

func TestInputRunUsesStagedUploads(t *testing.T) {
	router, sched := newTestServer(t)
	c := &client{router: router}

	// ファイル未登録では開始しない
	noop := c.json(t, http.MethodPost, "/api/analysis/input/start", `{"analysisType":"regression"}`)
	assert.Equal(t, false, noop["started"])
	assert.Equal(t, string(simulator.OutcomePreconditionUnmet), noop["outcome"])

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "sales.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("id,revenue\n1,100\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := c.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	started := c.json(t, http.MethodPost, "/api/analysis/input/start", `{"analysisType":"regression"}`)
	require.Equal(t, true, started["started"])

	for i := 0; i < 200; i++ {
		sched.Tick()
	}
	sched.FireTimers()

	status := c.json(t, http.MethodGet, "/api/analysis/input", "")
	assert.Equal(t, true, status["isComplete"])
	job := status["job"].(map[string]any)
	assert.Equal(t, fixtures.NewResultID, job["resultId"])
}

func TestRunnerScopedPerSession(t *testing.T) {
	router, _ := newTestServer(t)
	first := &client{router: router}
	second := &client{router: router}

	first.json(t, http.MethodPost, "/api/analysis/home/start", `{"value":"7"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/analysis/home", nil)
	rec := second.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunSimulationQuickProfile(t *testing.T) {
	sched := simulatortest.NewScheduler()
	var out bytes.Buffer
	errCh := make(chan error, 1)
	go func() {
		errCh <- runSimulation(&out, simulator.QuickProfile(), simulator.Options{Scheduler: sched}, make(chan os.Signal), false)
	}()

	require.Eventually(t, func() bool { return sched.Tick() > 0 || len(errCh) > 0 }, time.Second, time.Millisecond)
	sched.TickN(9)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("simulation did not finish")
	}
	assert.Contains(t, out.String(), "Complete! after 10 ticks")
	assert.Contains(t, out.String(), "Running analysis...")
}

func TestRunSimulationCancel(t *testing.T) {
	sched := simulatortest.NewScheduler()
	stop := make(chan os.Signal, 1)
	stop <- os.Interrupt

	var out bytes.Buffer
	require.NoError(t, runSimulation(&out, simulator.QuickProfile(), simulator.Options{Scheduler: sched}, stop, true))
	assert.Contains(t, out.String(), "Cancelled at 0%")
	assert.Zero(t, sched.Tick())
}

func TestRenderHistory(t *testing.T) {
	dashboard, err := fixtures.Default()
	require.NoError(t, err)
	provider, err := fixtures.NewProvider(dashboard)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, renderHistory(&out, provider, fixtures.HistoryQuery{Search: "sales", Status: fixtures.FilterAll, Type: fixtures.FilterAll}))
	assert.Contains(t, out.String(), "Sales Data Q4 2024")
	assert.Contains(t, out.String(), "Showing 1 of 8 analyses")

	out.Reset()
	require.NoError(t, renderHistory(&out, provider, fixtures.HistoryQuery{Search: "nothing-matches", Status: fixtures.FilterAll, Type: fixtures.FilterAll}))
	assert.Equal(t, "No analyses found\n", out.String())
}

func TestRenderProgress(t *testing.T) {
	line := renderProgress(simulator.State{Progress: 50, Phase: simulator.PhaseRunning})
	assert.Equal(t, "["+strings.Repeat("#", 20)+strings.Repeat("-", 20)+"]  50%  Running analysis...", line)
}
