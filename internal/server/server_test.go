package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zerotrust-labs/sentinel/internal/config"
	"github.com/zerotrust-labs/sentinel/internal/coordinator"
	"github.com/zerotrust-labs/sentinel/internal/credentials"
	"github.com/zerotrust-labs/sentinel/internal/monitor"
	"github.com/zerotrust-labs/sentinel/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubDevice struct{}

func (stubDevice) Model() string            { return "test" }
func (stubDevice) OS() string               { return "testos" }
func (stubDevice) Screen() (int, int, bool) { return 0, 0, false }

// stubBackend satisfies both the server's Backend and the coordinator's
// Gateway so one fixture drives the whole stack.
type stubBackend struct {
	healthy     bool
	riskPayload map[string]any
	history     []map[string]any
	logouts     int
}

func (b *stubBackend) HealthCheck(ctx context.Context) bool { return b.healthy }

func (b *stubBackend) Logout(ctx context.Context) error {
	b.logouts++
	return nil
}

func (b *stubBackend) SubmitBehavior(ctx context.Context, s telemetry.Sample) error { return nil }

func (b *stubBackend) SubmitForRiskCalculation(ctx context.Context, s telemetry.Sample) (map[string]any, error) {
	return b.riskPayload, nil
}

func (b *stubBackend) FetchCurrentRisk(ctx context.Context) (map[string]any, error) {
	return b.riskPayload, nil
}

func (b *stubBackend) FetchRiskHistory(ctx context.Context, limit int) ([]map[string]any, error) {
	return b.history, nil
}

func (b *stubBackend) FetchDashboard(ctx context.Context) (map[string]any, error) {
	return map[string]any{"dashboard": map[string]any{}}, nil
}

func (b *stubBackend) TriggerModelTraining(ctx context.Context) (map[string]any, error) {
	return map[string]any{"success": true}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:     "0",
		Env:      "development",
		LogLevel: "error",
		APIURL:   "http://localhost:5000",
	}
}

type fixture struct {
	server  *Server
	backend *stubBackend
	creds   *credentials.Manager
	mon     *monitor.Monitor
	coord   *coordinator.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := &stubBackend{healthy: true}
	creds := credentials.NewManager(credentials.NewMemoryStore(), slog.Default())
	coord := coordinator.New(backend, telemetry.NewSampler(stubDevice{}))
	mon := monitor.New(func(ctx context.Context) error { return nil },
		monitor.WithInterval(time.Hour))
	t.Cleanup(mon.Close)

	s := New(testConfig(), coord, mon, nil, backend, creds)
	s.ready.Store(true)
	return &fixture{server: s, backend: backend, creds: creds, mon: mon, coord: coord}
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	f.server.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	w := f.do("GET", "/healthz")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", resp["status"])
	}
	if resp["backend"] != true {
		t.Errorf("expected backend true, got %v", resp["backend"])
	}
}

func TestHealthReportsUnreachableBackend(t *testing.T) {
	f := newFixture(t)
	f.backend.healthy = false

	w := f.do("GET", "/healthz")
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["backend"] != false {
		t.Errorf("expected backend false, got %v", resp["backend"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	if err := f.creds.Save("token-1"); err != nil {
		t.Fatal(err)
	}

	w := f.do("GET", "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["authenticated"] != true {
		t.Errorf("expected authenticated true, got %v", resp["authenticated"])
	}
	if resp["monitoring"] != false {
		t.Errorf("expected monitoring false, got %v", resp["monitoring"])
	}
}

func TestRiskEndpoint_NoAssessment(t *testing.T) {
	f := newFixture(t)

	w := f.do("GET", "/api/risk")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any assessment, got %d", w.Code)
	}
}

func TestRiskEndpoint_AfterCalculation(t *testing.T) {
	f := newFixture(t)
	f.backend.riskPayload = map[string]any{"risk_score": 25.0}

	w := f.do("POST", "/api/risk/calculate")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from calculate, got %d: %s", w.Code, w.Body.String())
	}

	w = f.do("GET", "/api/risk")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["score"] != 25.0 {
		t.Errorf("expected score 25, got %v", resp["score"])
	}
	if resp["level"] != "LOW" {
		t.Errorf("expected level LOW, got %v", resp["level"])
	}
}

func TestHistoryEndpoint(t *testing.T) {
	f := newFixture(t)
	f.backend.history = []map[string]any{
		{"risk_score": 10.0},
		{"risk_score": 70.0},
	}

	w := f.do("GET", "/api/history?limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["count"] != 2.0 {
		t.Errorf("expected count 2, got %v", resp["count"])
	}
}

func TestHistoryEndpoint_InvalidLimit(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"0", "101", "abc"} {
		w := f.do("GET", "/api/history?limit="+q)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestMonitorStartRequiresAuth(t *testing.T) {
	f := newFixture(t)

	w := f.do("POST", "/api/monitor/start")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 without a token, got %d", w.Code)
	}
	if f.mon.Running() {
		t.Error("monitor must not start unauthenticated")
	}
}

func TestMonitorStartStop(t *testing.T) {
	f := newFixture(t)
	if err := f.creds.Save("token-1"); err != nil {
		t.Fatal(err)
	}

	w := f.do("POST", "/api/monitor/start")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !f.mon.Running() {
		t.Error("monitor should be running after start")
	}

	w = f.do("POST", "/api/monitor/stop")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if f.mon.Running() {
		t.Error("monitor should be stopped after stop")
	}
}

func TestTrainEndpointRefreshesSnapshot(t *testing.T) {
	f := newFixture(t)

	w := f.do("POST", "/api/train")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if f.coord.Snapshot() == nil {
		t.Error("train should refresh the dashboard snapshot")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t)
	if err := f.creds.Save("token-1"); err != nil {
		t.Fatal(err)
	}
	f.backend.riskPayload = map[string]any{"risk_score": 40.0}
	f.do("POST", "/api/risk/calculate")

	w := f.do("POST", "/api/logout")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if _, ok := f.creds.Token(); ok {
		t.Error("token should be cleared after logout")
	}
	if f.backend.logouts != 1 {
		t.Errorf("expected one server-side logout, got %d", f.backend.logouts)
	}
	if f.coord.LatestRisk() != nil {
		t.Error("risk state should be dropped after logout")
	}
}

func TestCoreRoutesRegistered(t *testing.T) {
	f := newFixture(t)

	expected := []string{
		"GET:/healthz",
		"GET:/metrics",
		"GET:/api/status",
		"GET:/api/risk",
		"GET:/api/history",
		"POST:/api/risk/calculate",
		"POST:/api/train",
		"POST:/api/monitor/start",
		"POST:/api/monitor/stop",
		"POST:/api/logout",
	}

	routeSet := make(map[string]bool)
	for _, route := range f.server.router.Routes() {
		routeSet[route.Method+":"+route.Path] = true
	}
	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("route %s not registered", e)
		}
	}
}

func TestNotFoundRoute(t *testing.T) {
	f := newFixture(t)

	w := f.do("GET", "/api/nonexistent")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
