package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/barsense-data/barbell.report/internal/config"
	"github.com/barsense-data/barbell.report/internal/db"
	"github.com/barsense-data/barbell.report/internal/monitoring"
	"github.com/barsense-data/barbell.report/internal/reps"
	"github.com/barsense-data/barbell.report/internal/signal"
)

func init() {
	monitoring.SetLogger(nil)
}

func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	dbInst, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { dbInst.Close() })
	if err := dbInst.MigrateUp("../../db/migrations"); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return NewServer(dbInst, config.EmptyTuningConfig(), "mps"), dbInst
}

func storedSession(t *testing.T, dbInst *db.DB, id string) {
	t.Helper()
	rec := db.SessionRecord{
		ID: id, Status: "completed", MassKg: 100, PixelsPerMeter: 1000,
		FrameCount: 4, DurationS: 0.3,
	}
	samples := []signal.Sample{
		{Time: 0.0, PositionM: 0.00, Velocity: 0.0, Force: 981, SmoothedForce: 981},
		{Time: 0.1, PositionM: 0.05, Velocity: 0.5, Force: 1000, SmoothedForce: 990},
		{Time: 0.2, PositionM: 0.10, Velocity: 0.5, Force: 981, SmoothedForce: 985},
		{Time: 0.3, PositionM: 0.15, Velocity: 0.4, Force: 960, SmoothedForce: 975},
	}
	repetitions := []reps.Repetition{
		{StartIndex: 1, EndIndex: 3, MeanVelocity: 0.5, PeakVelocity: 0.5, PeakForce: 990},
	}
	if err := dbInst.SaveAnalysis(rec, samples, repetitions); err != nil {
		t.Fatalf("Failed to store session: %v", err)
	}
}

func TestListSessionsEmpty(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want empty array", body)
	}
}

func TestListSessionsMethodNotAllowed(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestListSessionsInvalidLimit(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions?limit=bogus", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestShowSessionNotFound(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestShowSessionConvertsUnits(t *testing.T) {
	server, dbInst := setupTestServer(t)
	storedSession(t, dbInst, "s-1")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s-1?units=mph", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var detail sessionDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if detail.Session.ID != "s-1" {
		t.Errorf("session ID = %q, want s-1", detail.Session.ID)
	}
	if len(detail.Reps) != 1 {
		t.Fatalf("expected 1 rep, got %d", len(detail.Reps))
	}
	// 0.5 m/s is 1.118 mph.
	if math.Abs(detail.Reps[0].MeanVelocity-1.11847) > 0.001 {
		t.Errorf("mean velocity = %f mph, want 1.118", detail.Reps[0].MeanVelocity)
	}
	// Force stays in newtons regardless of units.
	if detail.Reps[0].PeakForce != 990 {
		t.Errorf("peak force = %f, want 990", detail.Reps[0].PeakForce)
	}
	if math.Abs(detail.MassLb-220.462) > 0.01 {
		t.Errorf("mass = %f lb, want 220.46", detail.MassLb)
	}
}

func TestShowSessionInvalidUnits(t *testing.T) {
	server, dbInst := setupTestServer(t)
	storedSession(t, dbInst, "s-1")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s-1?units=furlongs", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestShowParams(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/params", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var cfg config.TuningConfig
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("params response is not a tuning config: %v", err)
	}
}

func TestShowConfig(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var cfg map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	if cfg["units"] != "mps" {
		t.Errorf("units = %v, want mps", cfg["units"])
	}
}

func TestSessionChart(t *testing.T) {
	server, dbInst := setupTestServer(t)
	storedSession(t, dbInst, "s-1")

	req := httptest.NewRequest(http.MethodGet, "/charts/session?id=s-1", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want text/html", ct)
	}
	if !strings.Contains(w.Body.String(), "echarts") {
		t.Error("expected an echarts document")
	}
}

func TestSessionChartMissingID(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/charts/session", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSessionChartNotFound(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/charts/session?id=missing", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestLoggingMiddlewarePreservesStatus(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", w.Code)
	}
}
