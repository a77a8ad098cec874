// Package api exposes stored sessions and on-demand analyses over HTTP.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/barsense-data/barbell.report/internal/config"
	"github.com/barsense-data/barbell.report/internal/db"
	"github.com/barsense-data/barbell.report/internal/monitoring"
	"github.com/barsense-data/barbell.report/internal/reps"
	"github.com/barsense-data/barbell.report/internal/signal"
	"github.com/barsense-data/barbell.report/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Store is the session persistence surface the server depends on,
// implemented by *db.DB.
type Store interface {
	SaveAnalysis(rec db.SessionRecord, samples []signal.Sample, repetitions []reps.Repetition) error
	Sessions(limit int) ([]db.SessionRecord, error)
	Session(id string) (db.SessionRecord, error)
	Reps(sessionID string) ([]db.RepRecord, error)
	Samples(sessionID string) ([]db.SampleRecord, error)
}

type Server struct {
	store Store
	cfg   *config.TuningConfig
	units string
}

// NewServer builds an API server over a session store. units selects the
// default velocity unit for responses (mps, mph, kmph).
func NewServer(store Store, cfg *config.TuningConfig, defaultUnits string) *Server {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	if !units.IsValidSpeed(defaultUnits) {
		defaultUnits = units.MPS
	}
	return &Server{
		store: store,
		cfg:   cfg,
		units: defaultUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/", s.showSession)
	mux.HandleFunc("/api/analyze", s.runAnalysis)
	mux.HandleFunc("/api/params", s.showParams)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/charts/session", s.sessionChart)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// requestUnits resolves the velocity unit for a response, query param first.
func (s *Server) requestUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, nil
	}
	if !units.IsValidSpeed(u) {
		return "", fmt.Errorf("invalid units %q, want one of %s", u, units.GetValidSpeedUnitsString())
	}
	return u, nil
}

func convertRep(rep db.RepRecord, targetUnits string) db.RepRecord {
	rep.MeanVelocity = units.ConvertSpeed(rep.MeanVelocity, targetUnits)
	rep.PeakVelocity = units.ConvertSpeed(rep.PeakVelocity, targetUnits)
	return rep
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.store.Sessions(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.SessionRecord{}
	}

	if err := json.NewEncoder(w).Encode(sessions); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sessions")
		return
	}
}

// sessionDetail is the /api/sessions/{id} response shape: the session row
// plus its repetitions with velocities in the requested units.
type sessionDetail struct {
	Session db.SessionRecord `json:"session"`
	Reps    []db.RepRecord   `json:"reps"`
	Units   string           `json:"units"`
	MassLb  float64          `json:"mass_lb"`
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" || strings.Contains(id, "/") {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	targetUnits, err := s.requestUnits(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.store.Session(id)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve session: %v", err))
		return
	}

	repRecords, err := s.store.Reps(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve reps: %v", err))
		return
	}
	converted := make([]db.RepRecord, len(repRecords))
	for i, rep := range repRecords {
		converted[i] = convertRep(rep, targetUnits)
	}

	detail := sessionDetail{
		Session: rec,
		Reps:    converted,
		Units:   targetUnits,
		MassLb:  units.ConvertMass(rec.MassKg, units.LB),
	}
	if err := json.NewEncoder(w).Encode(detail); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write session")
		return
	}
}

func (s *Server) showParams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(s.cfg); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write params")
		return
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cfg := map[string]interface{}{
		"units": s.units,
	}
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}
