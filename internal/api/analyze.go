package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/barsense-data/barbell.report/internal/calib"
	"github.com/barsense-data/barbell.report/internal/db"
	"github.com/barsense-data/barbell.report/internal/monitoring"
	"github.com/barsense-data/barbell.report/internal/reps"
	"github.com/barsense-data/barbell.report/internal/session"
	"github.com/barsense-data/barbell.report/internal/signal"
	"github.com/barsense-data/barbell.report/internal/units"
	"github.com/barsense-data/barbell.report/internal/video"
)

// analyzeRequest describes one offline analysis: a frame directory plus the
// user marks from the first frame.
type analyzeRequest struct {
	FrameDir    string  `json:"frame_dir"`
	FPS         float64 `json:"fps"`
	MarkX       float64 `json:"mark_x"`
	MarkY       float64 `json:"mark_y"`
	RefRadiusPx float64 `json:"ref_radius_px"`
	Mass        float64 `json:"mass"`
	MassUnits   string  `json:"mass_units"` // kg (default) or lb
}

// analyzeResponse summarizes a finished analysis.
type analyzeResponse struct {
	SessionID string         `json:"session_id"`
	Status    session.Status `json:"status"`
	Frames    int            `json:"frames"`
	Reps      []db.RepRecord `json:"reps"`
	Units     string         `json:"units"`
}

func (s *Server) runAnalysis(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.FrameDir == "" {
		s.writeJSONError(w, http.StatusBadRequest, "frame_dir is required")
		return
	}
	if req.MassUnits != "" && !units.IsValidMass(req.MassUnits) {
		s.writeJSONError(w, http.StatusBadRequest, "mass_units must be kg or lb")
		return
	}
	targetUnits, err := s.requestUnits(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	massKg := units.MassToKilograms(req.Mass, req.MassUnits)

	cal, err := calib.FromReference(req.MarkX, req.MarkY, req.RefRadiusPx, calib.SleeveCapDiameterM)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid calibration: %v", err))
		return
	}

	src, err := video.NewDirSource(req.FrameDir, req.FPS)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to open frames: %v", err))
		return
	}
	defer src.Close()

	ctx := r.Context()
	first, err := src.Frame(ctx, 0)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read first frame: %v", err))
		return
	}

	opts := session.DefaultOptions()
	opts.Tracker = s.cfg.TrackerConfig()
	opts.FrameStep = s.cfg.GetFrameStep()
	opts.MaxLosses = s.cfg.GetMaxSessionLosses()

	sess, err := session.Begin(first, req.MarkX, req.MarkY, cal, massKg, opts)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to start session: %v", err))
		return
	}

	status, err := sess.Run(ctx, src)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Analysis failed: %v", err))
		return
	}

	traj := sess.Trajectory()
	samples := signal.Process(traj.Points(), cal.PixelsPerMeter, massKg, s.cfg.PipelineConfig())
	repetitions := reps.Segment(samples, s.cfg.RepConfig())

	rec := db.SessionRecord{
		ID:             sess.ID,
		Status:         string(status),
		MassKg:         massKg,
		PixelsPerMeter: cal.PixelsPerMeter,
		FrameCount:     int64(traj.Len()),
		DurationS:      src.Duration(),
	}
	if err := s.store.SaveAnalysis(rec, samples, repetitions); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save analysis: %v", err))
		return
	}
	monitoring.Logf("analysis %s: %s, %d frames, %d reps", sess.ID, status, traj.Len(), len(repetitions))

	repRecords, err := s.store.Reps(sess.ID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load reps: %v", err))
		return
	}
	converted := make([]db.RepRecord, len(repRecords))
	for i, rep := range repRecords {
		converted[i] = convertRep(rep, targetUnits)
	}

	resp := analyzeResponse{
		SessionID: sess.ID,
		Status:    status,
		Frames:    traj.Len(),
		Reps:      converted,
		Units:     targetUnits,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write response")
		return
	}
}
