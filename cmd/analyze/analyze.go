// Command analyze runs a one-shot offline analysis: a directory of video
// frames plus the user marks from the first frame in, repetition metrics out.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/barsense-data/barbell.report/internal/calib"
	"github.com/barsense-data/barbell.report/internal/config"
	"github.com/barsense-data/barbell.report/internal/report"
	"github.com/barsense-data/barbell.report/internal/reps"
	"github.com/barsense-data/barbell.report/internal/session"
	sigproc "github.com/barsense-data/barbell.report/internal/signal"
	"github.com/barsense-data/barbell.report/internal/units"
	"github.com/barsense-data/barbell.report/internal/video"
)

var (
	frameDir   = flag.String("frames", "", "Directory of video frames (required)")
	fps        = flag.Float64("fps", 30, "Frame rate when the directory has no manifest")
	markX      = flag.Float64("mark-x", 0, "Marked bar center X on the first frame (pixels)")
	markY      = flag.Float64("mark-y", 0, "Marked bar center Y on the first frame (pixels)")
	refRadius  = flag.Float64("ref-radius", 0, "Marked sleeve cap radius on the first frame (pixels)")
	mass       = flag.Float64("mass", 0, "Bar load")
	massUnits  = flag.String("mass-units", "kg", "Units of -mass (kg or lb)")
	speedUnits = flag.String("units", "mps", "Velocity units in the output (mps, mph, kmph)")
	tuningFile = flag.String("tuning", "", "Path to a tuning config JSON file (optional)")
	outDir     = flag.String("out", "", "Directory for metrics.json and plots (default: stdout, no plots)")
	barPath    = flag.Bool("barpath", false, "Also write a bar path overlay webp (requires -out)")
)

// output is the metrics document written for one analysis.
type output struct {
	SessionID string         `json:"session_id"`
	Status    session.Status `json:"status"`
	Frames    int            `json:"frames"`
	DurationS float64        `json:"duration_s"`
	MassKg    float64        `json:"mass_kg"`
	Units     string         `json:"units"`
	Reps      []repMetrics   `json:"reps"`
}

type repMetrics struct {
	StartTimeS   float64 `json:"start_time_s"`
	EndTimeS     float64 `json:"end_time_s"`
	MeanVelocity float64 `json:"mean_velocity"`
	PeakVelocity float64 `json:"peak_velocity"`
	PeakForce    float64 `json:"peak_force"`
}

func main() {
	flag.Parse()

	if *frameDir == "" {
		log.Fatal("-frames is required")
	}
	if !units.IsValidMass(*massUnits) {
		log.Fatalf("Invalid mass units %q, want kg or lb", *massUnits)
	}
	if !units.IsValidSpeed(*speedUnits) {
		log.Fatalf("Invalid units %q, want one of %s", *speedUnits, units.GetValidSpeedUnitsString())
	}
	if *barPath && *outDir == "" {
		log.Fatal("-barpath requires -out")
	}

	cfg := config.EmptyTuningConfig()
	if *tuningFile != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	massKg := units.MassToKilograms(*mass, *massUnits)
	cal, err := calib.FromReference(*markX, *markY, *refRadius, calib.SleeveCapDiameterM)
	if err != nil {
		log.Fatalf("Invalid calibration: %v", err)
	}

	src, err := video.NewDirSource(*frameDir, *fps)
	if err != nil {
		log.Fatalf("Failed to open frames: %v", err)
	}
	defer src.Close()

	first, err := src.Frame(ctx, 0)
	if err != nil {
		log.Fatalf("Failed to read first frame: %v", err)
	}

	opts := session.DefaultOptions()
	opts.Tracker = cfg.TrackerConfig()
	opts.FrameStep = cfg.GetFrameStep()
	opts.MaxLosses = cfg.GetMaxSessionLosses()

	sess, err := session.Begin(first, *markX, *markY, cal, massKg, opts)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	status, err := sess.Run(ctx, src)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	traj := sess.Trajectory()
	samples := sigproc.Process(traj.Points(), cal.PixelsPerMeter, massKg, cfg.PipelineConfig())
	repetitions := reps.Segment(samples, cfg.RepConfig())

	out := output{
		SessionID: sess.ID,
		Status:    status,
		Frames:    traj.Len(),
		DurationS: src.Duration(),
		MassKg:    massKg,
		Units:     *speedUnits,
	}
	for _, r := range repetitions {
		m := repMetrics{
			MeanVelocity: units.ConvertSpeed(r.MeanVelocity, *speedUnits),
			PeakVelocity: units.ConvertSpeed(r.PeakVelocity, *speedUnits),
			PeakForce:    r.PeakForce,
		}
		if r.StartIndex >= 0 && r.StartIndex < len(samples) {
			m.StartTimeS = samples[r.StartIndex].Time
		}
		if r.EndIndex >= 0 && r.EndIndex < len(samples) {
			m.EndTimeS = samples[r.EndIndex].Time
		}
		out.Reps = append(out.Reps, m)
	}

	if *outDir == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Fatalf("Failed to write metrics: %v", err)
		}
		return
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal metrics: %v", err)
	}
	metricsPath := filepath.Join(*outDir, "metrics.json")
	if err := os.WriteFile(metricsPath, data, 0644); err != nil {
		log.Fatalf("Failed to write metrics: %v", err)
	}
	log.Printf("Wrote %s", metricsPath)

	if len(samples) > 0 {
		written, err := report.WriteCurvePlots(*outDir, sess.ID, samples)
		if err != nil {
			log.Fatalf("Failed to write plots: %v", err)
		}
		for _, path := range written {
			log.Printf("Wrote %s", path)
		}
	}

	if *barPath {
		overlayPath := filepath.Join(*outDir, "barpath.webp")
		if err := report.WriteBarPath(overlayPath, first.Image, traj.Points(), 2); err != nil {
			log.Fatalf("Failed to write bar path overlay: %v", err)
		}
		log.Printf("Wrote %s", overlayPath)
	}
}
