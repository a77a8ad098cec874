// Package reps partitions a processed motion sequence into discrete
// repetitions and summarizes each one.
package reps

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/barsense-data/barbell.report/internal/signal"
)

// Config holds the segmentation thresholds.
type Config struct {
	// OnThreshold is the velocity (m/s) at which a repetition begins.
	OnThreshold float64
	// OffThreshold is the velocity (m/s) at which a repetition ends. Kept at
	// or below OnThreshold so boundary chatter cannot open and close reps on
	// consecutive frames.
	OffThreshold float64
	// MinFrames filters noise and unracking motion: candidate intervals
	// spanning fewer frames are discarded.
	MinFrames int
}

// DefaultConfig returns segmentation defaults for barbell lifts.
func DefaultConfig() Config {
	return Config{
		OnThreshold:  0.15,
		OffThreshold: 0.05,
		MinFrames:    8,
	}
}

// Repetition is one detected concentric phase with its summary statistics.
type Repetition struct {
	StartIndex   int     `json:"start_index"`
	EndIndex     int     `json:"end_index"`
	MeanVelocity float64 `json:"mean_velocity_mps"`
	PeakVelocity float64 `json:"peak_velocity_mps"`
	PeakForce    float64 `json:"peak_force_n"`
}

// Segment identifies repetitions in the processed sequence using hysteresis
// thresholding on velocity. Zero detected repetitions is a valid outcome, not
// an error.
func Segment(samples []signal.Sample, cfg Config) []Repetition {
	if len(samples) == 0 {
		return nil
	}
	if cfg.OffThreshold > cfg.OnThreshold {
		cfg.OffThreshold = cfg.OnThreshold
	}

	var reps []Repetition
	start := -1
	for i, s := range samples {
		if start < 0 {
			if s.Velocity > cfg.OnThreshold {
				start = i
			}
			continue
		}
		if s.Velocity < cfg.OffThreshold {
			if i-1-start >= cfg.MinFrames {
				reps = append(reps, summarize(samples, start, i-1))
			}
			start = -1
		}
	}
	// Interval still open at the end of the sequence closes at the last index.
	if start >= 0 && len(samples)-1-start >= cfg.MinFrames {
		reps = append(reps, summarize(samples, start, len(samples)-1))
	}
	return reps
}

// summarize computes per-repetition metrics over samples[start..end].
func summarize(samples []signal.Sample, start, end int) Repetition {
	interval := samples[start : end+1]

	// Mean velocity counts only the concentric (positive-velocity) samples;
	// any descent inside the interval is excluded.
	positive := make([]float64, 0, len(interval))
	velocities := make([]float64, 0, len(interval))
	forces := make([]float64, 0, len(interval))
	for _, s := range interval {
		if s.Velocity > 0 {
			positive = append(positive, s.Velocity)
		}
		velocities = append(velocities, s.Velocity)
		forces = append(forces, s.SmoothedForce)
	}

	rep := Repetition{StartIndex: start, EndIndex: end}
	if len(positive) > 0 {
		rep.MeanVelocity = stat.Mean(positive, nil)
	}
	rep.PeakVelocity = floats.Max(velocities)
	rep.PeakForce = floats.Max(forces)
	return rep
}
