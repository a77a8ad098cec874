package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/barsense-data/barbell.report/internal/reps"
	"github.com/barsense-data/barbell.report/internal/signal"
	"github.com/barsense-data/barbell.report/internal/track"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/params endpoint so the same JSON can be used
// for both startup configuration and runtime updates. Fields omitted from
// the JSON retain their default values, so partial configs are safe.
type TuningConfig struct {
	// Tracker params
	TargetRadiusPx    *float64 `json:"target_radius_px,omitempty"`
	ColorTolerance    *float64 `json:"color_tolerance,omitempty"`
	WindowRadiusScale *float64 `json:"window_radius_scale,omitempty"`
	AcceptConfidence  *float64 `json:"accept_confidence,omitempty"`
	AdaptConfidence   *float64 `json:"adapt_confidence,omitempty"`
	ReacquireAfter    *int     `json:"reacquire_after,omitempty"`
	SampleStride      *int     `json:"sample_stride,omitempty"`

	// Pipeline params
	SmoothingWindowMs *float64 `json:"smoothing_window_ms,omitempty"`
	ForceWindowMs     *float64 `json:"force_window_ms,omitempty"`

	// Repetition segmentation params
	RepOnThreshold  *float64 `json:"rep_on_threshold,omitempty"`
	RepOffThreshold *float64 `json:"rep_off_threshold,omitempty"`
	RepMinFrames    *int     `json:"rep_min_frames,omitempty"`

	// Session params
	MaxSessionLosses *int     `json:"max_session_losses,omitempty"`
	FrameStep        *float64 `json:"frame_step,omitempty"` // seconds between analysed frames
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The materializer methods provide
	// fallback defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.TargetRadiusPx != nil && *c.TargetRadiusPx <= 0 {
		return fmt.Errorf("target_radius_px must be positive, got %f", *c.TargetRadiusPx)
	}
	if c.ColorTolerance != nil && *c.ColorTolerance <= 0 {
		return fmt.Errorf("color_tolerance must be positive, got %f", *c.ColorTolerance)
	}
	if c.WindowRadiusScale != nil && *c.WindowRadiusScale <= 0 {
		return fmt.Errorf("window_radius_scale must be positive, got %f", *c.WindowRadiusScale)
	}
	if c.AcceptConfidence != nil && (*c.AcceptConfidence < 0 || *c.AcceptConfidence > 1) {
		return fmt.Errorf("accept_confidence must be between 0 and 1, got %f", *c.AcceptConfidence)
	}
	if c.AdaptConfidence != nil && (*c.AdaptConfidence < 0 || *c.AdaptConfidence > 1) {
		return fmt.Errorf("adapt_confidence must be between 0 and 1, got %f", *c.AdaptConfidence)
	}
	if c.SampleStride != nil && *c.SampleStride < 1 {
		return fmt.Errorf("sample_stride must be at least 1, got %d", *c.SampleStride)
	}
	if c.SmoothingWindowMs != nil && *c.SmoothingWindowMs < 0 {
		return fmt.Errorf("smoothing_window_ms must be non-negative, got %f", *c.SmoothingWindowMs)
	}
	if c.ForceWindowMs != nil && *c.ForceWindowMs < 0 {
		return fmt.Errorf("force_window_ms must be non-negative, got %f", *c.ForceWindowMs)
	}
	if c.RepOnThreshold != nil && c.RepOffThreshold != nil && *c.RepOffThreshold > *c.RepOnThreshold {
		return fmt.Errorf("rep_off_threshold %f must not exceed rep_on_threshold %f",
			*c.RepOffThreshold, *c.RepOnThreshold)
	}
	if c.RepMinFrames != nil && *c.RepMinFrames < 0 {
		return fmt.Errorf("rep_min_frames must be non-negative, got %d", *c.RepMinFrames)
	}
	if c.MaxSessionLosses != nil && *c.MaxSessionLosses < 1 {
		return fmt.Errorf("max_session_losses must be at least 1, got %d", *c.MaxSessionLosses)
	}
	if c.FrameStep != nil && *c.FrameStep <= 0 {
		return fmt.Errorf("frame_step must be positive, got %f", *c.FrameStep)
	}
	return nil
}

// GetMaxSessionLosses returns the max_session_losses value or the default.
// A session whose tracker stays lost for this many consecutive frames is
// reported as lost.
func (c *TuningConfig) GetMaxSessionLosses() int {
	if c.MaxSessionLosses == nil {
		return 45
	}
	return *c.MaxSessionLosses
}

// GetFrameStep returns the frame_step value or the default (30fps sampling).
func (c *TuningConfig) GetFrameStep() float64 {
	if c.FrameStep == nil {
		return 1.0 / 30.0
	}
	return *c.FrameStep
}

// TrackerConfig materializes the tracker configuration, overlaying tuned
// values on the package defaults.
func (c *TuningConfig) TrackerConfig() track.TrackerConfig {
	cfg := track.DefaultTrackerConfig()
	if c.TargetRadiusPx != nil {
		cfg.TargetRadiusPx = *c.TargetRadiusPx
	}
	if c.ColorTolerance != nil {
		cfg.ColorTolerance = *c.ColorTolerance
	}
	if c.WindowRadiusScale != nil {
		cfg.WindowRadiusScale = *c.WindowRadiusScale
	}
	if c.AcceptConfidence != nil {
		cfg.AcceptConfidence = *c.AcceptConfidence
	}
	if c.AdaptConfidence != nil {
		cfg.AdaptConfidence = *c.AdaptConfidence
	}
	if c.ReacquireAfter != nil {
		cfg.ReacquireAfter = *c.ReacquireAfter
	}
	if c.SampleStride != nil {
		cfg.SampleStride = *c.SampleStride
	}
	return cfg
}

// PipelineConfig materializes the signal pipeline configuration.
func (c *TuningConfig) PipelineConfig() signal.Config {
	cfg := signal.DefaultConfig()
	if c.SmoothingWindowMs != nil {
		cfg.SmoothingWindowMs = *c.SmoothingWindowMs
	}
	if c.ForceWindowMs != nil {
		cfg.ForceWindowMs = *c.ForceWindowMs
	}
	return cfg
}

// RepConfig materializes the repetition segmentation configuration.
func (c *TuningConfig) RepConfig() reps.Config {
	cfg := reps.DefaultConfig()
	if c.RepOnThreshold != nil {
		cfg.OnThreshold = *c.RepOnThreshold
	}
	if c.RepOffThreshold != nil {
		cfg.OffThreshold = *c.RepOffThreshold
	}
	if c.RepMinFrames != nil {
		cfg.MinFrames = *c.RepMinFrames
	}
	return cfg
}
