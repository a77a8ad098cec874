package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/barsense-data/barbell.report/internal/track"
)

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "target_radius_px": 20,
  "color_tolerance": 48,
  "accept_confidence": 0.7,
  "smoothing_window_ms": 150,
  "rep_on_threshold": 0.2,
  "rep_off_threshold": 0.1,
  "max_session_losses": 60
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.TargetRadiusPx == nil || *cfg.TargetRadiusPx != 20 {
		t.Errorf("TargetRadiusPx = %v, want 20", cfg.TargetRadiusPx)
	}
	if cfg.ColorTolerance == nil || *cfg.ColorTolerance != 48 {
		t.Errorf("ColorTolerance = %v, want 48", cfg.ColorTolerance)
	}
	if cfg.AcceptConfidence == nil || *cfg.AcceptConfidence != 0.7 {
		t.Errorf("AcceptConfidence = %v, want 0.7", cfg.AcceptConfidence)
	}
	if cfg.SmoothingWindowMs == nil || *cfg.SmoothingWindowMs != 150 {
		t.Errorf("SmoothingWindowMs = %v, want 150", cfg.SmoothingWindowMs)
	}
	if cfg.GetMaxSessionLosses() != 60 {
		t.Errorf("GetMaxSessionLosses() = %d, want 60", cfg.GetMaxSessionLosses())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "color_tolerance": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name: "negative target radius",
			cfg: &TuningConfig{
				TargetRadiusPx: ptrFloat64(-5),
			},
			wantErr: true,
		},
		{
			name: "zero color tolerance",
			cfg: &TuningConfig{
				ColorTolerance: ptrFloat64(0),
			},
			wantErr: true,
		},
		{
			name: "accept confidence above 1",
			cfg: &TuningConfig{
				AcceptConfidence: ptrFloat64(1.5),
			},
			wantErr: true,
		},
		{
			name: "off threshold above on threshold",
			cfg: &TuningConfig{
				RepOnThreshold:  ptrFloat64(0.1),
				RepOffThreshold: ptrFloat64(0.2),
			},
			wantErr: true,
		},
		{
			name: "off threshold equal to on threshold",
			cfg: &TuningConfig{
				RepOnThreshold:  ptrFloat64(0.1),
				RepOffThreshold: ptrFloat64(0.1),
			},
			wantErr: false,
		},
		{
			name: "zero sample stride",
			cfg: &TuningConfig{
				SampleStride: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "negative rep min frames",
			cfg: &TuningConfig{
				RepMinFrames: ptrInt(-1),
			},
			wantErr: true,
		},
		{
			name: "zero frame step",
			cfg: &TuningConfig{
				FrameStep: ptrFloat64(0),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	// The defaults file must mirror the compiled-in defaults.
	tc := cfg.TrackerConfig()
	if tc.TargetRadiusPx != 14 {
		t.Errorf("Expected target radius 14, got %f", tc.TargetRadiusPx)
	}
	if tc.ColorTolerance != 36 {
		t.Errorf("Expected color tolerance 36, got %f", tc.ColorTolerance)
	}
	pc := cfg.PipelineConfig()
	if pc.SmoothingWindowMs != 200 {
		t.Errorf("Expected smoothing window 200ms, got %f", pc.SmoothingWindowMs)
	}
	rc := cfg.RepConfig()
	if rc.OnThreshold != 0.15 {
		t.Errorf("Expected on threshold 0.15, got %f", rc.OnThreshold)
	}
	if cfg.GetMaxSessionLosses() != 45 {
		t.Errorf("Expected 45 max session losses, got %d", cfg.GetMaxSessionLosses())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.example.json")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.TargetRadiusPx == nil || *cfg.TargetRadiusPx != 20 {
		t.Errorf("Expected target radius 20, got %v", cfg.TargetRadiusPx)
	}
	if cfg.RepMinFrames == nil || *cfg.RepMinFrames != 12 {
		t.Errorf("Expected rep min frames 12, got %v", cfg.RepMinFrames)
	}
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	// Partial config: only override the tracker radius; everything else
	// should materialize from package defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "target_radius_px": 18
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	want := track.DefaultTrackerConfig()
	want.TargetRadiusPx = 18
	if diff := cmp.Diff(want, cfg.TrackerConfig()); diff != "" {
		t.Errorf("TrackerConfig mismatch (-want +got):\n%s", diff)
	}
	pc := cfg.PipelineConfig()
	if pc.ForceWindowMs != 250 {
		t.Errorf("Expected default force window 250ms, got %f", pc.ForceWindowMs)
	}
	if cfg.GetFrameStep() != 1.0/30.0 {
		t.Errorf("Expected default frame step 1/30, got %f", cfg.GetFrameStep())
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	// Create a file larger than 1MB
	largeData := make([]byte, 2*1024*1024)
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}
