package calib

import (
	"math"
	"testing"
)

func TestFromReference(t *testing.T) {
	// A 50mm sleeve cap drawn at 25px radius: 50px across 0.05m = 1000 px/m.
	c, err := FromReference(320, 240, 25, SleeveCapDiameterM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(c.PixelsPerMeter-1000) > 1e-9 {
		t.Errorf("pixels per meter = %v, want 1000", c.PixelsPerMeter)
	}
	if !c.Valid() {
		t.Error("expected valid calibration")
	}
}

func TestFromReferenceInvalid(t *testing.T) {
	if _, err := FromReference(0, 0, 0, SleeveCapDiameterM); err == nil {
		t.Error("expected error for zero radius")
	}
	if _, err := FromReference(0, 0, 25, 0); err == nil {
		t.Error("expected error for zero diameter")
	}
	if (Calibration{}).Valid() {
		t.Error("zero calibration must be invalid")
	}
}
