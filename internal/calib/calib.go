// Package calib resolves a user-marked reference circle of known physical
// size into a pixel-to-metric scale factor.
package calib

import "fmt"

// SleeveCapDiameterM is the standard barbell sleeve diameter (50mm), the
// default calibration reference.
const SleeveCapDiameterM = 0.050

// Calibration is the fixed pixel-to-metric mapping for one analysis session.
type Calibration struct {
	PixelsPerMeter float64 `json:"pixels_per_meter"`
	OriginX        float64 `json:"origin_x"`
	OriginY        float64 `json:"origin_y"`
	OriginRadius   float64 `json:"origin_radius"`
}

// FromReference builds a Calibration from a user-drawn circle over a
// reference object of known diameter (metres).
func FromReference(centerX, centerY, radiusPx, diameterM float64) (Calibration, error) {
	if radiusPx <= 0 {
		return Calibration{}, fmt.Errorf("reference radius must be positive, got %v", radiusPx)
	}
	if diameterM <= 0 {
		return Calibration{}, fmt.Errorf("reference diameter must be positive, got %v", diameterM)
	}
	return Calibration{
		PixelsPerMeter: (radiusPx * 2) / diameterM,
		OriginX:        centerX,
		OriginY:        centerY,
		OriginRadius:   radiusPx,
	}, nil
}

// Valid reports whether the calibration can be used for analysis.
func (c Calibration) Valid() bool {
	return c.PixelsPerMeter > 0
}
