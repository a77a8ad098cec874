package track

// Constants for tracker configuration
const (
	// NominalFrameInterval is substituted when two frames carry near-identical
	// timestamps, to avoid division blow-up in velocity computation.
	NominalFrameInterval = 1.0 / 30.0
	// MinTimeDelta is the epsilon below which a frame interval is treated as degenerate.
	MinTimeDelta = 1e-4
	// MaxLossCount caps the consecutive-loss counter so window expansion and
	// prediction lead stay bounded during long occlusions.
	MaxLossCount = 10
)

// TrackerConfig holds configuration parameters for the visual tracker.
// Distances are in pixels, speeds in pixels per second, durations in seconds.
type TrackerConfig struct {
	TargetRadiusPx float64 // Radius of the tracked marker in pixels

	// Prediction
	LeadFactorBase    float64 // Prediction lead applied to velocity extrapolation
	LeadFactorPerLoss float64 // Extra lead per consecutive lost frame

	// Search window
	WindowRadiusScale   float64 // Base window radius as a multiple of target radius
	WindowSpeedFactor   float64 // Window growth per pixel of per-frame displacement
	ReversalWindowBoost float64 // Multiplier when slow now but recently fast (top/bottom of rep)
	ReversalLowSpeed    float64 // Speed below which the reversal case can trigger
	ReversalHighRecent  float64 // Recent speed above which the reversal case can trigger
	LossWindowBoost     float64 // Window multiplier added per consecutive lost frame
	SampleStride        int     // Pixel stride when scanning the search window

	// Color matching
	ColorTolerance      float64 // Gaussian sigma on RGB distance from the reference color
	SpeedToleranceGain  float64 // Tolerance widening per pixel of per-frame displacement
	ColorThresholdBase  float64 // Minimum color weight for a pixel to join the centroid
	ColorThresholdFloor float64 // Lower bound on the dynamic color threshold when fast
	PositionShareBase   float64 // Proximity weight share at rest; shifts to color-only at speed
	PositionShareDecay  float64 // Share lost per pixel of per-frame displacement

	// Acceptance
	AcceptConfidence      float64 // Minimum confidence to accept a match at rest
	AcceptConfidenceFloor float64 // Lower bound on the dynamic acceptance threshold when fast
	MaxStepBase           float64 // Base clamp on displacement from the predicted position
	MaxStepSpeedFactor    float64 // Clamp growth per pixel of per-frame displacement
	SmoothingBase         float64 // Fraction of the clamped displacement applied at rest
	SmoothingSpeedGain    float64 // Additional fraction per pixel of per-frame displacement

	// Reference color adaptation
	AdaptConfidence float64 // Confidence above which the reference color adapts
	AdaptRate       float64 // EMA rate for reference color adaptation (0.1 = 90/10)

	// Loss and re-acquisition
	ReacquireAfter     int     // Consecutive losses before a coarse full-frame scan
	ReacquireStride    int     // Pixel stride of the full-frame scan
	ReacquireAccept    float64 // Minimum weight for a re-acquisition match
	VelocityDecay      float64 // Per-frame velocity decay while lost
	MinLossDriftSpeed  float64 // Floor on extrapolation speed while lost; sub-pixel per frame so a stalled track creeps rather than marches
	HeadingAdaptRate   float64 // EMA rate for the trajectory direction vector
	HeadingMinStep     float64 // Minimum displacement for a heading update
	HeadingPenalty     float64 // Weight of the off-path penalty on candidate pixels
	HeadingLossRelief  float64 // Multiplier relaxing the heading penalty while lost
	RecentSpeedDecay   float64 // Decay applied to the recent-speed envelope each frame
	VelocitySmoothing  float64 // EMA rate blending instantaneous into carried velocity
}

// DefaultTrackerConfig returns default tracker configuration for a barbell
// sleeve cap filmed at 30-60fps from a few metres away.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		TargetRadiusPx: 14,

		LeadFactorBase:    1.0,
		LeadFactorPerLoss: 0.35,

		WindowRadiusScale:   2.5,
		WindowSpeedFactor:   1.6,
		ReversalWindowBoost: 1.8,
		ReversalLowSpeed:    60,
		ReversalHighRecent:  240,
		LossWindowBoost:     0.5,
		SampleStride:        1,

		ColorTolerance:      36,
		SpeedToleranceGain:  1.2,
		ColorThresholdBase:  0.5,
		ColorThresholdFloor: 0.25,
		PositionShareBase:   0.45,
		PositionShareDecay:  0.04,

		AcceptConfidence:      0.55,
		AcceptConfidenceFloor: 0.3,
		MaxStepBase:           24,
		MaxStepSpeedFactor:    2.5,
		SmoothingBase:         0.55,
		SmoothingSpeedGain:    0.05,

		AdaptConfidence: 0.85,
		AdaptRate:       0.1,

		ReacquireAfter:    3,
		ReacquireStride:   6,
		ReacquireAccept:   0.6,
		VelocityDecay:     0.92,
		MinLossDriftSpeed: 2,
		HeadingAdaptRate:  0.2,
		HeadingMinStep:    1.5,
		HeadingPenalty:    0.25,
		HeadingLossRelief: 0.3,
		RecentSpeedDecay:  0.9,
		VelocitySmoothing: 0.6,
	}
}
