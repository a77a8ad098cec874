package track

import (
	"fmt"
	"math"
)

// TrackerState is the complete mutable state of one tracking session, carried
// frame to frame. Step takes the previous state and returns the next one; the
// caller owns the value and no state is shared between sessions.
type TrackerState struct {
	X  float64 // Position X (pixels)
	Y  float64 // Position Y (pixels)
	VX float64 // Velocity X (pixels/second)
	VY float64 // Velocity Y (pixels/second)

	// HeadingX/HeadingY form a smoothed unit vector along the established bar
	// path, used as a soft directional prior. Zero until motion is observed.
	HeadingX float64
	HeadingY float64

	// RecentSpeed is a decaying envelope of recent speed, kept to detect the
	// direction-reversal case where instantaneous speed passes through zero.
	RecentSpeed float64

	// Losses counts consecutive frames without an accepted match.
	Losses int

	// Ref is the expected color signature of the target, seeded from the first
	// frame and slowly adapted while tracking confidence is high.
	Ref RGB

	LastTime float64
}

// Result is the per-frame tracker output.
type Result struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
	Lost       bool    `json:"lost"`
}

// NewTrackerState seeds tracker state from the user-marked start position on
// the first frame. The reference color is sampled from the marked region.
func NewTrackerState(f Frame, x, y float64, cfg TrackerConfig) (TrackerState, error) {
	if f.Image == nil {
		return TrackerState{}, fmt.Errorf("nil frame image")
	}
	if cfg.TargetRadiusPx <= 0 {
		return TrackerState{}, fmt.Errorf("target radius must be positive, got %v", cfg.TargetRadiusPx)
	}
	b := f.Bounds()
	if x < float64(b.Min.X) || x >= float64(b.Max.X) || y < float64(b.Min.Y) || y >= float64(b.Max.Y) {
		return TrackerState{}, fmt.Errorf("start position (%v, %v) outside frame bounds %v", x, y, b)
	}
	return TrackerState{
		X:        x,
		Y:        y,
		Ref:      RegionMeanColor(f.Image, x, y, cfg.TargetRadiusPx),
		LastTime: f.Time,
	}, nil
}

// Step locates the target in the given frame and returns the per-frame result
// plus the updated state. A frame where the target cannot be matched is not an
// error: the tracker extrapolates along its velocity with confidence 0 so the
// search window keeps moving and can catch the target when it reappears.
func Step(f Frame, prev TrackerState, cfg TrackerConfig) (Result, TrackerState) {
	if f.Image == nil {
		return Result{X: prev.X, Y: prev.Y, Lost: true}, prev
	}

	dt := f.Time - prev.LastTime
	if dt <= MinTimeDelta {
		dt = NominalFrameInterval
	}

	speed := math.Hypot(prev.VX, prev.VY)
	disp := speed * dt // expected displacement this frame, drives the dynamic thresholds

	// Predicted position: velocity extrapolation with extra lead after losses,
	// reaching ahead to catch up following an occlusion.
	lead := cfg.LeadFactorBase + cfg.LeadFactorPerLoss*float64(prev.Losses)
	predX := prev.X + prev.VX*dt*lead
	predY := prev.Y + prev.VY*dt*lead

	// Adaptive search window.
	windowRadius := cfg.TargetRadiusPx*cfg.WindowRadiusScale + cfg.WindowSpeedFactor*disp
	if speed < cfg.ReversalLowSpeed && prev.RecentSpeed > cfg.ReversalHighRecent {
		// Decelerating through a reversal: displacement per frame is still
		// large even though instantaneous speed is near zero.
		windowRadius *= cfg.ReversalWindowBoost
	}
	windowRadius *= 1 + cfg.LossWindowBoost*float64(prev.Losses)

	b := f.Bounds()
	x0 := int(math.Max(float64(b.Min.X), predX-windowRadius))
	x1 := int(math.Min(float64(b.Max.X-1), predX+windowRadius))
	y0 := int(math.Max(float64(b.Min.Y), predY-windowRadius))
	y1 := int(math.Min(float64(b.Max.Y-1), predY+windowRadius))
	if x1 < x0 || y1 < y0 {
		// Window clamped to nothing (prediction left the frame). Report the
		// last known position without disturbing the state.
		next := prev
		next.LastTime = f.Time
		return Result{X: prev.X, Y: prev.Y, Lost: true}, next
	}

	// Dynamic matching parameters: loosen the color tolerance with speed to
	// tolerate motion blur, and drop the thresholds proportionally.
	tol := cfg.ColorTolerance + cfg.SpeedToleranceGain*disp
	tight := cfg.ColorTolerance / tol
	colorThresh := math.Max(cfg.ColorThresholdFloor, cfg.ColorThresholdBase*tight)
	acceptThresh := math.Max(cfg.AcceptConfidenceFloor, cfg.AcceptConfidence*tight)
	posShare := math.Max(0, cfg.PositionShareBase-cfg.PositionShareDecay*disp)

	headingPenalty := cfg.HeadingPenalty
	if prev.Losses > 0 {
		// Relax the path prior while lost so a genuine direction change at the
		// top of a rep is not over-penalized during re-acquisition.
		headingPenalty *= cfg.HeadingLossRelief
	}

	stride := cfg.SampleStride
	if stride < 1 {
		stride = 1
	}
	posSigma2 := (windowRadius / 2) * (windowRadius / 2)

	var sumW, sumWX, sumWY float64
	var sumCR, sumCG, sumCB float64
	best := 0.0

	for y := y0; y <= y1; y += stride {
		for x := x0; x <= x1; x += stride {
			c := pixelRGB(f.Image, x, y)
			d := c.Distance(prev.Ref)
			colorW := math.Exp(-(d * d) / (2 * tol * tol))
			if colorW > best {
				best = colorW
			}
			if colorW < colorThresh {
				continue
			}

			dx := float64(x) - predX
			dy := float64(y) - predY
			posW := math.Exp(-(dx*dx + dy*dy) / (2 * posSigma2))

			w := colorW * (posShare*posW + (1 - posShare))
			w *= headingFactor(prev, float64(x), float64(y), headingPenalty)

			sumW += w
			sumWX += w * float64(x)
			sumWY += w * float64(y)
			sumCR += w * c.R
			sumCG += w * c.G
			sumCB += w * c.B
		}
	}

	if best >= acceptThresh && sumW > 0 {
		cx := sumWX / sumW
		cy := sumWY / sumW
		matched := RGB{R: sumCR / sumW, G: sumCG / sumW, B: sumCB / sumW}
		return acceptMatch(f, prev, cfg, dt, predX, predY, cx, cy, best, matched, disp)
	}

	// Below threshold: count the loss and, after enough misses, fall back to a
	// coarse full-frame scan for the target.
	losses := prev.Losses + 1
	if losses > MaxLossCount {
		losses = MaxLossCount
	}

	if losses >= cfg.ReacquireAfter {
		if rx, ry, rw, rc, ok := reacquire(f, prev, cfg, predX, predY, tol); ok && rw >= cfg.ReacquireAccept {
			next := prev
			next.X = rx
			next.Y = ry
			// The jump across an occlusion is not a reliable velocity sample;
			// fold in only a fraction of the implied velocity.
			next.VX = prev.VX*(1-cfg.VelocitySmoothing) + ((rx-prev.X)/dt)*cfg.VelocitySmoothing*0.5
			next.VY = prev.VY*(1-cfg.VelocitySmoothing) + ((ry-prev.Y)/dt)*cfg.VelocitySmoothing*0.5
			next.Losses = 0
			next.RecentSpeed = math.Max(math.Hypot(next.VX, next.VY), prev.RecentSpeed*cfg.RecentSpeedDecay)
			next.LastTime = f.Time
			return Result{X: rx, Y: ry, Confidence: rc}, next
		}
	}

	// No match: advance along the (decayed) velocity so the search window
	// keeps moving instead of freezing on a stale position.
	next := prev
	next.Losses = losses
	next.VX = prev.VX * cfg.VelocityDecay
	next.VY = prev.VY * cfg.VelocityDecay
	driftVX, driftVY := next.VX, next.VY
	if math.Hypot(driftVX, driftVY) < cfg.MinLossDriftSpeed {
		hx, hy := prev.HeadingX, prev.HeadingY
		if hx == 0 && hy == 0 {
			hx, hy = 0, -1 // screen-up, the concentric direction
		}
		driftVX = hx * cfg.MinLossDriftSpeed
		driftVY = hy * cfg.MinLossDriftSpeed
	}
	next.X = prev.X + driftVX*dt*lead
	next.Y = prev.Y + driftVY*dt*lead
	next.RecentSpeed = prev.RecentSpeed * cfg.RecentSpeedDecay
	next.LastTime = f.Time
	return Result{X: next.X, Y: next.Y, Lost: true}, next
}

// acceptMatch applies the displacement clamp, exponential smoothing, velocity
// and heading updates, and reference color adaptation for an accepted match.
func acceptMatch(f Frame, prev TrackerState, cfg TrackerConfig, dt, predX, predY, cx, cy, conf float64, matched RGB, disp float64) (Result, TrackerState) {
	maxStep := cfg.MaxStepBase + cfg.MaxStepSpeedFactor*disp

	// Clamp the candidate against the predicted position so a single spurious
	// match cannot teleport the track.
	dx := cx - predX
	dy := cy - predY
	if step := math.Hypot(dx, dy); step > maxStep {
		scale := maxStep / step
		cx = predX + dx*scale
		cy = predY + dy*scale
	}

	// Exponential smoothing of the displacement; at speed the smoothing backs
	// off so the track does not lag the bar.
	s := math.Min(1, cfg.SmoothingBase+cfg.SmoothingSpeedGain*disp)
	nx := prev.X + (cx-prev.X)*s
	ny := prev.Y + (cy-prev.Y)*s

	// Keep the non-teleportation bound after smoothing as well.
	if dxp, dyp := nx-predX, ny-predY; math.Hypot(dxp, dyp) > maxStep {
		scale := maxStep / math.Hypot(dxp, dyp)
		nx = predX + dxp*scale
		ny = predY + dyp*scale
	}

	next := prev
	next.X = nx
	next.Y = ny
	instVX := (nx - prev.X) / dt
	instVY := (ny - prev.Y) / dt
	next.VX = prev.VX*(1-cfg.VelocitySmoothing) + instVX*cfg.VelocitySmoothing
	next.VY = prev.VY*(1-cfg.VelocitySmoothing) + instVY*cfg.VelocitySmoothing
	next.Losses = 0
	next.LastTime = f.Time

	newSpeed := math.Hypot(next.VX, next.VY)
	next.RecentSpeed = math.Max(newSpeed, prev.RecentSpeed*cfg.RecentSpeedDecay)

	// Heading update from displacement direction, only when motion is
	// significant enough to carry direction information.
	mdx := nx - prev.X
	mdy := ny - prev.Y
	if md := math.Hypot(mdx, mdy); md >= cfg.HeadingMinStep {
		r := cfg.HeadingAdaptRate
		hx := prev.HeadingX*(1-r) + (mdx/md)*r
		hy := prev.HeadingY*(1-r) + (mdy/md)*r
		if hm := math.Hypot(hx, hy); hm > 0 {
			next.HeadingX = hx / hm
			next.HeadingY = hy / hm
		}
	}

	// Slowly pull the reference color toward the matched region when the match
	// is near-certain, absorbing lighting and motion-blur drift.
	if conf >= cfg.AdaptConfidence {
		next.Ref = RGB{
			R: prev.Ref.R*(1-cfg.AdaptRate) + matched.R*cfg.AdaptRate,
			G: prev.Ref.G*(1-cfg.AdaptRate) + matched.G*cfg.AdaptRate,
			B: prev.Ref.B*(1-cfg.AdaptRate) + matched.B*cfg.AdaptRate,
		}
	}

	return Result{X: nx, Y: ny, Confidence: conf}, next
}

// reacquire performs the coarse full-frame fallback scan after sustained loss.
// The scan is weighted toward the predicted position but not restricted to the
// local search window.
func reacquire(f Frame, prev TrackerState, cfg TrackerConfig, predX, predY, tol float64) (x, y, weight, colorW float64, ok bool) {
	b := f.Bounds()
	stride := cfg.ReacquireStride
	if stride < 1 {
		stride = 1
	}

	diag := math.Hypot(float64(b.Dx()), float64(b.Dy()))
	sigma2 := (diag / 3) * (diag / 3)

	bestW := -1.0
	var bestX, bestY, bestC float64
	for py := b.Min.Y; py < b.Max.Y; py += stride {
		for px := b.Min.X; px < b.Max.X; px += stride {
			c := pixelRGB(f.Image, px, py)
			d := c.Distance(prev.Ref)
			cw := math.Exp(-(d * d) / (2 * tol * tol))
			dx := float64(px) - predX
			dy := float64(py) - predY
			pw := math.Exp(-(dx*dx + dy*dy) / (2 * sigma2))
			w := cw * (0.5 + 0.5*pw)
			if w > bestW {
				bestW = w
				bestX = float64(px)
				bestY = float64(py)
				bestC = cw
			}
		}
	}
	if bestW < 0 {
		return 0, 0, 0, 0, false
	}
	return bestX, bestY, bestW, bestC, true
}

// headingFactor softly penalizes candidates that lie far off the established
// bar path. Returns 1 when no heading has been established yet.
func headingFactor(st TrackerState, x, y, penalty float64) float64 {
	if penalty <= 0 || (st.HeadingX == 0 && st.HeadingY == 0) {
		return 1
	}
	dx := x - st.X
	dy := y - st.Y
	d := math.Hypot(dx, dy)
	if d < 1e-9 {
		return 1
	}
	cos := (dx*st.HeadingX + dy*st.HeadingY) / d
	// cos in [-1, 1]; map to [1-penalty, 1]
	return 1 - penalty*(1-cos)/2
}
