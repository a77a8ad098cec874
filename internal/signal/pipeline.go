// Package signal converts raw pixel trajectories into metric motion and force
// curves. The cascade is position -> velocity -> acceleration -> force, with a
// time-windowed smoothing pass between every stage. Windows are durations, not
// frame counts, so the cascade stays correct across variable frame rates.
package signal

import (
	"gonum.org/v1/gonum/floats"

	"github.com/barsense-data/barbell.report/internal/track"
)

// Gravity is standard gravitational acceleration in m/s².
const Gravity = 9.81

// minTimeDelta is the epsilon below which a frame interval is treated as
// degenerate; a nominal interval is substituted to avoid division blow-up.
const minTimeDelta = 1e-4

// nominalInterval is the frame interval substituted for degenerate deltas.
const nominalInterval = 1.0 / 30.0

// timeSlack widens smoothing windows by a nanosecond so edge samples are
// included regardless of float representation of the timestamps.
const timeSlack = 1e-9

// Sample is one row of the pipeline output: the processed counterpart of one
// tracked point, at the same index.
type Sample struct {
	Time          float64 `json:"time"`
	PositionM     float64 `json:"position_m"`
	Velocity      float64 `json:"velocity_mps"`
	Acceleration  float64 `json:"acceleration_mps2"`
	Force         float64 `json:"force_n"`
	SmoothedForce float64 `json:"smoothed_force_n"`
}

// Config holds the pipeline smoothing windows, in milliseconds.
type Config struct {
	// SmoothingWindowMs is the centered averaging window applied to position,
	// velocity and acceleration. Acceleration smoothing is the critical one:
	// double differentiation amplifies high-frequency noise quadratically, and
	// force multiplies whatever survives by the bar mass.
	SmoothingWindowMs float64

	// ForceWindowMs is a second, independent rolling window applied to force
	// for peak reporting, kept separate so reported peaks are not flattened by
	// the same smoothing that shapes the velocity curve.
	ForceWindowMs float64
}

// DefaultConfig returns pipeline defaults suitable for 30-60fps footage.
func DefaultConfig() Config {
	return Config{
		SmoothingWindowMs: 200,
		ForceWindowMs:     250,
	}
}

// Process transforms a pixel trajectory into a metric Sample sequence.
// Output has the same length and index alignment as the input. Inputs that
// violate the contract (fewer than 3 points, non-positive scale or mass)
// yield an empty result rather than an error, so downstream consumers have a
// uniform "no data" signal.
func Process(traj []track.TrackedPoint, pixelsPerMeter, massKg float64, cfg Config) []Sample {
	if len(traj) < 3 || pixelsPerMeter <= 0 || massKg <= 0 {
		return nil
	}

	n := len(traj)
	times := make([]float64, n)
	pos := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range traj {
		times[i] = p.Time
		ys[i] = p.Y
	}

	// Screen Y grows downward; bar height grows upward. Invert against the
	// lowest point of the trajectory, then scale to metres.
	maxY := floats.Max(ys)
	for i := range ys {
		pos[i] = (maxY - ys[i]) / pixelsPerMeter
	}

	smoothPos := windowAverage(times, pos, cfg.SmoothingWindowMs/1000)
	vel := differentiate(times, smoothPos)
	smoothVel := windowAverage(times, vel, cfg.SmoothingWindowMs/1000)
	accel := differentiate(times, smoothVel)
	smoothAccel := windowAverage(times, accel, cfg.SmoothingWindowMs/1000)

	force := make([]float64, n)
	for i := range force {
		force[i] = massKg * (smoothAccel[i] + Gravity)
	}
	smoothForce := windowAverage(times, force, cfg.ForceWindowMs/1000)

	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{
			Time:          times[i],
			PositionM:     smoothPos[i],
			Velocity:      smoothVel[i],
			Acceleration:  smoothAccel[i],
			Force:         force[i],
			SmoothedForce: smoothForce[i],
		}
	}
	return out
}

// windowAverage computes, for each sample, the mean of all samples whose
// timestamp falls within ± window/2 of that sample's time. Times must be
// sorted ascending. A non-positive window passes values through unchanged.
func windowAverage(times, values []float64, windowSec float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if windowSec <= 0 {
		copy(out, values)
		return out
	}

	// A hair of slack on the bounds keeps samples sitting exactly on the
	// window edge inside it. Without it, float jitter on a uniform frame grid
	// makes interior windows alternate size, and the asymmetry survives the
	// derivative cascade as velocity wobble on perfectly clean input.
	half := windowSec/2 + timeSlack
	lo, hi := 0, 0
	var sum float64
	for i := 0; i < n; i++ {
		for hi < n && times[hi] <= times[i]+half {
			sum += values[hi]
			hi++
		}
		for lo < n && times[lo] < times[i]-half {
			sum -= values[lo]
			lo++
		}
		if count := hi - lo; count > 0 {
			out[i] = sum / float64(count)
		} else {
			// Degenerate window: pass the raw value through rather than emit
			// a NaN that would poison the downstream cascade.
			out[i] = values[i]
		}
	}
	return out
}

// differentiate computes the time derivative using central differences, with
// one-sided differences at the endpoints. True per-pair deltas are used so
// unequal frame intervals are handled exactly; near-duplicate timestamps fall
// back to a nominal interval.
func differentiate(times, values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	out[0] = (values[1] - values[0]) / safeDelta(times[1]-times[0])
	out[n-1] = (values[n-1] - values[n-2]) / safeDelta(times[n-1]-times[n-2])
	for i := 1; i < n-1; i++ {
		out[i] = (values[i+1] - values[i-1]) / safeDelta(times[i+1]-times[i-1])
	}
	return out
}

func safeDelta(dt float64) float64 {
	if dt <= minTimeDelta {
		return nominalInterval
	}
	return dt
}
