package track

// TrackedPoint is a single resolved bar position in pixel space.
type TrackedPoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Time float64 `json:"time"` // seconds
}

// Trajectory is an append-only, time-ordered sequence of tracked points.
// Times are strictly increasing; appends that would violate ordering are
// dropped rather than reordered.
type Trajectory struct {
	points []TrackedPoint
}

// Append adds a point if its timestamp is strictly after the last point.
// Returns true if the point was accepted.
func (tr *Trajectory) Append(p TrackedPoint) bool {
	if n := len(tr.points); n > 0 && p.Time <= tr.points[n-1].Time {
		return false
	}
	tr.points = append(tr.points, p)
	return true
}

// Len returns the number of points accumulated so far.
func (tr *Trajectory) Len() int {
	return len(tr.points)
}

// Points returns the underlying point sequence. The slice must not be mutated
// by callers; the trajectory retains ownership.
func (tr *Trajectory) Points() []TrackedPoint {
	return tr.points
}

// Last returns the most recent point, or a zero point if empty.
func (tr *Trajectory) Last() (TrackedPoint, bool) {
	if len(tr.points) == 0 {
		return TrackedPoint{}, false
	}
	return tr.points[len(tr.points)-1], true
}
