// Package session runs one tracking session over a frame source, accumulating
// the bar trajectory and publishing per-frame results to observers.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/barsense-data/barbell.report/internal/calib"
	"github.com/barsense-data/barbell.report/internal/monitoring"
	"github.com/barsense-data/barbell.report/internal/timeutil"
	"github.com/barsense-data/barbell.report/internal/track"
	"github.com/barsense-data/barbell.report/internal/video"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusLost      Status = "lost"
)

// FrameResult pairs a tracker result with its frame timestamp, published on
// the session's results channel for observers.
type FrameResult struct {
	Time   float64      `json:"time"`
	Result track.Result `json:"result"`
}

// Options configures a session run.
type Options struct {
	Tracker   track.TrackerConfig
	FrameStep float64 // seconds between analysed frames
	MaxLosses int     // consecutive lost frames before the session is abandoned

	// ResultBuffer sizes the observer channel. Sends never block the frame
	// loop; results are dropped when the buffer is full.
	ResultBuffer int

	Clock timeutil.Clock
}

// DefaultOptions returns session options for 30fps footage.
func DefaultOptions() Options {
	return Options{
		Tracker:      track.DefaultTrackerConfig(),
		FrameStep:    1.0 / 30.0,
		MaxLosses:    45,
		ResultBuffer: 64,
		Clock:        timeutil.RealClock{},
	}
}

// Session is one tracking run over a frame source. A Session is created by
// Begin and driven to a terminal status by a single Run call; the trajectory
// survives whichever way the run ends.
type Session struct {
	ID          string
	Calibration calib.Calibration
	MassKg      float64

	opts    Options
	state   track.TrackerState
	traj    track.Trajectory
	results chan FrameResult

	mu      sync.Mutex
	status  Status
	elapsed time.Duration
}

// Begin seeds a session from the user-marked bar position on the first frame.
func Begin(first track.Frame, x, y float64, cal calib.Calibration, massKg float64, opts Options) (*Session, error) {
	if !cal.Valid() {
		return nil, fmt.Errorf("invalid calibration: pixels per meter must be positive")
	}
	if massKg <= 0 {
		return nil, fmt.Errorf("mass must be positive, got %v", massKg)
	}
	if opts.FrameStep <= 0 {
		opts.FrameStep = 1.0 / 30.0
	}
	if opts.MaxLosses < 1 {
		opts.MaxLosses = DefaultOptions().MaxLosses
	}
	if opts.ResultBuffer < 1 {
		opts.ResultBuffer = DefaultOptions().ResultBuffer
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}

	state, err := track.NewTrackerState(first, x, y, opts.Tracker)
	if err != nil {
		return nil, fmt.Errorf("seed tracker: %w", err)
	}

	s := &Session{
		ID:          uuid.NewString(),
		Calibration: cal,
		MassKg:      massKg,
		opts:        opts,
		state:       state,
		results:     make(chan FrameResult, opts.ResultBuffer),
		status:      StatusRunning,
	}
	s.traj.Append(track.TrackedPoint{X: x, Y: y, Time: first.Time})
	return s, nil
}

// Run drives the tracker over the source frame by frame until the source is
// exhausted, the context is cancelled, or the tracker stays lost past the
// configured threshold. The context is checked between frames only; a frame
// in flight always completes. Run closes the results channel on return and
// must be called at most once.
func (s *Session) Run(ctx context.Context, src video.FrameSource) (Status, error) {
	defer close(s.results)

	started := s.opts.Clock.Now()
	defer func() {
		s.mu.Lock()
		s.elapsed = s.opts.Clock.Since(started)
		s.mu.Unlock()
	}()

	monitoring.Logf("session %s: starting, %.2fs of footage", s.ID, src.Duration())

	duration := src.Duration()
	at := s.state.LastTime + s.opts.FrameStep
	// Consecutive losses are counted here, not read from the tracker: the
	// tracker caps its own counter to bound window growth, so the session
	// threshold would be unreachable through it.
	losses := 0
	for at <= duration {
		if err := ctx.Err(); err != nil {
			s.setStatus(StatusCancelled)
			monitoring.Logf("session %s: cancelled after %d points", s.ID, s.traj.Len())
			return StatusCancelled, err
		}

		f, err := src.Frame(ctx, at)
		if err != nil {
			s.setStatus(StatusCancelled)
			return StatusCancelled, fmt.Errorf("frame at %.3fs: %w", at, err)
		}

		res, next := track.Step(f, s.state, s.opts.Tracker)
		s.state = next
		s.traj.Append(track.TrackedPoint{X: res.X, Y: res.Y, Time: f.Time})
		s.publish(FrameResult{Time: f.Time, Result: res})

		if res.Lost {
			losses++
		} else {
			losses = 0
		}
		if losses >= s.opts.MaxLosses {
			s.setStatus(StatusLost)
			monitoring.Logf("session %s: lost after %d consecutive misses, %d points kept",
				s.ID, losses, s.traj.Len())
			return StatusLost, nil
		}

		// Advance past the frame actually served. A source that stops making
		// progress still terminates because the request time always moves.
		if f.Time > at {
			at = f.Time
		}
		at += s.opts.FrameStep
	}

	s.setStatus(StatusCompleted)
	monitoring.Logf("session %s: completed with %d points", s.ID, s.traj.Len())
	return StatusCompleted, nil
}

// publish sends a result to observers without ever blocking the frame loop.
func (s *Session) publish(r FrameResult) {
	select {
	case s.results <- r:
	default:
	}
}

// Results returns the observer channel. It is closed when Run returns.
func (s *Session) Results() <-chan FrameResult {
	return s.results
}

// Trajectory returns the accumulated trajectory, partial if the run ended
// early.
func (s *Session) Trajectory() *track.Trajectory {
	return &s.traj
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Elapsed returns the wall-clock duration of the completed run.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}
