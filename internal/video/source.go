// Package video supplies decoded raster frames to the tracking loop.
//
// Real video decode/seek lives outside the core: the tracker only consumes a
// FrameSource. The bundled implementation reads a directory of still frames
// (one image per decoded video frame), which is how offline analyses are run.
package video

import (
	"context"

	"github.com/barsense-data/barbell.report/internal/track"
)

// FrameSource hands out decoded frames by time offset. Seeks may be arbitrary
// and the returned frame carries the actual presentation time at or after the
// requested offset. Decode and out-of-range errors are terminal for the
// session that encounters them.
type FrameSource interface {
	// Frame returns the first frame at or after the requested time.
	Frame(ctx context.Context, at float64) (track.Frame, error)

	// Duration returns the total time span covered by the source, in seconds.
	Duration() float64

	Close() error
}
