// Package report renders finished analyses to files: gonum/plot PNG curves
// and a webp bar-path overlay.
package report

import (
	"fmt"
	"image"
	stdcolor "image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/barsense-data/barbell.report/internal/signal"
	"github.com/barsense-data/barbell.report/internal/track"
)

// WriteCurvePlots saves position, velocity, and force curves for one session
// as PNG files under dir. Returns the paths written.
func WriteCurvePlots(dir, sessionID string, samples []signal.Sample) ([]string, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to plot")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	position := make(plotter.XYs, len(samples))
	velocity := make(plotter.XYs, len(samples))
	force := make(plotter.XYs, len(samples))
	smoothed := make(plotter.XYs, len(samples))
	for i, s := range samples {
		position[i] = plotter.XY{X: s.Time, Y: s.PositionM}
		velocity[i] = plotter.XY{X: s.Time, Y: s.Velocity}
		force[i] = plotter.XY{X: s.Time, Y: s.Force}
		smoothed[i] = plotter.XY{X: s.Time, Y: s.SmoothedForce}
	}

	var written []string

	pPos := plot.New()
	pPos.Title.Text = fmt.Sprintf("Bar Height — %s", sessionID)
	pPos.X.Label.Text = "time (s)"
	pPos.Y.Label.Text = "height (m)"
	if err := addLine(pPos, position, stdcolor.RGBA{B: 255, A: 255}); err != nil {
		return nil, err
	}
	posFile := filepath.Join(dir, "position.png")
	if err := pPos.Save(14*vg.Inch, 6*vg.Inch, posFile); err != nil {
		return nil, fmt.Errorf("failed to save position plot: %w", err)
	}
	written = append(written, posFile)

	pVel := plot.New()
	pVel.Title.Text = fmt.Sprintf("Bar Velocity — %s", sessionID)
	pVel.X.Label.Text = "time (s)"
	pVel.Y.Label.Text = "velocity (m/s)"
	if err := addLine(pVel, velocity, stdcolor.RGBA{G: 160, A: 255}); err != nil {
		return nil, err
	}
	velFile := filepath.Join(dir, "velocity.png")
	if err := pVel.Save(14*vg.Inch, 6*vg.Inch, velFile); err != nil {
		return nil, fmt.Errorf("failed to save velocity plot: %w", err)
	}
	written = append(written, velFile)

	pForce := plot.New()
	pForce.Title.Text = fmt.Sprintf("Applied Force — %s", sessionID)
	pForce.X.Label.Text = "time (s)"
	pForce.Y.Label.Text = "force (N)"
	if err := addLine(pForce, force, stdcolor.RGBA{R: 200, G: 200, B: 200, A: 255}); err != nil {
		return nil, err
	}
	if err := addLine(pForce, smoothed, stdcolor.RGBA{R: 255, A: 255}); err != nil {
		return nil, err
	}
	forceFile := filepath.Join(dir, "force.png")
	if err := pForce.Save(14*vg.Inch, 6*vg.Inch, forceFile); err != nil {
		return nil, fmt.Errorf("failed to save force plot: %w", err)
	}
	written = append(written, forceFile)

	return written, nil
}

func addLine(p *plot.Plot, pts plotter.XYs, c stdcolor.Color) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build line: %w", err)
	}
	line.Width = vg.Points(1)
	line.Color = c
	p.Add(line)
	return nil
}

// barPathColor marks the trajectory on the overlay.
var barPathColor = stdcolor.RGBA{R: 255, G: 215, B: 0, A: 255}

// WriteBarPath draws the tracked trajectory over a video frame, upscales the
// result, and writes it as a webp file. scale values below 1 are treated as 1.
func WriteBarPath(path string, background image.Image, traj []track.TrackedPoint, scale int) error {
	if background == nil {
		return fmt.Errorf("nil background frame")
	}
	if len(traj) == 0 {
		return fmt.Errorf("empty trajectory")
	}
	if scale < 1 {
		scale = 1
	}

	b := background.Bounds()
	canvas := image.NewRGBA(b)
	draw.Draw(canvas, b, background, b.Min, draw.Src)

	for i := 1; i < len(traj); i++ {
		drawSegment(canvas, traj[i-1], traj[i])
	}
	for _, p := range traj {
		drawDot(canvas, p, 2)
	}

	out := canvas
	if scale > 1 {
		scaled := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), canvas, b, draw.Src, nil)
		out = scaled
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create overlay file: %w", err)
	}
	defer f.Close()
	if err := nativewebp.Encode(f, out, nil); err != nil {
		return fmt.Errorf("failed to encode overlay: %w", err)
	}
	return nil
}

// drawSegment draws a straight line between two trajectory points by unit
// stepping, which is plenty for per-frame displacements.
func drawSegment(img *image.RGBA, a, b track.TrackedPoint) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		img.Set(int(a.X+dx*t), int(a.Y+dy*t), barPathColor)
	}
}

func drawDot(img *image.RGBA, p track.TrackedPoint, radius int) {
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= radius*radius {
				img.Set(int(p.X)+x, int(p.Y)+y, barPathColor)
			}
		}
	}
}
