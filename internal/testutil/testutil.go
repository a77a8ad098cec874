// Package testutil provides shared test fixtures.
//
// Tracker, session, and API tests all need the same synthetic footage: a
// marker disc rendered on a flat background. This package centralises those
// builders so each test file does not grow its own renderer.
package testutil

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"testing"
)

// MarkerColor is the default synthetic marker, a saturated red that is far
// from GrayBackground in RGB space.
var MarkerColor = color.RGBA{R: 200, G: 40, B: 40, A: 255}

// GrayBackground is the default flat backdrop for synthetic frames.
var GrayBackground = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// DiscImage renders a filled disc on a flat background. A non-positive radius
// produces background only.
func DiscImage(w, h int, cx, cy, radius float64, fg, bg color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := bg
			if radius > 0 && math.Hypot(float64(x)-cx, float64(y)-cy) <= radius {
				c = fg
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// MarkerFrame renders the default marker disc on the default background.
func MarkerFrame(w, h int, cx, cy, radius float64) *image.RGBA {
	return DiscImage(w, h, cx, cy, radius, MarkerColor, GrayBackground)
}

// WritePNG writes an image to path, failing the test on error.
func WritePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
