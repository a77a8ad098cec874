package track

import (
	"image"
	"math"
)

// Frame is a single decoded raster plus its presentation timestamp in seconds.
// Frames are consumed transiently by the tracking loop and never retained.
type Frame struct {
	Image image.Image
	Time  float64
}

// Bounds returns the pixel bounds of the frame's raster.
func (f Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// RGB is a color signature in 0-255 channel space. Euclidean distance in this
// space drives the tracker's color matching.
type RGB struct {
	R float64
	G float64
	B float64
}

// Distance returns the Euclidean RGB distance between two colors.
func (c RGB) Distance(o RGB) float64 {
	dr := c.R - o.R
	dg := c.G - o.G
	db := c.B - o.B
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// pixelRGB samples the frame at (x, y) and scales the channels to 0-255.
func pixelRGB(img image.Image, x, y int) RGB {
	r, g, b, _ := img.At(x, y).RGBA()
	return RGB{
		R: float64(r >> 8),
		G: float64(g >> 8),
		B: float64(b >> 8),
	}
}

// RegionMeanColor averages the color of the disc of the given radius centered
// on (cx, cy), clamped to frame bounds. The mask is circular to match the
// marker shape; a square region would fold background corners into the mean
// and shift the seeded reference off the target color. Used to seed the
// reference color when a tracking session begins.
func RegionMeanColor(img image.Image, cx, cy float64, radius float64) RGB {
	if img == nil {
		return RGB{}
	}
	b := img.Bounds()
	x0 := int(math.Max(float64(b.Min.X), cx-radius))
	x1 := int(math.Min(float64(b.Max.X-1), cx+radius))
	y0 := int(math.Max(float64(b.Min.Y), cy-radius))
	y1 := int(math.Min(float64(b.Max.Y-1), cy+radius))
	if x1 < x0 || y1 < y0 {
		return RGB{}
	}

	var sumR, sumG, sumB float64
	var n int
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if math.Hypot(float64(x)-cx, float64(y)-cy) > radius {
				continue
			}
			c := pixelRGB(img, x, y)
			sumR += c.R
			sumG += c.G
			sumB += c.B
			n++
		}
	}
	if n == 0 {
		// Degenerate radius: fall back to the pixel under the mark.
		c := pixelRGB(img, int(cx), int(cy))
		return c
	}
	return RGB{R: sumR / float64(n), G: sumG / float64(n), B: sumB / float64(n)}
}
