package video

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFrame(t *testing.T, dir, name string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create frame: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func TestDirSourceWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	writeTestFrame(t, dir, "frame_0001.png", color.RGBA{R: 255, A: 255})
	writeTestFrame(t, dir, "frame_0002.png", color.RGBA{G: 255, A: 255})
	writeTestFrame(t, dir, "frame_0003.png", color.RGBA{B: 255, A: 255})

	src, err := NewDirSource(dir, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer src.Close()

	if src.FrameCount() != 3 {
		t.Errorf("expected 3 frames, got %d", src.FrameCount())
	}

	ctx := context.Background()
	f, err := src.Frame(ctx, 0)
	if err != nil {
		t.Fatalf("frame at 0: %v", err)
	}
	if f.Time != 0 {
		t.Errorf("expected time 0, got %v", f.Time)
	}
	r, _, _, _ := f.Image.At(4, 4).RGBA()
	if r>>8 != 255 {
		t.Errorf("expected red first frame, got r=%d", r>>8)
	}

	// Seek between frames lands on the next one.
	f, err = src.Frame(ctx, 0.02)
	if err != nil {
		t.Fatalf("frame at 0.02: %v", err)
	}
	if f.Time <= 0.02 {
		t.Errorf("expected frame at or after 0.02, got %v", f.Time)
	}

	// Past the end is a terminal error.
	if _, err := src.Frame(ctx, 10); err == nil {
		t.Error("expected error seeking past end")
	}
}

func TestDirSourceManifest(t *testing.T) {
	dir := t.TempDir()
	writeTestFrame(t, dir, "a.png", color.RGBA{R: 255, A: 255})
	writeTestFrame(t, dir, "b.png", color.RGBA{G: 255, A: 255})
	manifest := `[{"file":"b.png","time":0.5},{"file":"a.png","time":0.1}]`
	if err := os.WriteFile(filepath.Join(dir, ManifestName), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	src, err := NewDirSource(dir, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Entries are sorted by time regardless of manifest order.
	f, err := src.Frame(context.Background(), 0)
	if err != nil {
		t.Fatalf("frame at 0: %v", err)
	}
	if f.Time != 0.1 {
		t.Errorf("expected first frame at 0.1, got %v", f.Time)
	}
	if src.Duration() != 0.5 {
		t.Errorf("expected duration 0.5, got %v", src.Duration())
	}
}

func TestDirSourceCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeTestFrame(t, dir, "frame.png", color.RGBA{R: 255, A: 255})
	src, err := NewDirSource(dir, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Frame(ctx, 0); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestDirSourceEmptyDir(t *testing.T) {
	if _, err := NewDirSource(t.TempDir(), 30); err == nil {
		t.Error("expected error for directory without frames")
	}
	if _, err := NewDirSource(t.TempDir(), 0); err == nil {
		t.Error("expected error for zero fps without manifest")
	}
}
