package video

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/barsense-data/barbell.report/internal/track"
)

// ManifestName is the optional per-directory file mapping frame images to
// presentation timestamps.
const ManifestName = "frames.json"

// manifestEntry is one row of frames.json.
type manifestEntry struct {
	File string  `json:"file"`
	Time float64 `json:"time"`
}

// DirSource serves frames from a directory of still images. Timestamps come
// from frames.json when present; otherwise files are ordered lexically and
// spaced at a fixed frame rate.
type DirSource struct {
	dir     string
	entries []manifestEntry
}

// imageExtensions lists the decodable frame formats.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

// NewDirSource opens a frame directory. fps is used only when no frames.json
// manifest is present.
func NewDirSource(dir string, fps float64) (*DirSource, error) {
	manifestPath := filepath.Join(dir, ManifestName)
	if data, err := os.ReadFile(manifestPath); err == nil {
		var entries []manifestEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Time < entries[j].Time })
		if len(entries) == 0 {
			return nil, fmt.Errorf("%s lists no frames", ManifestName)
		}
		return &DirSource{dir: dir, entries: entries}, nil
	}

	if fps <= 0 {
		return nil, fmt.Errorf("frame rate must be positive without a manifest, got %v", fps)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var names []string
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
			names = append(names, f.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no frame images in %s", dir)
	}
	sort.Strings(names)

	entries := make([]manifestEntry, len(names))
	for i, name := range names {
		entries[i] = manifestEntry{File: name, Time: float64(i) / fps}
	}
	return &DirSource{dir: dir, entries: entries}, nil
}

// Frame returns the first frame at or after the requested time.
func (s *DirSource) Frame(ctx context.Context, at float64) (track.Frame, error) {
	if err := ctx.Err(); err != nil {
		return track.Frame{}, err
	}

	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].Time >= at })
	if i >= len(s.entries) {
		return track.Frame{}, fmt.Errorf("seek to %.3fs past end of source (%.3fs)", at, s.Duration())
	}
	entry := s.entries[i]

	f, err := os.Open(filepath.Join(s.dir, entry.File))
	if err != nil {
		return track.Frame{}, fmt.Errorf("open frame %s: %w", entry.File, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return track.Frame{}, fmt.Errorf("decode frame %s: %w", entry.File, err)
	}
	return track.Frame{Image: img, Time: entry.Time}, nil
}

// Duration returns the timestamp of the final frame.
func (s *DirSource) Duration() float64 {
	if len(s.entries) == 0 {
		return 0
	}
	return s.entries[len(s.entries)-1].Time
}

// FrameCount returns the number of frames available.
func (s *DirSource) FrameCount() int {
	return len(s.entries)
}

// Close releases the source. DirSource holds no open handles between calls.
func (s *DirSource) Close() error { return nil }
