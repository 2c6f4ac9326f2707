// Package capture acquires still frames and applies the capture-side
// adjustments (brightness, contrast, sharpen, auto-crop) before recognition.
package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/gatepass/internal/raster"
)

// FrameSource yields one frame per call. Camera integrations implement it; the
// pipeline itself only ever sees the returned raster.Image.
type FrameSource interface {
	AcquireFrame(ctx context.Context) (*raster.Image, error)
}

// SourceFunc adapts a function to FrameSource.
type SourceFunc func(ctx context.Context) (*raster.Image, error)

// AcquireFrame calls f.
func (f SourceFunc) AcquireFrame(ctx context.Context) (*raster.Image, error) {
	return f(ctx)
}

// FileSource reads a frame from an image file on every call.
type FileSource struct {
	Path string
}

// AcquireFrame decodes the file.
func (s FileSource) AcquireFrame(ctx context.Context) (*raster.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return raster.Open(s.Path)
}

// ReaderSource decodes a single frame from R. A second call fails because the
// reader has been consumed.
type ReaderSource struct {
	R    io.Reader
	used bool
}

// NewReaderSource wraps r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{R: r}
}

// AcquireFrame decodes the reader's content.
func (s *ReaderSource) AcquireFrame(ctx context.Context) (*raster.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.used {
		return nil, fmt.Errorf("reader source already consumed")
	}
	s.used = true
	return raster.Decode(s.R)
}

// imageExts are the file extensions ListFrames accepts.
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// ListFrames returns the image files directly inside dir, sorted by name.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
