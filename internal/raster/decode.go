package raster

import (
	"fmt"
	"io"

	"github.com/disintegration/imaging"

	// Camera uploads arrive as JPEG/PNG; the extra decoders cover frames
	// exported from DVR software.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads an encoded frame, applying any EXIF orientation so the plate is
// upright before preprocessing.
func Decode(r io.Reader) (*Image, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	img := FromImage(src)
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// Open decodes the frame stored at path.
func Open(path string) (*Image, error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", path, err)
	}
	img := FromImage(src)
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
