//go:build !tesseract

package recognize

import (
	"context"
	"errors"

	"github.com/banshee-data/gatepass/internal/raster"
)

// ErrTesseractUnavailable is returned by the stub engine in builds without
// the tesseract tag.
var ErrTesseractUnavailable = errors.New("tesseract support not enabled: rebuild with -tags=tesseract")

// TesseractAvailable reports whether this binary links libtesseract.
const TesseractAvailable = false

// Tesseract is a stub. Build with -tags=tesseract for the real engine.
type Tesseract struct {
	TessdataPrefix string
}

// NewTesseract reports that the local engine is not compiled in.
func NewTesseract() (*Tesseract, error) {
	return nil, ErrTesseractUnavailable
}

// Recognize always fails in builds without the tesseract tag.
func (t *Tesseract) Recognize(context.Context, *raster.Image, Options) (Result, error) {
	return Result{}, ErrTesseractUnavailable
}
