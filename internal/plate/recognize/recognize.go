// Package recognize reads characters from a preprocessed plate image.
//
// Engines implement Recognizer. Tesseract is the local engine (built with
// -tags=tesseract); Remote delegates to an OCR HTTP service. WithTimeout bounds
// any engine so a stuck call fails only the mode that issued it.
package recognize

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/gatepass/internal/raster"
)

// ErrEmptyResult is returned when an engine ran but read no text.
var ErrEmptyResult = errors.New("recognizer returned no text")

// PageSegMode selects the layout analysis the engine assumes.
type PageSegMode int

// Values match Tesseract's page segmentation modes.
const (
	PageSegAuto        PageSegMode = 3
	PageSegSingleBlock PageSegMode = 6
	PageSegSingleLine  PageSegMode = 7
	PageSegSingleWord  PageSegMode = 8
)

// DefaultTimeout bounds a single recognition call.
const DefaultTimeout = 15 * time.Second

// Options configure one recognition call.
type Options struct {
	Language                string      `json:"language"`
	Whitelist               string      `json:"whitelist"`
	PageSegMode             PageSegMode `json:"page_seg_mode"`
	PreserveInterwordSpaces bool        `json:"preserve_interword_spaces"`
}

// PlateWhitelist is the character set printed on registration plates.
const PlateWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultOptions reads English plate characters as a single block.
func DefaultOptions() Options {
	return Options{
		Language:    "eng",
		Whitelist:   PlateWhitelist,
		PageSegMode: PageSegSingleBlock,
	}
}

// Result is what an engine read. Confidence is on a 0–100 scale.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Recognizer reads text from an image. Implementations must be safe for
// concurrent use; the pipeline may run modes in parallel.
type Recognizer interface {
	Recognize(ctx context.Context, img *raster.Image, opts Options) (Result, error)
}

// Func adapts a function to Recognizer.
type Func func(ctx context.Context, img *raster.Image, opts Options) (Result, error)

// Recognize calls f.
func (f Func) Recognize(ctx context.Context, img *raster.Image, opts Options) (Result, error) {
	return f(ctx, img, opts)
}

// clampConfidence keeps engine scores inside 0–100.
func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
