//go:build tesseract

package recognize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/banshee-data/gatepass/internal/raster"
)

// ErrTesseractUnavailable is returned by the stub engine in builds without
// the tesseract tag.
var ErrTesseractUnavailable = errors.New("tesseract support not enabled: rebuild with -tags=tesseract")

// TesseractAvailable reports whether this binary links libtesseract.
const TesseractAvailable = true

// Tesseract runs the local Tesseract engine through gosseract. A new client is
// created per call, so one Tesseract value is safe for concurrent use.
type Tesseract struct {
	// TessdataPrefix overrides the TESSDATA_PREFIX directory when set.
	TessdataPrefix string
}

// NewTesseract returns the local engine.
func NewTesseract() (*Tesseract, error) {
	return &Tesseract{}, nil
}

// Recognize encodes img as PNG and reads it with the given options.
// Confidence is the mean of the word-level confidences.
func (t *Tesseract) Recognize(ctx context.Context, img *raster.Image, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	png, err := raster.EncodePNG(img)
	if err != nil {
		return Result{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.TessdataPrefix != "" {
		client.TessdataPrefix = t.TessdataPrefix
	}
	if opts.Language != "" {
		if err := client.SetLanguage(opts.Language); err != nil {
			return Result{}, fmt.Errorf("set language: %w", err)
		}
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			return Result{}, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if opts.PageSegMode != 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
			return Result{}, fmt.Errorf("set page seg mode: %w", err)
		}
	}
	preserve := "0"
	if opts.PreserveInterwordSpaces {
		preserve = "1"
	}
	if err := client.SetVariable("preserve_interword_spaces", preserve); err != nil {
		return Result{}, fmt.Errorf("set preserve_interword_spaces: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("tesseract: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyResult
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Result{}, fmt.Errorf("word confidences: %w", err)
	}
	var sum float64
	var n int
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		sum += box.Confidence
		n++
	}
	var conf float64
	if n > 0 {
		conf = sum / float64(n)
	}
	return Result{Text: text, Confidence: clampConfidence(conf)}, nil
}
