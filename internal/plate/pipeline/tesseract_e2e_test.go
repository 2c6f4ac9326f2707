//go:build tesseract

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/banshee-data/gatepass/internal/plate/recognize"
	"github.com/banshee-data/gatepass/internal/testutil"
)

// Requires libtesseract with eng traineddata: go test -tags=tesseract ./...
func TestRecognizePlate_Tesseract(t *testing.T) {
	eng, err := recognize.NewTesseract()
	if err != nil {
		t.Fatalf("NewTesseract: %v", err)
	}
	opts := testutil.DefaultPlateOptions()
	opts.Scale = 6
	src := testutil.RenderPlate("MH12AB1234", opts)

	res, err := quietPipeline(eng).RecognizePlate(context.Background(), src)
	if errors.Is(err, ErrNoPlateDetected) {
		t.Skipf("tesseract could not read the bitmap font on this install: %v", err)
	}
	if err != nil {
		t.Fatalf("RecognizePlate: %v", err)
	}
	if res.CanonicalPlate != "MH-12-AB-1234" {
		t.Errorf("CanonicalPlate = %q, want MH-12-AB-1234 (raw %q via %s)", res.CanonicalPlate, res.RawText, res.Method)
	}
}
