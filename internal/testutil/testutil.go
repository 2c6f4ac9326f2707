// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"

	"github.com/banshee-data/gatepass/internal/raster"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertBinary fails the test unless every RGB channel of img is 0 or 255.
func AssertBinary(t *testing.T, img *raster.Image) {
	t.Helper()
	for i := 0; i < len(img.Pix); i += raster.BytesPerPixel {
		for c := 0; c < 3; c++ {
			if v := img.Pix[i+c]; v != 0 && v != 255 {
				x, y := (i/raster.BytesPerPixel)%img.Width, (i/raster.BytesPerPixel)/img.Width
				t.Fatalf("pixel (%d,%d) channel %d = %d, want 0 or 255", x, y, c, v)
			}
		}
	}
}
