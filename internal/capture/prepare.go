package capture

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/gatepass/internal/plate/preprocess"
	"github.com/banshee-data/gatepass/internal/raster"
)

const (
	sharpenSigma = 1.0
	// cropTolerance is the per-channel difference from the border colour that
	// counts as content when auto-cropping.
	cropTolerance = 40
	// cropMargin is kept around detected content, in pixels.
	cropMargin = 4
)

// Prepare applies the capture adjustments in s and returns a new frame. With
// default settings the result equals the input.
func Prepare(img *raster.Image, s preprocess.Settings) *raster.Image {
	var cur image.Image = img.NRGBA()
	changed := false

	if s.Brightness > 0 && s.Brightness != 1 {
		cur = imaging.AdjustBrightness(cur, percent(s.Brightness))
		changed = true
	}
	if s.Contrast > 0 && s.Contrast != 1 {
		cur = imaging.AdjustContrast(cur, percent(s.Contrast))
		changed = true
	}
	if s.Sharpen {
		cur = imaging.Sharpen(cur, sharpenSigma)
		changed = true
	}
	if s.AutoCrop {
		if r, ok := contentBounds(cur); ok && r != cur.Bounds() {
			cur = imaging.Crop(cur, r)
			changed = true
		}
	}
	if !changed {
		return img.Clone()
	}
	return raster.FromImage(cur)
}

// percent converts a multiplier (1.0 = unchanged) to imaging's -100..100 scale.
func percent(m float64) float64 {
	return math.Max(-100, math.Min(100, (m-1)*100))
}

// contentBounds finds the smallest rectangle holding every pixel that differs
// from the top-left corner colour, grown by cropMargin.
func contentBounds(img image.Image) (image.Rectangle, bool) {
	b := img.Bounds()
	br, bg, bb, _ := img.At(b.Min.X, b.Min.Y).RGBA()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if diff(r, br) > cropTolerance || diff(g, bg) > cropTolerance || diff(bl, bb) > cropTolerance {
				minX, minY = min(minX, x), min(minY, y)
				maxX, maxY = max(maxX, x), max(maxY, y)
			}
		}
	}
	if maxX < minX {
		return b, false
	}
	r := image.Rect(minX-cropMargin, minY-cropMargin, maxX+1+cropMargin, maxY+1+cropMargin)
	return r.Intersect(b), true
}

// diff compares two 16-bit channel values on the 8-bit scale.
func diff(a, b uint32) uint32 {
	a, b = a>>8, b>>8
	if a > b {
		return a - b
	}
	return b - a
}
