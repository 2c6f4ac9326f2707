package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/banshee-data/gatepass/internal/raster"
)

// PlateOptions controls the synthetic frames produced by RenderPlate.
type PlateOptions struct {
	// Scale enlarges the 7×13 bitmap glyphs; 4 gives roughly 28px tall text.
	Scale int
	// Margin is the border around the text, in unscaled pixels.
	Margin int
	// Background and Ink are the plate and character colours.
	Background color.Color
	Ink        color.Color
}

// DefaultPlateOptions renders black characters on a white plate.
func DefaultPlateOptions() PlateOptions {
	return PlateOptions{
		Scale:      4,
		Margin:     6,
		Background: color.White,
		Ink:        color.Black,
	}
}

// RenderPlate draws text with the basic bitmap font and returns it as a
// raster.Image. The output is deterministic for a given text and options.
func RenderPlate(text string, opts PlateOptions) *raster.Image {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 2*opts.Margin
	height := face.Height + 2*opts.Margin

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(opts.Ink),
		Face: face,
		Dot:  fixed.P(opts.Margin, opts.Margin+face.Ascent),
	}
	d.DrawString(text)

	scaled := imaging.Resize(canvas, width*opts.Scale, height*opts.Scale, imaging.NearestNeighbor)
	return raster.FromImage(scaled)
}

// NoiseImage returns a frame of uniformly random opaque pixels.
func NoiseImage(w, h int, seed int64) *raster.Image {
	rng := rand.New(rand.NewSource(seed))
	img := raster.New(w, h)
	for i := 0; i < len(img.Pix); i += raster.BytesPerPixel {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

// HorizontalStripes returns an opaque frame of alternating black and white
// bands, each band rows tall.
func HorizontalStripes(w, h, band int) *raster.Image {
	img := raster.New(w, h)
	for y := 0; y < h; y++ {
		var v uint8
		if (y/band)%2 == 0 {
			v = 255
		}
		for x := 0; x < w; x++ {
			o := img.Offset(x, y)
			img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = v, v, v, 255
		}
	}
	return img
}
