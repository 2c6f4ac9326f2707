// Package raster defines the RGBA pixel buffer that flows through the plate
// pipeline.
//
// An Image is a plain value: row-major, four bytes per pixel (R, G, B, A),
// non-premultiplied. Stages that transform an image always allocate a new one.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
)

// BytesPerPixel is the channel count of every Image.
const BytesPerPixel = 4

// ErrMalformed marks a zero-sized image or a pixel buffer whose length does not
// match its dimensions. Callers must not pass such images to the pipeline.
var ErrMalformed = errors.New("malformed raster image")

// Image is a width×height RGBA buffer.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a zeroed (transparent black) image.
func New(width, height int) *Image {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*BytesPerPixel),
	}
}

// Filled allocates an image with every pixel set to the given colour.
func Filled(width, height int, r, g, b, a uint8) *Image {
	img := New(width, height)
	for i := 0; i < len(img.Pix); i += BytesPerPixel {
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img
}

// FromImage copies any image.Image into a new Image.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Image{Width: b.Dx(), Height: b.Dy(), Pix: dst.Pix}
}

// Validate reports ErrMalformed when the image violates the size invariant.
func (m *Image) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil image", ErrMalformed)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrMalformed, m.Width, m.Height)
	}
	if want := m.Width * m.Height * BytesPerPixel; len(m.Pix) != want {
		return fmt.Errorf("%w: buffer length %d, want %d", ErrMalformed, len(m.Pix), want)
	}
	return nil
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Width: m.Width, Height: m.Height, Pix: pix}
}

// Equal reports whether both images have the same dimensions and bytes.
func (m *Image) Equal(o *Image) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Width == o.Width && m.Height == o.Height && bytes.Equal(m.Pix, o.Pix)
}

// Offset returns the index of the red channel of pixel (x, y).
func (m *Image) Offset(x, y int) int {
	return (y*m.Width + x) * BytesPerPixel
}

// Luminance returns the Rec. 601 luma of pixel (x, y).
func (m *Image) Luminance(x, y int) float64 {
	i := m.Offset(x, y)
	return Luma(m.Pix[i], m.Pix[i+1], m.Pix[i+2])
}

// Luma is 0.299R + 0.587G + 0.114B.
func Luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// NRGBA returns an image.NRGBA view over a copy of the pixels.
func (m *Image) NRGBA() *image.NRGBA {
	c := m.Clone()
	return &image.NRGBA{
		Pix:    c.Pix,
		Stride: m.Width * BytesPerPixel,
		Rect:   image.Rect(0, 0, m.Width, m.Height),
	}
}

// EncodePNG serialises the image losslessly for recognition engines.
func EncodePNG(m *Image) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.NRGBA()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ClampByte rounds v to the nearest integer and clamps it to [0, 255].
func ClampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
