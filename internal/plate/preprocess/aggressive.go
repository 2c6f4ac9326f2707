package preprocess

import "github.com/banshee-data/gatepass/internal/raster"

// Aggressive is tuned for dim or low-contrast frames: a single grayscale and
// contrast pass at AggressiveContrast, a 3×3 sharpen, then an adaptive
// threshold against the local mean over a BlockSize square.
func (p *Preprocessor) Aggressive(img *raster.Image) *raster.Image {
	w, h := img.Width, img.Height
	gray := make([]uint8, w*h)
	for i := range gray {
		o := i * raster.BytesPerPixel
		gray[i] = raster.ClampByte(contrast(raster.Luma(img.Pix[o], img.Pix[o+1], img.Pix[o+2]), p.AggressiveContrast))
	}
	sharp := Sharpen(gray, w, h)
	return writeGray(img, AdaptiveThreshold(sharp, w, h, p.BlockSize, p.Offset))
}

// Sharpen applies the kernel
//
//	 0 -1  0
//	-1  5 -1
//	 0 -1  0
//
// to a single-channel plane. The one-pixel border has no full neighbourhood
// and is copied unchanged.
func Sharpen(plane []uint8, w, h int) []uint8 {
	out := make([]uint8, len(plane))
	copy(out, plane)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			v := 5*int(plane[i]) - int(plane[i-w]) - int(plane[i+w]) - int(plane[i-1]) - int(plane[i+1])
			switch {
			case v < 0:
				v = 0
			case v > 255:
				v = 255
			}
			out[i] = uint8(v)
		}
	}
	return out
}

// AdaptiveThreshold sets each pixel to 255 when it is brighter than the mean
// of its block×block neighbourhood minus offset, else 0. Neighbourhoods are
// clipped at the edges, so corner pixels average over fewer samples.
//
// Means come from a summed-area table; the result is identical to summing
// every window directly.
func AdaptiveThreshold(plane []uint8, w, h, block int, offset float64) []uint8 {
	half := block / 2
	// sat has a zero row and column so window sums need no bounds checks.
	stride := w + 1
	sat := make([]int64, stride*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(plane[y*w+x])
			sat[(y+1)*stride+x+1] = sat[y*stride+x+1] + row
		}
	}

	out := make([]uint8, len(plane))
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-half), min(h-1, y+half)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-half), min(w-1, x+half)
			sum := sat[(y1+1)*stride+x1+1] - sat[y0*stride+x1+1] - sat[(y1+1)*stride+x0] + sat[y0*stride+x0]
			count := (y1 - y0 + 1) * (x1 - x0 + 1)
			mean := float64(sum) / float64(count)
			if float64(plane[y*w+x]) > mean-offset {
				out[y*w+x] = 255
			}
		}
	}
	return out
}
