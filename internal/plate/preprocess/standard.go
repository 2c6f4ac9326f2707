package preprocess

import "github.com/banshee-data/gatepass/internal/raster"

// Standard converts img to luma grayscale, stretches contrast by
// StandardContrast, then binarises: values strictly above Threshold become 255,
// the rest 0.
func (p *Preprocessor) Standard(img *raster.Image) *raster.Image {
	n := img.Width * img.Height
	plane := make([]uint8, n)
	for i := 0; i < n; i++ {
		o := i * raster.BytesPerPixel
		gray := raster.ClampByte(raster.Luma(img.Pix[o], img.Pix[o+1], img.Pix[o+2]))
		v := raster.ClampByte(contrast(float64(gray), p.StandardContrast))
		if v > p.Threshold {
			plane[i] = 255
		}
	}
	return writeGray(img, plane)
}
