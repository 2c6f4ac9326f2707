package preprocess

import (
	"math"

	"github.com/banshee-data/gatepass/internal/raster"
)

// AngleScore is the edge energy measured for one candidate rotation.
type AngleScore struct {
	Degrees float64 `json:"degrees"`
	Score   float64 `json:"score"`
}

// RotationCorrection rotates img by each of p.Angles and keeps the rotation
// with the highest EdgeScore. 0° is the baseline and only a strictly higher
// score displaces it; in that case an exact copy of img is returned.
func (p *Preprocessor) RotationCorrection(img *raster.Image) *raster.Image {
	best := 0.0
	bestScore := EdgeScore(img)
	var bestImg *raster.Image
	for _, deg := range p.Angles {
		if deg == 0 {
			continue
		}
		rotated := Rotate(img, deg)
		if s := EdgeScore(rotated); s > bestScore {
			best, bestScore, bestImg = deg, s, rotated
		}
	}
	if best == 0 {
		return img.Clone()
	}
	return bestImg
}

// RotationScores reports the EdgeScore of img rotated by each angle.
func RotationScores(img *raster.Image, angles []float64) []AngleScore {
	out := make([]AngleScore, 0, len(angles))
	for _, deg := range angles {
		var s float64
		if deg == 0 {
			s = EdgeScore(img)
		} else {
			s = EdgeScore(Rotate(img, deg))
		}
		out = append(out, AngleScore{Degrees: deg, Score: s})
	}
	return out
}

// Rotate turns img by degrees about its centre using nearest-neighbour
// sampling. Output pixels whose source falls outside the frame are opaque
// white. The output has the same dimensions as the input.
func Rotate(img *raster.Image, degrees float64) *raster.Image {
	w, h := img.Width, img.Height
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	if degrees == 0 {
		sin, cos = 0, 1
	}
	cx, cy := float64(w)/2, float64(h)/2

	out := raster.New(w, h)
	for y := 0; y < h; y++ {
		dy := float64(y) - cy
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			sx := int(math.Round(cos*dx + sin*dy + cx))
			sy := int(math.Round(-sin*dx + cos*dy + cy))
			o := out.Offset(x, y)
			if sx < 0 || sx >= w || sy < 0 || sy >= h {
				out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = 255, 255, 255, 255
				continue
			}
			copy(out.Pix[o:o+raster.BytesPerPixel], img.Pix[img.Offset(sx, sy):])
		}
	}
	return out
}

// EdgeScore sums absolute luma differences between vertically adjacent pixels.
// Text rows that are level produce sharp horizontal edges and a high score.
func EdgeScore(img *raster.Image) float64 {
	var score float64
	for y := 0; y+1 < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			score += math.Abs(img.Luminance(x, y+1) - img.Luminance(x, y))
		}
	}
	return score
}
