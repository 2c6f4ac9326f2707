package preprocess

import (
	"fmt"

	"github.com/banshee-data/gatepass/internal/raster"
)

// Mode names one way of producing a recognition candidate.
type Mode string

const (
	ModeStandard   Mode = "standard"
	ModeAggressive Mode = "aggressive"
	ModeRotated    Mode = "rotated"
	// ModeAPI tags results obtained from an external plate-recognition
	// service. It has no local preprocessing.
	ModeAPI Mode = "api"
)

// LocalModes is the order in which the pipeline tries preprocessing variants.
func LocalModes() []Mode {
	return []Mode{ModeStandard, ModeAggressive, ModeRotated}
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeStandard, ModeAggressive, ModeRotated, ModeAPI:
		return true
	}
	return false
}

// Defaults used by the package-level Apply* helpers.
const (
	DefaultStandardContrast   = 1.5
	DefaultThreshold          = 128
	DefaultAggressiveContrast = 2.5
	DefaultBlockSize          = 15
	DefaultOffset             = 10.0
)

// DefaultAngles are the candidate deskew angles in degrees.
var DefaultAngles = []float64{-10, -5, 0, 5, 10}

// Preprocessor carries the tunables for all three variants. The zero value is
// not useful; use New or build one from config.
type Preprocessor struct {
	StandardContrast   float64
	Threshold          uint8
	AggressiveContrast float64
	BlockSize          int
	Offset             float64
	Angles             []float64
}

// New returns a Preprocessor with the default tunables.
func New() *Preprocessor {
	angles := make([]float64, len(DefaultAngles))
	copy(angles, DefaultAngles)
	return &Preprocessor{
		StandardContrast:   DefaultStandardContrast,
		Threshold:          DefaultThreshold,
		AggressiveContrast: DefaultAggressiveContrast,
		BlockSize:          DefaultBlockSize,
		Offset:             DefaultOffset,
		Angles:             angles,
	}
}

var defaultPreprocessor = New()

// Apply produces the variant for mode.
func (p *Preprocessor) Apply(mode Mode, img *raster.Image) (*raster.Image, error) {
	switch mode {
	case ModeStandard:
		return p.Standard(img), nil
	case ModeAggressive:
		return p.Aggressive(img), nil
	case ModeRotated:
		return p.RotationCorrection(img), nil
	case ModeAPI:
		return nil, fmt.Errorf("mode %q has no local preprocessing", mode)
	default:
		return nil, fmt.Errorf("unknown preprocessing mode %q", mode)
	}
}

// ApplyStandard runs the standard variant with default tunables.
func ApplyStandard(img *raster.Image) *raster.Image {
	return defaultPreprocessor.Standard(img)
}

// ApplyAggressive runs the aggressive variant with default tunables.
func ApplyAggressive(img *raster.Image) *raster.Image {
	return defaultPreprocessor.Aggressive(img)
}

// ApplyRotationCorrection deskews img over DefaultAngles.
func ApplyRotationCorrection(img *raster.Image) *raster.Image {
	return defaultPreprocessor.RotationCorrection(img)
}

// contrast applies the linear stretch around mid-gray.
func contrast(v, factor float64) float64 {
	return (v-128)*factor + 128
}

// writeGray stores a single-channel plane into a new image, copying alpha
// from src.
func writeGray(src *raster.Image, plane []uint8) *raster.Image {
	out := raster.New(src.Width, src.Height)
	for i, v := range plane {
		o := i * raster.BytesPerPixel
		out.Pix[o] = v
		out.Pix[o+1] = v
		out.Pix[o+2] = v
		out.Pix[o+3] = src.Pix[o+3]
	}
	return out
}
