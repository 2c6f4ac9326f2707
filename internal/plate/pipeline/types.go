package pipeline

import (
	"errors"
	"time"

	"github.com/banshee-data/gatepass/internal/plate/preprocess"
	"github.com/banshee-data/gatepass/internal/raster"
)

// APIConfidence is the fixed confidence assigned to results that came from an
// external plate-recognition service.
const APIConfidence = 90.0

// ErrNoPlateDetected is wrapped by RecognitionFailure when no mode produced a
// usable candidate.
var ErrNoPlateDetected = errors.New("could not detect plate - improve lighting or distance")

// Candidate is one mode's reading of the frame.
type Candidate struct {
	Mode       preprocess.Mode `json:"mode"`
	RawText    string          `json:"raw_text"`
	Cleaned    string          `json:"cleaned"`
	Confidence float64         `json:"confidence"`
	// Success is true when Cleaned is long enough to be a plate.
	Success bool `json:"success"`
	// Valid is true when Cleaned matches a registration grammar.
	Valid   bool          `json:"valid"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Err     error         `json:"-"`
	Error   string        `json:"error,omitempty"`
}

// PlateResult is the outcome of a successful recognition.
type PlateResult struct {
	CanonicalPlate string          `json:"canonical_plate"`
	Confidence     float64         `json:"confidence"`
	RawText        string          `json:"raw_text"`
	Method         preprocess.Mode `json:"method"`
	Grammar        string          `json:"grammar"`
	Valid          bool            `json:"valid"`
	Candidates     []Candidate     `json:"candidates,omitempty"`
	Elapsed        time.Duration   `json:"elapsed_ns"`
	// Image is the frame the result was read from.
	Image *raster.Image `json:"-"`
}

// RecognitionFailure reports that every mode was rejected. Attempts holds what
// each mode read, for diagnostics.
type RecognitionFailure struct {
	Reason   string
	Attempts []Candidate
}

func (e *RecognitionFailure) Error() string {
	return e.Reason
}

// Unwrap makes errors.Is(err, ErrNoPlateDetected) hold.
func (e *RecognitionFailure) Unwrap() error {
	return ErrNoPlateDetected
}

// Thresholds gate which candidates may win.
type Thresholds struct {
	// MinConfidence is exclusive: a candidate must score strictly above it.
	MinConfidence float64 `json:"min_confidence"`
	MinTextLength int     `json:"min_text_length"`
}

// DefaultThresholds are 50 confidence and six characters, the shortest
// registration grammar.
func DefaultThresholds() Thresholds {
	return Thresholds{MinConfidence: 50, MinTextLength: 6}
}
