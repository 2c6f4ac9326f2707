package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/gatepass/internal/config"
	"github.com/banshee-data/gatepass/internal/monitoring"
	"github.com/banshee-data/gatepass/internal/plate/normalize"
	"github.com/banshee-data/gatepass/internal/plate/preprocess"
	"github.com/banshee-data/gatepass/internal/plate/recognize"
	"github.com/banshee-data/gatepass/internal/raster"
	"github.com/banshee-data/gatepass/internal/timeutil"
)

// Observer is notified after each mode has run. processed is nil when
// preprocessing failed. Observers are called from the goroutine running the
// mode, so in parallel mode they must be safe for concurrent use.
type Observer interface {
	ObserveStage(mode preprocess.Mode, processed *raster.Image, cand Candidate)
}

// Pipeline runs the preprocess → recognize → select → normalize chain. It
// holds no per-call state and may be shared between goroutines.
type Pipeline struct {
	Preprocessor *preprocess.Preprocessor
	Recognizer   recognize.Recognizer
	Options      recognize.Options
	Thresholds   Thresholds
	// Modes defaults to preprocess.LocalModes.
	Modes []preprocess.Mode
	// Parallel runs the modes concurrently. Results and selection are the
	// same as sequential runs.
	Parallel bool
	Observer Observer
	Clock    timeutil.Clock
	Logger   zerolog.Logger
}

// New returns a pipeline with default tunables around rec.
func New(rec recognize.Recognizer) *Pipeline {
	return &Pipeline{
		Preprocessor: preprocess.New(),
		Recognizer:   rec,
		Options:      recognize.DefaultOptions(),
		Thresholds:   DefaultThresholds(),
		Modes:        preprocess.LocalModes(),
		Clock:        timeutil.RealClock{},
		Logger:       monitoring.Component("pipeline"),
	}
}

// NewFromConfig builds a pipeline from cfg. rec is bounded by the configured
// recognizer timeout.
func NewFromConfig(cfg *config.PipelineConfig, rec recognize.Recognizer) *Pipeline {
	p := New(recognize.WithTimeout(rec, cfg.GetRecognizerTimeout()))
	p.Preprocessor = cfg.Preprocessor()
	p.Options = cfg.RecognizeOptions()
	p.Thresholds = Thresholds{
		MinConfidence: cfg.GetMinConfidence(),
		MinTextLength: cfg.GetMinTextLength(),
	}
	p.Parallel = cfg.GetParallel()
	return p
}

// WithLanguage returns a shallow copy that asks the recognizer for lang. An
// empty lang, or the current one, returns p itself.
func (p *Pipeline) WithLanguage(lang string) *Pipeline {
	if lang == "" || lang == p.Options.Language {
		return p
	}
	cp := *p
	cp.Options.Language = lang
	return &cp
}

// RecognizePlate reads the registration on img.
//
// A malformed img returns an error wrapping raster.ErrMalformed. When no mode
// yields a usable reading the error is a *RecognitionFailure. Cancelling ctx
// stops the run before the next mode starts.
func (p *Pipeline) RecognizePlate(ctx context.Context, img *raster.Image) (*PlateResult, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("recognize plate: %w", err)
	}
	clock := timeutil.OrReal(p.Clock)
	start := clock.Now()

	cands, err := p.runModes(ctx, img)
	if err != nil {
		return nil, err
	}

	best, err := Select(cands, p.Thresholds)
	if err != nil {
		p.Logger.Info().Int("attempts", len(cands)).Msg("no plate detected")
		return nil, err
	}

	plate := normalize.Parse(best.Cleaned)
	res := &PlateResult{
		CanonicalPlate: plate.Canonical,
		Confidence:     best.Confidence,
		RawText:        best.RawText,
		Method:         best.Mode,
		Grammar:        plate.Grammar,
		Valid:          plate.Matched,
		Candidates:     cands,
		Elapsed:        clock.Since(start),
		Image:          img,
	}
	p.Logger.Info().
		Str("plate", res.CanonicalPlate).
		Str("method", string(res.Method)).
		Str("grammar", res.Grammar).
		Float64("confidence", res.Confidence).
		Dur("elapsed", res.Elapsed).
		Msg("plate recognized")
	return res, nil
}

// RecognizeAdjusted reads the plate on adjusted, a capture-side adjustment of
// original, and keeps original on the result for audit.
func (p *Pipeline) RecognizeAdjusted(ctx context.Context, original, adjusted *raster.Image) (*PlateResult, error) {
	res, err := p.RecognizePlate(ctx, adjusted)
	if err != nil {
		return nil, err
	}
	res.Image = original
	return res, nil
}

func (p *Pipeline) modes() []preprocess.Mode {
	if len(p.Modes) == 0 {
		return preprocess.LocalModes()
	}
	return p.Modes
}

func (p *Pipeline) runModes(ctx context.Context, img *raster.Image) ([]Candidate, error) {
	modes := p.modes()
	cands := make([]Candidate, len(modes))

	if !p.Parallel {
		for i, mode := range modes {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("recognize plate: %w", err)
			}
			cands[i] = p.runMode(ctx, mode, img)
		}
		return cands, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, mode := range modes {
		i, mode := i, mode
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cands[i] = p.runMode(gctx, mode, img)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("recognize plate: %w", err)
	}
	return cands, nil
}

// runMode never fails: preprocessing and engine errors are recorded on the
// candidate, which Select then ignores.
func (p *Pipeline) runMode(ctx context.Context, mode preprocess.Mode, img *raster.Image) Candidate {
	clock := timeutil.OrReal(p.Clock)
	start := clock.Now()
	cand := Candidate{Mode: mode}

	processed, err := p.Preprocessor.Apply(mode, img)
	if err == nil {
		var res recognize.Result
		res, err = p.Recognizer.Recognize(ctx, processed, p.Options)
		if err == nil {
			cand.RawText = res.Text
			cand.Confidence = res.Confidence
			cand.Cleaned = normalize.Clean(res.Text)
			cand.Success = len(cand.Cleaned) >= p.Thresholds.MinTextLength
			cand.Valid = normalize.IsValid(cand.Cleaned)
		}
	}
	if err != nil {
		cand.Err = err
		cand.Error = err.Error()
		p.Logger.Debug().Err(err).Str("mode", string(mode)).Msg("mode failed")
	}
	cand.Elapsed = clock.Since(start)

	p.Logger.Debug().
		Str("mode", string(mode)).
		Str("text", cand.Cleaned).
		Float64("confidence", cand.Confidence).
		Bool("valid", cand.Valid).
		Msg("candidate")

	if p.Observer != nil {
		p.Observer.ObserveStage(mode, processed, cand)
	}
	return cand
}

// FromExternal builds a result for text read by an external plate-recognition
// service. Such results carry APIConfidence and ModeAPI.
func FromExternal(text string, img *raster.Image) *PlateResult {
	plate := normalize.Parse(text)
	return &PlateResult{
		CanonicalPlate: plate.Canonical,
		Confidence:     APIConfidence,
		RawText:        text,
		Method:         preprocess.ModeAPI,
		Grammar:        plate.Grammar,
		Valid:          plate.Matched,
		Image:          img,
	}
}
