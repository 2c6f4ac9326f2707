package evalstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/gatepass/internal/capture"
	"github.com/banshee-data/gatepass/internal/monitoring"
	"github.com/banshee-data/gatepass/internal/plate/normalize"
	"github.com/banshee-data/gatepass/internal/plate/pipeline"
	"github.com/banshee-data/gatepass/internal/plate/preprocess"
)

// LabelFromPath derives the expected plate from a file name. Everything up to
// the first '_' or '.' is the label, so "MH12AB1234_dusk.jpg" expects
// "MH-12-AB-1234". Returns "" when the name carries no label.
func LabelFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexAny(base, "_."); i >= 0 {
		base = base[:i]
	}
	if normalize.Clean(base) == "" {
		return ""
	}
	return normalize.Normalize(base)
}

// Harness runs the pipeline over labelled frames and records each outcome.
type Harness struct {
	Pipeline *pipeline.Pipeline
	Store    *Store
	Settings preprocess.Settings
	// Observe, when set, is called after each frame is recorded.
	Observe func(res *Result)
}

// Run evaluates paths as one run and returns its ID. Per-frame failures are
// recorded as results; only storage errors and cancellation abort the run.
func (h *Harness) Run(ctx context.Context, run *Run, paths []string) (string, error) {
	if err := h.Store.CreateRun(ctx, run); err != nil {
		return "", err
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return run.RunID, err
		}
		res := h.evaluate(ctx, run.RunID, path)
		if err := h.Store.AddResult(ctx, res); err != nil {
			return run.RunID, fmt.Errorf("record %s: %w", path, err)
		}
		if h.Observe != nil {
			h.Observe(res)
		}
	}
	if err := h.Store.FinishRun(ctx, run.RunID); err != nil {
		return run.RunID, err
	}
	return run.RunID, nil
}

func (h *Harness) evaluate(ctx context.Context, runID, path string) *Result {
	res := &Result{
		RunID:     runID,
		ImagePath: path,
		Expected:  LabelFromPath(path),
	}
	img, err := capture.FileSource{Path: path}.AcquireFrame(ctx)
	if err != nil {
		res.Error = err.Error()
		monitoring.Logf("eval: %s: %v", path, err)
		return res
	}

	plate, err := h.Pipeline.RecognizeAdjusted(ctx, img, capture.Prepare(img, h.Settings))
	if err != nil {
		res.Error = err.Error()
		var failure *pipeline.RecognitionFailure
		if errors.As(err, &failure) {
			res.CandidatesJSON = marshalCandidates(failure.Attempts)
		}
		return res
	}
	res.Got = plate.CanonicalPlate
	res.Method = string(plate.Method)
	res.Grammar = plate.Grammar
	res.Confidence = plate.Confidence
	res.ElapsedNS = plate.Elapsed.Nanoseconds()
	res.Correct = res.Expected != "" && res.Got == res.Expected
	res.CandidatesJSON = marshalCandidates(plate.Candidates)
	return res
}

func marshalCandidates(cands []pipeline.Candidate) json.RawMessage {
	if len(cands) == 0 {
		return nil
	}
	data, err := json.Marshal(cands)
	if err != nil {
		return nil
	}
	return data
}
