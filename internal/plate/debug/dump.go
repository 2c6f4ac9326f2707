// Package debug writes diagnostics for tuning the plate pipeline: per-mode
// image dumps, rotation score plots and HTML evaluation reports.
package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/gatepass/internal/monitoring"
	"github.com/banshee-data/gatepass/internal/plate/pipeline"
	"github.com/banshee-data/gatepass/internal/plate/preprocess"
	"github.com/banshee-data/gatepass/internal/raster"
)

// StageDumper is a pipeline.Observer that saves every preprocessed variant as
// <Prefix>_<mode>.png under Dir and keeps the candidates it saw.
type StageDumper struct {
	Dir    string
	Prefix string

	mu         sync.Mutex
	candidates []pipeline.Candidate
	errs       []error
}

// NewStageDumper creates dir if needed.
func NewStageDumper(dir, prefix string) (*StageDumper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}
	if prefix == "" {
		prefix = "frame"
	}
	return &StageDumper{Dir: dir, Prefix: prefix}, nil
}

// ObserveStage implements pipeline.Observer.
func (d *StageDumper) ObserveStage(mode preprocess.Mode, processed *raster.Image, cand pipeline.Candidate) {
	var err error
	if processed != nil {
		err = d.save(string(mode), processed)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.candidates = append(d.candidates, cand)
	if err != nil {
		d.errs = append(d.errs, err)
		monitoring.Logf("debug: %v", err)
	}
}

// SaveOriginal writes the unprocessed frame next to the variants.
func (d *StageDumper) SaveOriginal(img *raster.Image) error {
	return d.save("original", img)
}

// Path returns where the image for stage is written.
func (d *StageDumper) Path(stage string) string {
	return filepath.Join(d.Dir, fmt.Sprintf("%s_%s.png", d.Prefix, stage))
}

func (d *StageDumper) save(stage string, img *raster.Image) error {
	path := d.Path(stage)
	if err := imaging.Save(img.NRGBA(), path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Candidates returns the candidates observed so far.
func (d *StageDumper) Candidates() []pipeline.Candidate {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]pipeline.Candidate, len(d.candidates))
	copy(out, d.candidates)
	return out
}

// Err returns the first save failure, if any.
func (d *StageDumper) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.errs) == 0 {
		return nil
	}
	return d.errs[0]
}

// WriteCandidates stores the observed candidates as <Prefix>_candidates.json.
func (d *StageDumper) WriteCandidates() error {
	data, err := json.MarshalIndent(d.Candidates(), "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(d.Dir, d.Prefix+"_candidates.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
