package debug

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gatepass/internal/plate/pipeline"
	"github.com/banshee-data/gatepass/internal/plate/preprocess"
	"github.com/banshee-data/gatepass/internal/plate/recognize"
	"github.com/banshee-data/gatepass/internal/raster"
	"github.com/banshee-data/gatepass/internal/testutil"
)

func TestStageDumper_WithPipeline(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dbg")
	dumper, err := NewStageDumper(dir, "gate1")
	require.NoError(t, err)

	p := pipeline.New(recognize.Func(func(context.Context, *raster.Image, recognize.Options) (recognize.Result, error) {
		return recognize.Result{Text: "MH12AB1234", Confidence: 77}, nil
	}))
	p.Logger = zerolog.Nop()
	p.Observer = dumper

	src := testutil.RenderPlate("MH12AB1234", testutil.DefaultPlateOptions())
	require.NoError(t, dumper.SaveOriginal(src))
	_, err = p.RecognizePlate(context.Background(), src)
	require.NoError(t, err)
	require.NoError(t, dumper.Err())

	for _, stage := range []string{"original", "standard", "aggressive", "rotated"} {
		img, err := raster.Open(dumper.Path(stage))
		require.NoError(t, err, stage)
		assert.Equal(t, src.Width, img.Width, stage)
	}

	require.Len(t, dumper.Candidates(), 3)
	require.NoError(t, dumper.WriteCandidates())
	data, err := os.ReadFile(filepath.Join(dir, "gate1_candidates.json"))
	require.NoError(t, err)
	var cands []pipeline.Candidate
	require.NoError(t, json.Unmarshal(data, &cands))
	assert.Equal(t, preprocess.ModeStandard, cands[0].Mode)
}

func TestStageDumper_SaveFailureRecorded(t *testing.T) {
	dumper, err := NewStageDumper(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "frame", dumper.Prefix)

	dumper.Dir = filepath.Join(dumper.Dir, "gone", "deeper")
	dumper.ObserveStage(preprocess.ModeStandard, raster.New(2, 2), pipeline.Candidate{})
	assert.Error(t, dumper.Err())

	// nil images are skipped, not errors
	d2, _ := NewStageDumper(t.TempDir(), "x")
	d2.ObserveStage(preprocess.ModeAPI, nil, pipeline.Candidate{})
	assert.NoError(t, d2.Err())
	assert.Len(t, d2.Candidates(), 1)
}

func TestPlotRotationScores(t *testing.T) {
	src := preprocess.Rotate(testutil.RenderPlate("KL65AN7722", testutil.DefaultPlateOptions()), 5)
	scores := preprocess.RotationScores(src, preprocess.DefaultAngles)

	path := filepath.Join(t.TempDir(), "rotation.png")
	require.NoError(t, PlotRotationScores(scores, "KL65AN7722", path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, PlotRotationScores(nil, "empty", path))
}

func TestRenderReport(t *testing.T) {
	rows := []ReportRow{
		{Label: "a.jpg", Expected: "MH-12-AB-1234", Got: "MH-12-AB-1234", Method: "standard", Confidence: 81, Correct: true},
		{Label: "b.jpg", Expected: "KL-65-AN-7722", Got: "KL-65-AN-7727", Method: "aggressive", Confidence: 64},
		{Label: "c.jpg", Expected: "22BH1234AB", Method: ""},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, "nightly eval", rows))

	html := buf.String()
	assert.True(t, strings.Contains(html, "nightly eval"))
	assert.True(t, strings.Contains(html, "aggressive"))
	assert.True(t, strings.Contains(html, "echarts"))
}
