package evalstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gatepass/internal/plate/pipeline"
	"github.com/banshee-data/gatepass/internal/plate/preprocess"
	"github.com/banshee-data/gatepass/internal/plate/recognize"
	"github.com/banshee-data/gatepass/internal/raster"
	"github.com/banshee-data/gatepass/internal/testutil"
	"github.com/banshee-data/gatepass/internal/timeutil"
)

func openTestStore(t *testing.T) (*Store, *timeutil.MockClock) {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "eval.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	s.SetClock(clock)
	return s, clock
}

func TestOpen_MigratesToLatest(t *testing.T) {
	s, _ := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)
	assert.False(t, dirty)

	// Re-applying is a no-op.
	require.NoError(t, s.MigrateUp())
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	run := &Run{Version: "test"}
	require.NoError(t, s.CreateRun(context.Background(), run))
	_, err = s.GetRun(context.Background(), run.RunID)
	require.NoError(t, err)
}

func TestRuns_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s, clock := openTestStore(t)

	run := &Run{Version: "v1", ConfigJSON: []byte(`{"threshold":128}`), Notes: "nightly"}
	require.NoError(t, s.CreateRun(ctx, run))
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, int64(1700000000)*int64(time.Second), run.StartedNS)

	clock.Advance(time.Minute)
	require.NoError(t, s.FinishRun(ctx, run.RunID))

	got, err := s.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Version)
	assert.Equal(t, "nightly", got.Notes)
	assert.JSONEq(t, `{"threshold":128}`, string(got.ConfigJSON))
	assert.Equal(t, run.StartedNS+int64(time.Minute), got.FinishedNS)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)
}

func TestRuns_NotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, err := s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.FinishRun(ctx, "missing"), ErrRunNotFound)
	assert.ErrorIs(t, s.DeleteRun(ctx, "missing"), ErrRunNotFound)
	_, err = s.Summarize(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestResults_RoundTripAndCascade(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	run := &Run{Version: "v1"}
	require.NoError(t, s.CreateRun(ctx, run))

	in := &Result{
		RunID:          run.RunID,
		ImagePath:      "frames/MH12AB1234.png",
		Expected:       "MH-12-AB-1234",
		Got:            "MH-12-AB-1234",
		Method:         "standard",
		Grammar:        "standard",
		Confidence:     81.5,
		Correct:        true,
		ElapsedNS:      1500,
		CandidatesJSON: []byte(`[{"mode":"standard"}]`),
	}
	require.NoError(t, s.AddResult(ctx, in))
	assert.NotZero(t, in.ResultID)
	require.NoError(t, s.AddResult(ctx, &Result{RunID: run.RunID, ImagePath: "b.png", Error: "boom"}))

	got, err := s.Results(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, in.Got, got[0].Got)
	assert.True(t, got[0].Correct)
	assert.Equal(t, 81.5, got[0].Confidence)
	assert.JSONEq(t, `[{"mode":"standard"}]`, string(got[0].CandidatesJSON))
	assert.Nil(t, got[1].CandidatesJSON)
	assert.Equal(t, "boom", got[1].Error)

	require.NoError(t, s.DeleteRun(ctx, run.RunID))
	got, err = s.Results(ctx, run.RunID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResults_UnknownRunRejected(t *testing.T) {
	s, _ := openTestStore(t)
	err := s.AddResult(context.Background(), &Result{RunID: "nope", ImagePath: "x.png"})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	results := []*Result{
		{Method: "standard", Confidence: 80, Correct: true, ElapsedNS: 10},
		{Method: "standard", Confidence: 60, Correct: false, ElapsedNS: 30},
		{Method: "aggressive", Confidence: 70, Correct: true, ElapsedNS: 20},
		{Error: "no plate", ElapsedNS: 40},
	}
	sum := Summarize("r1", results)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.Correct)
	assert.Equal(t, 1, sum.Failed)
	assert.InDelta(t, 0.5, sum.Accuracy, 1e-9)
	assert.InDelta(t, 70, sum.MeanConfidence, 1e-9)
	assert.InDelta(t, 10, sum.StdDevConfidence, 1e-9)
	assert.Equal(t, int64(20), sum.MedianElapsedNS)
	assert.Equal(t, MethodStats{Total: 2, Correct: 1}, sum.ByMethod["standard"])
	assert.Equal(t, MethodStats{Total: 1, Correct: 1}, sum.ByMethod["aggressive"])
}

func TestSummarize_MedianIgnoresFailures(t *testing.T) {
	results := []*Result{
		{Error: "decode"}, {Error: "no plate"}, {Error: "no plate"},
		{Method: "standard", Confidence: 70, ElapsedNS: 30},
		{Method: "standard", Confidence: 70, ElapsedNS: 40},
		{Method: "standard", Confidence: 70, ElapsedNS: 50},
	}
	assert.Equal(t, int64(40), Summarize("r", results).MedianElapsedNS)
}

func TestSummarize_EdgeCases(t *testing.T) {
	empty := Summarize("r", nil)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.Accuracy)
	assert.Zero(t, empty.MeanConfidence)

	single := Summarize("r", []*Result{{Method: "standard", Confidence: 75, Correct: true}})
	assert.Equal(t, 75.0, single.MeanConfidence)
	assert.Zero(t, single.StdDevConfidence)
}

func TestLabelFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"frames/MH12AB1234_dusk.jpg", "MH-12-AB-1234"},
		{"/tmp/ka01ab1234.png", "KA-01-AB-1234"},
		{"22BH1234AA.webp", "22BH1234AA"},
		{"_unlabelled.png", ""},
		{"---.png", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, LabelFromPath(tt.path))
		})
	}
}

func writeFrame(t *testing.T, dir, name string, img *raster.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data, err := raster.EncodePNG(img)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestHarness_Run(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	dir := t.TempDir()

	frame := testutil.NoiseImage(48, 16, 3)
	good := writeFrame(t, dir, "MH12AB1234_day.png", frame)
	wrong := writeFrame(t, dir, "KA01AB1234.png", frame)
	broken := filepath.Join(dir, "DL01C1234.png")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o644))

	rec := recognize.Func(func(ctx context.Context, img *raster.Image, opts recognize.Options) (recognize.Result, error) {
		return recognize.Result{Text: "MH12AB1234", Confidence: 80}, nil
	})
	p := pipeline.New(rec)
	p.Logger = zerolog.Nop()

	var seen []string
	h := &Harness{
		Pipeline: p,
		Store:    s,
		Settings: preprocess.DefaultSettings(),
		Observe:  func(r *Result) { seen = append(seen, r.ImagePath) },
	}
	runID, err := h.Run(ctx, &Run{Version: "test"}, []string{good, wrong, broken})
	require.NoError(t, err)
	assert.Equal(t, []string{good, wrong, broken}, seen)

	results, err := s.Results(ctx, runID)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Correct)
	assert.Equal(t, "MH-12-AB-1234", results[0].Got)
	assert.Equal(t, "standard", results[0].Method)
	assert.NotEmpty(t, results[0].CandidatesJSON)

	assert.False(t, results[1].Correct)
	assert.Equal(t, "KA-01-AB-1234", results[1].Expected)

	assert.NotEmpty(t, results[2].Error)
	assert.False(t, results[2].Correct)

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.NotZero(t, run.FinishedNS)

	sum, err := s.Summarize(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Correct)
	assert.Equal(t, 1, sum.Failed)
}

func TestHarness_NoPlateRecordsAttempts(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	path := writeFrame(t, t.TempDir(), "MH12AB1234.png", testutil.NoiseImage(32, 12, 9))

	rec := recognize.Func(func(ctx context.Context, img *raster.Image, opts recognize.Options) (recognize.Result, error) {
		return recognize.Result{Text: "??", Confidence: 10}, nil
	})
	p := pipeline.New(rec)
	p.Logger = zerolog.Nop()

	runID, err := (&Harness{Pipeline: p, Store: s, Settings: preprocess.DefaultSettings()}).
		Run(ctx, &Run{}, []string{path})
	require.NoError(t, err)

	results, err := s.Results(ctx, runID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "could not detect plate")
	assert.NotEmpty(t, results[0].CandidatesJSON)
}

func TestHarness_Cancelled(t *testing.T) {
	s, _ := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := pipeline.New(recognize.Func(func(context.Context, *raster.Image, recognize.Options) (recognize.Result, error) {
		return recognize.Result{}, nil
	}))
	_, err := (&Harness{Pipeline: p, Store: s}).Run(ctx, &Run{}, []string{"a.png"})
	assert.Error(t, err)
}
