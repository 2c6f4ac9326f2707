package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gatepass/internal/raster"
	"github.com/banshee-data/gatepass/internal/testutil"
)

func grayImage(w, h int, v uint8) *raster.Image {
	return raster.Filled(w, h, v, v, v, 255)
}

func TestStandard_Thresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		gray uint8
		want uint8
	}{
		// (150-128)*1.5+128 = 161
		{"above mid", 150, 255},
		// (120-128)*1.5+128 = 116
		{"below mid", 120, 0},
		// exactly 128 is not strictly above the threshold
		{"mid", 128, 0},
		{"white", 255, 255},
		{"black", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ApplyStandard(grayImage(3, 2, tt.gray))
			for i := 0; i < len(out.Pix); i += raster.BytesPerPixel {
				assert.Equal(t, tt.want, out.Pix[i])
				assert.Equal(t, tt.want, out.Pix[i+1])
				assert.Equal(t, tt.want, out.Pix[i+2])
			}
		})
	}
}

func TestVariants_PreserveShapeAndAlpha(t *testing.T) {
	t.Parallel()

	src := testutil.NoiseImage(37, 23, 7)
	for i := 3; i < len(src.Pix); i += raster.BytesPerPixel * 5 {
		src.Pix[i] = 77
	}
	before := src.Clone()

	for _, mode := range LocalModes() {
		t.Run(string(mode), func(t *testing.T) {
			out, err := New().Apply(mode, src)
			require.NoError(t, err)
			assert.Equal(t, src.Width, out.Width)
			assert.Equal(t, src.Height, out.Height)
			require.NoError(t, out.Validate())
			assert.True(t, src.Equal(before), "input was mutated")
			if mode != ModeRotated {
				testutil.AssertBinary(t, out)
				for i := 3; i < len(out.Pix); i += raster.BytesPerPixel {
					require.Equal(t, src.Pix[i], out.Pix[i], "alpha changed at byte %d", i)
				}
			}
		})
	}
}

func TestVariants_Idempotent(t *testing.T) {
	t.Parallel()

	src := testutil.RenderPlate("KL65AN7722", testutil.DefaultPlateOptions())

	std := ApplyStandard(src)
	assert.True(t, std.Equal(ApplyStandard(std)), "standard is not idempotent")

	white := grayImage(20, 10, 255)
	assert.True(t, ApplyAggressive(white).Equal(ApplyAggressive(ApplyAggressive(white))))
}

func TestVariants_RepeatableOnSameInput(t *testing.T) {
	t.Parallel()

	src := Rotate(testutil.NoiseImage(41, 19, 13), 5)
	p := New()
	for _, mode := range LocalModes() {
		t.Run(string(mode), func(t *testing.T) {
			first, err := p.Apply(mode, src)
			require.NoError(t, err)
			second, err := p.Apply(mode, src)
			require.NoError(t, err)
			assert.True(t, first.Equal(second), "%s differs between calls", mode)
		})
	}
}

func TestAggressive_UniformIsWhite(t *testing.T) {
	t.Parallel()

	// A flat frame sharpens to itself and every pixel equals its local mean,
	// which is above mean-offset.
	out := ApplyAggressive(grayImage(9, 9, 90))
	for i := 0; i < len(out.Pix); i += raster.BytesPerPixel {
		require.Equal(t, uint8(255), out.Pix[i])
	}
}

func TestSharpen_BorderCopied(t *testing.T) {
	t.Parallel()

	w, h := 4, 4
	plane := make([]uint8, w*h)
	for i := range plane {
		plane[i] = uint8(i * 10)
	}
	out := Sharpen(plane, w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				assert.Equal(t, plane[i], out[i], "border (%d,%d)", x, y)
			}
		}
	}
	// interior (1,1): 5*50 - 10 - 90 - 40 - 60 = 50
	assert.Equal(t, uint8(50), out[1*w+1])
}

func TestSharpen_Clamps(t *testing.T) {
	t.Parallel()

	plane := []uint8{
		255, 255, 255,
		255, 0, 255,
		255, 255, 255,
	}
	assert.Equal(t, uint8(0), Sharpen(plane, 3, 3)[4])

	plane = []uint8{
		0, 0, 0,
		0, 200, 0,
		0, 0, 0,
	}
	assert.Equal(t, uint8(255), Sharpen(plane, 3, 3)[4])
}

// naiveThreshold sums every window directly.
func naiveThreshold(plane []uint8, w, h, block int, offset float64) []uint8 {
	half := block / 2
	out := make([]uint8, len(plane))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, count int
			for yy := y - half; yy <= y+half; yy++ {
				for xx := x - half; xx <= x+half; xx++ {
					if xx < 0 || yy < 0 || xx >= w || yy >= h {
						continue
					}
					sum += int(plane[yy*w+xx])
					count++
				}
			}
			if float64(plane[y*w+x]) > float64(sum)/float64(count)-offset {
				out[y*w+x] = 255
			}
		}
	}
	return out
}

func TestAdaptiveThreshold_MatchesNaive(t *testing.T) {
	t.Parallel()

	noise := testutil.NoiseImage(41, 19, 3)
	plane := make([]uint8, noise.Width*noise.Height)
	for i := range plane {
		plane[i] = noise.Pix[i*raster.BytesPerPixel]
	}

	for _, block := range []int{3, 7, 15, 51} {
		got := AdaptiveThreshold(plane, noise.Width, noise.Height, block, DefaultOffset)
		want := naiveThreshold(plane, noise.Width, noise.Height, block, DefaultOffset)
		assert.Equal(t, want, got, "block %d", block)
	}
}

func TestRotate_ZeroIsIdentity(t *testing.T) {
	t.Parallel()

	src := testutil.NoiseImage(13, 9, 11)
	assert.True(t, src.Equal(Rotate(src, 0)))
}

func TestRotate_OutOfBoundsIsOpaqueWhite(t *testing.T) {
	t.Parallel()

	src := raster.New(40, 4) // transparent black
	out := Rotate(src, 10)
	o := out.Offset(39, 0)
	assert.Equal(t, []uint8{255, 255, 255, 255}, out.Pix[o:o+4])
}

func TestRotationCorrection_TieReturnsCopy(t *testing.T) {
	t.Parallel()

	// Every rotation of a white frame scores zero, so 0° holds.
	src := grayImage(30, 12, 255)
	out := ApplyRotationCorrection(src)
	require.True(t, src.Equal(out))
	out.Pix[0] = 1
	assert.Equal(t, uint8(255), src.Pix[0], "result must not alias input")
}

func TestRotationCorrection_PicksHighestScore(t *testing.T) {
	t.Parallel()

	src := testutil.RenderPlate("MH12AB1234", testutil.DefaultPlateOptions())
	src = Rotate(src, 5)

	scores := RotationScores(src, DefaultAngles)
	require.Len(t, scores, len(DefaultAngles))

	best := AngleScore{Degrees: 0}
	for _, s := range scores {
		if s.Degrees == 0 {
			best.Score = s.Score
		}
	}
	for _, s := range scores {
		if s.Score > best.Score {
			best = s
		}
	}

	want := Rotate(src, best.Degrees)
	if best.Degrees == 0 {
		want = src
	}
	assert.True(t, want.Equal(ApplyRotationCorrection(src)), "expected rotation by %v", best.Degrees)
}

func TestRotationCorrection_StraightensTiltedStripes(t *testing.T) {
	t.Parallel()

	// Level stripes tilted by 5° score highest when turned back by -5°.
	src := Rotate(testutil.HorizontalStripes(60, 40, 5), 5)

	scores := RotationScores(src, DefaultAngles)
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	require.NotZero(t, best.Degrees)
	assert.Equal(t, -5.0, best.Degrees)
	assert.True(t, Rotate(src, -5).Equal(ApplyRotationCorrection(src)))
}

func TestRotationCorrection_OnlyZeroAngle(t *testing.T) {
	t.Parallel()

	p := New()
	p.Angles = []float64{0}
	src := testutil.NoiseImage(10, 10, 5)
	assert.True(t, src.Equal(p.RotationCorrection(src)))
}

func TestEdgeScore(t *testing.T) {
	t.Parallel()

	assert.Zero(t, EdgeScore(grayImage(5, 5, 40)))
	// 3 rows of transitions between alternating 1-row bands across 4 columns.
	assert.InDelta(t, 3*4*255.0, EdgeScore(testutil.HorizontalStripes(4, 4, 1)), 0.01)
}

func TestApply_RejectsNonLocalModes(t *testing.T) {
	t.Parallel()

	img := grayImage(2, 2, 0)
	_, err := New().Apply(ModeAPI, img)
	assert.Error(t, err)
	_, err = New().Apply(Mode("sepia"), img)
	assert.Error(t, err)
	assert.False(t, Mode("sepia").Valid())
	assert.True(t, ModeAPI.Valid())
}
