package drift

import (
	"encoding/json"
	"errors"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-fidelity-mcp/internal/imaging"
)

var (
	preserve = color.NRGBA{0, 0, 0, 255}
	editable = color.NRGBA{0, 0, 0, 0}
)

func solid(w, h int, c color.NRGBA) *imaging.Raster {
	return imaging.NewFilledRaster(w, h, c)
}

func noise(seed int64, w, h int) *imaging.Raster {
	r := imaging.NewRaster(w, h)
	rand.New(rand.NewSource(seed)).Read(r.Pix)
	return r
}

// randomMask mixes preserve, editable and boundary alpha values.
func randomMask(seed int64, w, h int) *imaging.Raster {
	rng := rand.New(rand.NewSource(seed))
	m := imaging.NewRaster(w, h)
	alphas := []uint8{0, 127, 128, 255, uint8(rng.Intn(256))}
	for i := 0; i < m.Len(); i++ {
		m.Pix[i*4+3] = alphas[rng.Intn(len(alphas))]
	}
	return m
}

// withChangedPixels returns a copy of base where the first n pixels are inverted
// to white, well past the change threshold.
func withChangedPixels(base *imaging.Raster, n int) *imaging.Raster {
	out := base.Clone()
	for i := 0; i < n; i++ {
		out.Pix[i*4+0] = 255
		out.Pix[i*4+1] = 255
		out.Pix[i*4+2] = 255
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  Status
	}{
		{0, Pass},
		{1.99, Pass},
		{2.0, Pass},
		{2.0001, Warn},
		{4.5, Warn},
		{5.0, Warn},
		{5.0001, Fail},
		{100, Fail},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "score %v", tt.score)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	prev := Classify(0)
	for s := 0.0; s <= 100; s += 0.01 {
		cur := Classify(s)
		require.GreaterOrEqual(t, int(cur), int(prev), "status decreased at score %v", s)
		prev = cur
	}
}

func TestCompute_IdentityIsZero(t *testing.T) {
	base := noise(7, 40, 30)
	masks := map[string]*imaging.Raster{
		"all preserve": solid(40, 30, preserve),
		"all editable": solid(40, 30, editable),
		"random":       randomMask(8, 40, 30),
	}

	for name, mask := range masks {
		t.Run(name, func(t *testing.T) {
			res, err := Compute(base, base, mask)
			require.NoError(t, err)
			assert.Equal(t, 0.0, res.Score)
			assert.Equal(t, Pass, res.Status)
			assert.Zero(t, res.ChangedPixels)
			assert.Zero(t, res.DiffMap.Max())
		})
	}
}

func TestCompute_FullEditMaskConsidersNothing(t *testing.T) {
	base := solid(20, 20, color.NRGBA{0, 0, 0, 255})
	candidate := solid(20, 20, color.NRGBA{255, 255, 255, 255})

	res, err := Compute(base, candidate, solid(20, 20, editable))
	require.NoError(t, err)

	assert.Zero(t, res.TotalConsideredPixels)
	assert.Zero(t, res.ChangedPixels)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, Pass, res.Status)
	assert.Zero(t, res.DiffMap.Max(), "editable pixels must stay zero in the diff map")
}

func TestCompute_ThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		changed int
		score   float64
		status  Status
	}{
		{"exactly 2.0 percent", 100, 100, 200, 2.0, Pass},
		{"2.0001 percent", 1000, 1000, 20001, 2.0001, Warn},
		{"exactly 5.0 percent", 1000, 1000, 50000, 5.0, Warn},
		{"5.0001 percent", 1000, 1000, 50001, 5.0001, Fail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := solid(tt.w, tt.h, color.NRGBA{0, 0, 0, 255})
			candidate := withChangedPixels(base, tt.changed)
			mask := solid(tt.w, tt.h, preserve)

			res, err := Compute(base, candidate, mask)
			require.NoError(t, err)

			assert.Equal(t, uint64(tt.changed), res.ChangedPixels)
			assert.Equal(t, uint64(tt.w*tt.h), res.TotalConsideredPixels)
			assert.InDelta(t, tt.score, res.Score, 1e-12)
			assert.Equal(t, tt.status, res.Status)
		})
	}
}

func TestCompute_ChangeThresholdIsStrict(t *testing.T) {
	base := solid(3, 1, color.NRGBA{100, 100, 100, 255})
	candidate := base.Clone()
	// pixel 0: channel sum 30 -> avgDiff exactly 10, not changed
	candidate.Set(0, 0, color.NRGBA{110, 110, 110, 255})
	// pixel 1: channel sum 31 -> avgDiff 10.33, changed
	candidate.Set(1, 0, color.NRGBA{111, 110, 110, 255})
	// pixel 2: alpha differs only, not compared
	candidate.Set(2, 0, color.NRGBA{100, 100, 100, 0})

	res, err := Compute(base, candidate, solid(3, 1, preserve))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.ChangedPixels)
	assert.Equal(t, uint64(3), res.TotalConsideredPixels)
	assert.Equal(t, uint8(20), res.DiffMap.At(0, 0))
	assert.Equal(t, uint8(21), res.DiffMap.At(1, 0))
	assert.Equal(t, uint8(0), res.DiffMap.At(2, 0))
}

func TestCompute_AmplificationIsVisualOnly(t *testing.T) {
	// avgDiff 6 is amplified to 12 in the map, which is above ChangeThreshold,
	// but must not count as changed.
	base := solid(10, 10, color.NRGBA{50, 50, 50, 255})
	candidate := solid(10, 10, color.NRGBA{56, 56, 56, 255})

	res, err := Compute(base, candidate, solid(10, 10, preserve))
	require.NoError(t, err)

	assert.Zero(t, res.ChangedPixels)
	assert.Equal(t, Pass, res.Status)
	assert.Equal(t, uint8(12), res.DiffMap.At(5, 5))
}

func TestCompute_DiffMapClampsAt255(t *testing.T) {
	base := solid(2, 2, color.NRGBA{0, 0, 0, 255})
	candidate := solid(2, 2, color.NRGBA{255, 255, 255, 255})

	res, err := Compute(base, candidate, solid(2, 2, preserve))
	require.NoError(t, err)
	assert.Equal(t, uint8(255), res.DiffMap.Max())
	assert.Equal(t, 100.0, res.Score)
	assert.Equal(t, Fail, res.Status)
}

func TestCompute_MaskBoundaryAlpha(t *testing.T) {
	base := solid(2, 1, color.NRGBA{0, 0, 0, 255})
	candidate := solid(2, 1, color.NRGBA{255, 255, 255, 255})
	mask := imaging.NewRaster(2, 1)
	mask.Set(0, 0, color.NRGBA{0, 0, 0, 127}) // editable
	mask.Set(1, 0, color.NRGBA{0, 0, 0, 128}) // preserved

	res, err := Compute(base, candidate, mask)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.TotalConsideredPixels)
	assert.Equal(t, uint8(0), res.DiffMap.At(0, 0))
	assert.Equal(t, uint8(255), res.DiffMap.At(1, 0))
}

func TestCompute_DimensionMismatch(t *testing.T) {
	_, err := Compute(solid(10, 10, preserve), solid(10, 11, preserve), solid(10, 10, preserve))
	require.Error(t, err)

	var dimErr *imaging.DimensionMismatchError
	assert.True(t, errors.As(err, &dimErr))
}

func TestEngine_ParallelMatchesSerial(t *testing.T) {
	base := noise(11, 123, 77)
	candidate := noise(12, 123, 77)
	mask := randomMask(13, 123, 77)

	serial, err := NewEngine(false).Compute(base, candidate, mask)
	require.NoError(t, err)
	par, err := NewEngine(true).Compute(base, candidate, mask)
	require.NoError(t, err)

	assert.Equal(t, serial.ChangedPixels, par.ChangedPixels)
	assert.Equal(t, serial.TotalConsideredPixels, par.TotalConsideredPixels)
	assert.Equal(t, serial.Score, par.Score)
	assert.Equal(t, serial.DiffMap.Pix, par.DiffMap.Pix)
}

func TestStatus_Text(t *testing.T) {
	for _, s := range []Status{Pending, Pass, Warn, Fail} {
		b, err := s.MarshalText()
		require.NoError(t, err)

		var back Status
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}

	var s Status
	assert.Error(t, s.UnmarshalText([]byte("great")))
	assert.Equal(t, "status(9)", Status(9).String())
}

func TestResult_JSON(t *testing.T) {
	// 200001 of 10000000 is just above the pass limit; the encoded score must
	// not round back down to 2 while the status says warn.
	res := newResult(200001, 10000000, nil)
	require.Equal(t, Warn, res.Status)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":2.00001,"status":"warn","changed_pixels":200001,"total_considered_pixels":10000000}`, string(b))

	var decoded Result
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Greater(t, decoded.Score, PassThreshold)
	assert.Equal(t, Classify(decoded.Score), decoded.Status)
}
