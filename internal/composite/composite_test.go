package composite

import (
	"errors"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-fidelity-mcp/internal/drift"
	"github.com/ironsheep/image-fidelity-mcp/internal/imaging"
)

func noise(rng *rand.Rand, w, h int) *imaging.Raster {
	r := imaging.NewRaster(w, h)
	rng.Read(r.Pix)
	return r
}

func TestApply_SelectsBySourceMask(t *testing.T) {
	base := imaging.NewFilledRaster(2, 2, color.NRGBA{10, 20, 30, 255})
	candidate := imaging.NewFilledRaster(2, 2, color.NRGBA{200, 210, 220, 128})
	mask := imaging.NewRaster(2, 2)
	mask.Set(0, 0, color.NRGBA{0, 0, 0, 255})
	mask.Set(1, 0, color.NRGBA{0, 0, 0, 128})
	mask.Set(0, 1, color.NRGBA{0, 0, 0, 127})
	mask.Set(1, 1, color.NRGBA{0, 0, 0, 0})

	out, err := Apply(base, candidate, mask)
	require.NoError(t, err)

	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{0, 0, color.NRGBA{10, 20, 30, 255}},
		{1, 0, color.NRGBA{10, 20, 30, 255}},
		{0, 1, color.NRGBA{200, 210, 220, 128}},
		{1, 1, color.NRGBA{200, 210, 220, 128}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, out.At(tt.x, tt.y), "(%d,%d)", tt.x, tt.y)
	}
}

func TestApply_DoesNotModifyInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base, candidate, mask := noise(rng, 8, 8), noise(rng, 8, 8), noise(rng, 8, 8)
	b, c, m := base.Clone(), candidate.Clone(), mask.Clone()

	out, err := Apply(base, candidate, mask)
	require.NoError(t, err)
	out.Pix[0] ^= 0xFF

	assert.Equal(t, b.Pix, base.Pix)
	assert.Equal(t, c.Pix, candidate.Pix)
	assert.Equal(t, m.Pix, mask.Pix)
}

func TestApply_DimensionMismatch(t *testing.T) {
	_, err := Apply(imaging.NewRaster(4, 4), imaging.NewRaster(4, 4), imaging.NewRaster(4, 5))
	require.Error(t, err)

	var dimErr *imaging.DimensionMismatchError
	assert.True(t, errors.As(err, &dimErr))
}

func TestApply_CompositeHasZeroDrift(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 25; trial++ {
		w, h := 1+rng.Intn(40), 1+rng.Intn(40)
		base, candidate, mask := noise(rng, w, h), noise(rng, w, h), noise(rng, w, h)

		out, err := Apply(base, candidate, mask)
		require.NoError(t, err)

		res, err := drift.Compute(base, out, mask)
		require.NoError(t, err)
		require.Equal(t, 0.0, res.Score, "trial %d (%dx%d)", trial, w, h)
		require.Equal(t, drift.Pass, res.Status)
	}
}

func TestCompositor_ParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base, candidate, mask := noise(rng, 97, 61), noise(rng, 97, 61), noise(rng, 97, 61)

	serial, err := NewCompositor(false).Apply(base, candidate, mask)
	require.NoError(t, err)
	par, err := NewCompositor(true).Apply(base, candidate, mask)
	require.NoError(t, err)

	assert.Equal(t, serial.Pix, par.Pix)
}
