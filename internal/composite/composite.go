// Package composite merges a generated candidate back into its base image.
//
// The mask decides per pixel which source wins: preserved pixels (alpha > 127)
// are copied from the base, editable pixels from the candidate. No blending
// happens, so every output pixel is byte-identical to one of its inputs and the
// drift of the result against the base is always zero.
package composite

import (
	"fmt"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/ironsheep/image-fidelity-mcp/internal/imaging"
)

// Compositor applies masks. The zero value runs serially.
type Compositor struct {
	// Parallel processes row ranges concurrently; output is identical.
	Parallel bool
}

// NewCompositor returns a compositor.
func NewCompositor(parallel bool) *Compositor {
	return &Compositor{Parallel: parallel}
}

// Apply returns a new raster combining base and candidate under mask.
//
// All three rasters must share dimensions, otherwise a
// *imaging.DimensionMismatchError is returned. Inputs are not modified.
func (c *Compositor) Apply(base, candidate, mask *imaging.Raster) (*imaging.Raster, error) {
	if err := imaging.SameSize(base, candidate, mask); err != nil {
		return nil, fmt.Errorf("composite: %w", err)
	}

	out := imaging.NewRaster(base.Width, base.Height)
	width := base.Width
	sel := func(start, end int) {
		for i := start * width; i < end*width; i++ {
			o := i * 4
			src := candidate.Pix
			if imaging.Preserved(mask.Pix[o+3]) {
				src = base.Pix
			}
			copy(out.Pix[o:o+4], src[o:o+4])
		}
	}
	if c != nil && c.Parallel {
		parallel.Line(base.Height, sel)
	} else {
		sel(0, base.Height)
	}
	return out, nil
}

// Apply composites with a serial compositor.
func Apply(base, candidate, mask *imaging.Raster) (*imaging.Raster, error) {
	return (&Compositor{}).Apply(base, candidate, mask)
}
