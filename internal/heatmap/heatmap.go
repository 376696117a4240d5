// Package heatmap renders a drift DiffMap as a color-coded image and as an
// overlay on the candidate image.
//
// Each diff byte v maps to a color on a blue -> cyan -> yellow -> red ramp and
// to an alpha that grows with v. Values below NoChangeCutoff are fully
// transparent so unchanged pixels leave the overlay untouched.
package heatmap

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/image-fidelity-mcp/internal/drift"
	imgbuf "github.com/ironsheep/image-fidelity-mcp/internal/imaging"
)

// NoChangeCutoff is the smallest diff value that is drawn at all.
const NoChangeCutoff = 5

// Segment boundaries of the gradient on t = v/255.
const (
	CyanStop   = 0.33
	YellowStop = 0.66
)

var (
	blue   = colorful.Color{R: 0, G: 0, B: 1}
	cyan   = colorful.Color{R: 0, G: 1, B: 1}
	yellow = colorful.Color{R: 1, G: 1, B: 0}
	red    = colorful.Color{R: 1, G: 0, B: 0}
)

// Gradient returns the ramp color at t in [0,1].
//
// The ramp is three independent linear segments, so the color at a segment
// boundary is exactly the shared stop color and the ramp is continuous.
func Gradient(t float64) colorful.Color {
	switch {
	case t <= 0:
		return blue
	case t < CyanStop:
		return blue.BlendRgb(cyan, t/CyanStop)
	case t < YellowStop:
		return cyan.BlendRgb(yellow, (t-CyanStop)/(YellowStop-CyanStop))
	case t < 1:
		return yellow.BlendRgb(red, (t-YellowStop)/(1-YellowStop))
	default:
		return red
	}
}

// Alpha returns the heatmap opacity for a diff value: min(255, 128 + v/2),
// truncated. It is 0 below NoChangeCutoff.
func Alpha(v uint8) uint8 {
	if v < NoChangeCutoff {
		return 0
	}
	return uint8(math.Min(255, 128+float64(v)*0.5))
}

// ColorFor maps one diff value to a straight-alpha heatmap pixel.
func ColorFor(v uint8) color.NRGBA {
	if v < NoChangeCutoff {
		return color.NRGBA{}
	}
	r, g, b := Gradient(float64(v) / 255).RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: Alpha(v)}
}

// palette caches ColorFor for all 256 inputs.
var palette = func() (p [256]color.NRGBA) {
	for v := range p {
		p[v] = ColorFor(uint8(v))
	}
	return p
}()

// Renderer turns DiffMaps into images. The zero value renders serially.
type Renderer struct {
	// Parallel renders row ranges concurrently; output is identical.
	Parallel bool
}

// NewRenderer returns a renderer.
func NewRenderer(parallel bool) *Renderer {
	return &Renderer{Parallel: parallel}
}

// Render produces the standalone heatmap, one pixel per diff value.
func (r *Renderer) Render(d *drift.DiffMap) *imgbuf.Raster {
	out := imgbuf.NewRaster(d.Width, d.Height)
	paint := func(start, end int) {
		for i := start * d.Width; i < end*d.Width; i++ {
			c := palette[d.Pix[i]]
			o := i * 4
			out.Pix[o+0] = c.R
			out.Pix[o+1] = c.G
			out.Pix[o+2] = c.B
			out.Pix[o+3] = c.A
		}
	}
	if r != nil && r.Parallel {
		parallel.Line(d.Height, paint)
	} else {
		paint(0, d.Height)
	}
	return out
}

// Overlay composites the heatmap over the candidate image.
//
// The heatmap is resampled with the quality kernel when its size differs from
// the candidate, then blended with standard "over" compositing at its own
// per-pixel alpha. No additional global opacity is applied.
func (r *Renderer) Overlay(d *drift.DiffMap, candidate *imgbuf.Raster) (*imgbuf.Raster, error) {
	heat, err := imgbuf.Conform(r.Render(d), candidate.Width, candidate.Height, imgbuf.KernelQuality)
	if err != nil {
		return nil, err
	}
	blended := imaging.Overlay(candidate.Image(), heat.Image(), image.Pt(0, 0), 1.0)
	return imgbuf.FromImage(blended), nil
}

// Render renders with a serial renderer.
func Render(d *drift.DiffMap) *imgbuf.Raster {
	return (&Renderer{}).Render(d)
}

// Overlay overlays with a serial renderer.
func Overlay(d *drift.DiffMap, candidate *imgbuf.Raster) (*imgbuf.Raster, error) {
	return (&Renderer{}).Overlay(d, candidate)
}
