package imaging

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// MaskAlphaCutoff is the highest mask alpha that still marks a pixel as editable.
// Alpha values strictly above the cutoff mark the pixel as preserved.
const MaskAlphaCutoff = 127

// Preserved reports whether a mask alpha value marks its pixel as "must preserve".
//
// Every component that reads a mask goes through this predicate so the
// convention cannot drift between drift scoring and compositing.
func Preserved(alpha uint8) bool {
	return alpha > MaskAlphaCutoff
}

// Raster is an owned, tightly packed RGBA pixel buffer.
//
// Pix holds Width*Height*4 bytes of straight (non-premultiplied) RGBA in
// row-major order with no row padding. The channel c of pixel (x, y) lives at
// Pix[(y*Width+x)*4+c].
//
// Rasters are treated as values: operations in this module read their inputs
// and return newly allocated rasters rather than mutating in place.
type Raster struct {
	Pix    []uint8
	Width  int
	Height int
}

// NewRaster allocates a zeroed (fully transparent black) raster.
func NewRaster(width, height int) *Raster {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Raster{
		Pix:    make([]uint8, width*height*4),
		Width:  width,
		Height: height,
	}
}

// NewFilledRaster allocates a raster with every pixel set to c.
func NewFilledRaster(width, height int, c color.NRGBA) *Raster {
	r := NewRaster(width, height)
	for i := 0; i < len(r.Pix); i += 4 {
		r.Pix[i+0] = c.R
		r.Pix[i+1] = c.G
		r.Pix[i+2] = c.B
		r.Pix[i+3] = c.A
	}
	return r
}

// FromImage copies any image.Image into a Raster.
//
// The conversion goes through imaging.Clone, which yields straight-alpha NRGBA
// pixels with the bounds translated to the origin.
func FromImage(img image.Image) *Raster {
	return fromNRGBA(imaging.Clone(img))
}

// fromNRGBA adopts an origin-based NRGBA image. The pixel slice is shared when
// the stride is already tight, otherwise rows are compacted into a new slice.
func fromNRGBA(img *image.NRGBA) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if b.Min == (image.Point{}) && img.Stride == w*4 && len(img.Pix) == w*h*4 {
		return &Raster{Pix: img.Pix, Width: w, Height: h}
	}
	r := NewRaster(w, h)
	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(r.Pix[y*w*4:(y+1)*w*4], src[:w*4])
	}
	return r
}

// Image returns a zero-copy *image.NRGBA view of the raster.
//
// Writes through the view are visible in the raster. Callers that hand the
// view to other packages must not mutate it.
func (r *Raster) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    r.Pix,
		Stride: r.Width * 4,
		Rect:   image.Rect(0, 0, r.Width, r.Height),
	}
}

// Bounds returns the raster rectangle anchored at the origin.
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// Len returns the number of pixels in the raster.
func (r *Raster) Len() int {
	return r.Width * r.Height
}

// Clone returns a deep copy of the raster.
func (r *Raster) Clone() *Raster {
	pix := make([]uint8, len(r.Pix))
	copy(pix, r.Pix)
	return &Raster{Pix: pix, Width: r.Width, Height: r.Height}
}

// At returns the pixel at (x, y). Coordinates outside the raster return the zero color.
func (r *Raster) At(x, y int) color.NRGBA {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return color.NRGBA{}
	}
	i := (y*r.Width + x) * 4
	return color.NRGBA{R: r.Pix[i], G: r.Pix[i+1], B: r.Pix[i+2], A: r.Pix[i+3]}
}

// Set writes the pixel at (x, y). Coordinates outside the raster are ignored.
func (r *Raster) Set(x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return
	}
	i := (y*r.Width + x) * 4
	r.Pix[i+0] = c.R
	r.Pix[i+1] = c.G
	r.Pix[i+2] = c.B
	r.Pix[i+3] = c.A
}

// Alpha returns the alpha channel of pixel index i (row-major).
func (r *Raster) Alpha(i int) uint8 {
	return r.Pix[i*4+3]
}

// SameSize verifies that every raster shares the dimensions of the first one.
//
// Per-pixel comparisons assume equal sizes; unequal buffers are a precondition
// violation and are reported as *DimensionMismatchError instead of being
// silently truncated.
func SameSize(rasters ...*Raster) error {
	if len(rasters) == 0 {
		return nil
	}
	ref := rasters[0]
	if ref == nil {
		return &DimensionMismatchError{Index: 0}
	}
	for i, r := range rasters[1:] {
		if r == nil {
			return &DimensionMismatchError{Index: i + 1, WantWidth: ref.Width, WantHeight: ref.Height}
		}
		if r.Width != ref.Width || r.Height != ref.Height || len(r.Pix) != len(ref.Pix) {
			return &DimensionMismatchError{
				Index:      i + 1,
				WantWidth:  ref.Width,
				WantHeight: ref.Height,
				GotWidth:   r.Width,
				GotHeight:  r.Height,
			}
		}
	}
	return nil
}
