package masks

import (
	"fmt"
	"math"
	"strings"

	"github.com/ironsheep/image-fidelity-mcp/internal/imaging"
)

// NormalizedBox is a bounding box relative to image size, each field in [0,1].
type NormalizedBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one text region reported by an external detector.
type Detection struct {
	// Label is the detected text. It is carried through for diagnostics only.
	Label string        `json:"label"`
	Box   NormalizedBox `json:"box"`
}

// Region is an editable rectangle in pixel coordinates.
//
// (X, Y) is the top-left corner (inclusive); the rectangle spans Width x Height
// pixels. Padding records how many pixels were added on each side before
// clamping to the image.
type Region struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Padding int    `json:"padding"`
	Label   string `json:"label"`
}

// Area returns Width*Height.
func (r Region) Area() int {
	return r.Width * r.Height
}

// Right returns the exclusive right edge.
func (r Region) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge.
func (r Region) Bottom() int { return r.Y + r.Height }

// Options controls padding and merging.
type Options struct {
	// PaddingPercent is the padding as a percentage of the box's mean side length.
	PaddingPercent float64 `json:"padding_percent" yaml:"padding_percent"`

	// MinPadding and MaxPadding clamp the computed padding, in pixels.
	MinPadding int `json:"min_padding" yaml:"min_padding"`
	MaxPadding int `json:"max_padding" yaml:"max_padding"`

	// MergeOverlapping fuses padded regions that overlap or nearly touch.
	// Off by default: separate cards or notes on one image must stay separate.
	// Dense paragraph layouts are the case it exists for.
	MergeOverlapping bool `json:"merge_overlapping" yaml:"merge_overlapping"`

	// MergeTolerance is the gap in pixels still treated as touching.
	MergeTolerance int `json:"merge_tolerance" yaml:"merge_tolerance"`
}

// DefaultOptions returns 10% padding clamped to [5, 50] px, merging disabled,
// 2 px merge tolerance.
func DefaultOptions() Options {
	return Options{
		PaddingPercent:   10,
		MinPadding:       5,
		MaxPadding:       50,
		MergeOverlapping: false,
		MergeTolerance:   2,
	}
}

// Validate rejects option sets that cannot produce a sensible mask.
func (o Options) Validate() error {
	if o.PaddingPercent < 0 || math.IsNaN(o.PaddingPercent) {
		return fmt.Errorf("padding percent must be >= 0, got %v", o.PaddingPercent)
	}
	if o.MinPadding < 0 || o.MaxPadding < 0 {
		return fmt.Errorf("padding bounds must be >= 0, got min=%d max=%d", o.MinPadding, o.MaxPadding)
	}
	if o.MinPadding > o.MaxPadding {
		return fmt.Errorf("min padding %d exceeds max padding %d", o.MinPadding, o.MaxPadding)
	}
	if o.MergeTolerance < 0 {
		return fmt.Errorf("merge tolerance must be >= 0, got %d", o.MergeTolerance)
	}
	return nil
}

// InvalidBoundingBoxError reports a box that is still outside [0,1] after
// clamping. Sanitize clamps first, so seeing it indicates non-finite input.
type InvalidBoundingBoxError struct {
	Index int
	Box   NormalizedBox
}

func (e *InvalidBoundingBoxError) Error() string {
	return fmt.Sprintf("invalid bounding box %d: x=%v y=%v w=%v h=%v",
		e.Index, e.Box.X, e.Box.Y, e.Box.Width, e.Box.Height)
}

// Sanitize clamps an untrusted box into the unit square.
//
// Each coordinate is clamped to [0,1], then width and height are shortened so
// the box does not extend past the right or bottom edge.
func Sanitize(b NormalizedBox) (NormalizedBox, error) {
	out := NormalizedBox{
		X:      clampUnit(b.X),
		Y:      clampUnit(b.Y),
		Width:  clampUnit(b.Width),
		Height: clampUnit(b.Height),
	}
	out.Width = math.Min(out.Width, 1-out.X)
	out.Height = math.Min(out.Height, 1-out.Y)

	if !inUnit(out.X) || !inUnit(out.Y) || !inUnit(out.Width) || !inUnit(out.Height) {
		return out, &InvalidBoundingBoxError{Box: b}
	}
	return out, nil
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// inUnit is false for NaN.
func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// AdaptivePadding returns clamp(round(mean(w,h) * pct/100), min, max).
func AdaptivePadding(width, height int, o Options) int {
	avg := float64(width+height) / 2
	pad := int(math.Round(avg * o.PaddingPercent / 100))
	if pad < o.MinPadding {
		pad = o.MinPadding
	}
	if pad > o.MaxPadding {
		pad = o.MaxPadding
	}
	return pad
}

// PadRegion converts a sanitized box to pixels, pads it on all sides and clamps
// the result to [0,width) x [0,height).
func PadRegion(b NormalizedBox, label string, width, height int, o Options) Region {
	x := int(math.Round(b.X * float64(width)))
	y := int(math.Round(b.Y * float64(height)))
	w := int(math.Round(b.Width * float64(width)))
	h := int(math.Round(b.Height * float64(height)))

	pad := AdaptivePadding(w, h, o)

	x0 := maxInt(0, x-pad)
	y0 := maxInt(0, y-pad)
	x1 := minInt(width, x+w+pad)
	y1 := minInt(height, y+h+pad)

	return Region{
		X:       x0,
		Y:       y0,
		Width:   maxInt(0, x1-x0),
		Height:  maxInt(0, y1-y0),
		Padding: pad,
		Label:   label,
	}
}

// MergeRegions fuses regions whose bounds overlap or lie within tolerance
// pixels of each other on both axes, until no pair qualifies.
//
// A merged region covers the union bounding box, keeps the larger padding and
// joins the labels with a space in input order.
func MergeRegions(regions []Region, tolerance int) []Region {
	merged := make([]Region, len(regions))
	copy(merged, regions)

	for {
		fused := false
		for i := 0; i < len(merged) && !fused; i++ {
			for j := i + 1; j < len(merged); j++ {
				if !regionsTouch(merged[i], merged[j], tolerance) {
					continue
				}
				merged[i] = unionRegion(merged[i], merged[j])
				merged = append(merged[:j], merged[j+1:]...)
				fused = true
				break
			}
		}
		if !fused {
			return merged
		}
	}
}

// regionsTouch checks whether two regions overlap or are within tol pixels
// horizontally and vertically.
func regionsTouch(a, b Region, tol int) bool {
	return a.X <= b.Right()+tol && b.X <= a.Right()+tol &&
		a.Y <= b.Bottom()+tol && b.Y <= a.Bottom()+tol
}

// unionRegion combines two regions into their bounding union.
func unionRegion(a, b Region) Region {
	x0 := minInt(a.X, b.X)
	y0 := minInt(a.Y, b.Y)
	x1 := maxInt(a.Right(), b.Right())
	y1 := maxInt(a.Bottom(), b.Bottom())

	label := a.Label
	switch {
	case label == "":
		label = b.Label
	case b.Label != "":
		label = strings.Join([]string{a.Label, b.Label}, " ")
	}

	return Region{
		X:       x0,
		Y:       y0,
		Width:   x1 - x0,
		Height:  y1 - y0,
		Padding: maxInt(a.Padding, b.Padding),
		Label:   label,
	}
}

// Rasterize draws the regions into a width x height mask.
//
// Every pixel starts as preserve (0,0,0,255); pixels inside any region become
// editable (0,0,0,0). Only whole pixels are written, so edges are hard and no
// alpha value other than 0 and 255 appears.
func Rasterize(regions []Region, width, height int) *imaging.Raster {
	mask := imaging.NewFilledRaster(width, height, preserveColor)
	for _, r := range regions {
		x0, y0 := maxInt(0, r.X), maxInt(0, r.Y)
		x1, y1 := minInt(width, r.Right()), minInt(height, r.Bottom())
		for y := y0; y < y1; y++ {
			row := mask.Pix[(y*width+x0)*4 : (y*width+x1)*4]
			for i := 3; i < len(row); i += 4 {
				row[i] = 0
			}
		}
	}
	return mask
}

// Coverage returns the summed region area as a percentage of the image.
//
// Overlapping regions are counted once each, so with merging disabled the
// figure can exceed the true covered share. It is a diagnostic, not a bound.
func Coverage(regions []Region, width, height int) float64 {
	total := width * height
	if total <= 0 {
		return 0
	}
	sum := 0
	for _, r := range regions {
		sum += r.Area()
	}
	return float64(sum) / float64(total) * 100
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
