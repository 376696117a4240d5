package masks

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/ironsheep/image-fidelity-mcp/internal/imaging"
)

var preserveColor = color.NRGBA{R: 0, G: 0, B: 0, A: 255}

// Result is a synthesized mask with the regions it was drawn from.
type Result struct {
	Mask            *imaging.Raster `json:"-"`
	Regions         []Region        `json:"regions"`
	CoveragePercent float64         `json:"coverage_percent"`
}

// Synthesizer turns detected text boxes into an editable-region mask.
type Synthesizer struct {
	Options Options
}

// NewSynthesizer returns a synthesizer using the given options.
func NewSynthesizer(o Options) *Synthesizer {
	return &Synthesizer{Options: o}
}

// Regions denormalizes, pads and clamps each detection into a pixel Region.
//
// Without MergeOverlapping there is exactly one region per detection, in
// detection order, even when a region has zero area. When it is set the padded
// regions are merged before they are returned. The returned slice is never nil.
func (s *Synthesizer) Regions(detections []Detection, width, height int) ([]Region, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("mask dimensions must be positive, got %dx%d", width, height)
	}

	regions := make([]Region, 0, len(detections))
	for i, d := range detections {
		box, err := Sanitize(d.Box)
		if err != nil {
			var boxErr *InvalidBoundingBoxError
			if errors.As(err, &boxErr) {
				boxErr.Index = i
			}
			return nil, err
		}
		regions = append(regions, PadRegion(box, d.Label, width, height, s.Options))
	}

	if s.Options.MergeOverlapping {
		regions = MergeRegions(regions, s.Options.MergeTolerance)
	}
	return regions, nil
}

// Synthesize builds the full mask for a width x height image.
//
// No detections give an all-preserve mask with zero coverage.
func (s *Synthesizer) Synthesize(detections []Detection, width, height int) (*Result, error) {
	regions, err := s.Regions(detections, width, height)
	if err != nil {
		return nil, err
	}
	return &Result{
		Mask:            Rasterize(regions, width, height),
		Regions:         regions,
		CoveragePercent: Coverage(regions, width, height),
	}, nil
}
