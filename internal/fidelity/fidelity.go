// Package fidelity wires the pixel components into the operations a caller
// actually runs: suggest a mask, verify a generated candidate, and drive one
// full generate-and-verify cycle against an external generator.
//
// Every dependency is passed in through Options; there is no package-level
// state. A Service is safe for concurrent use because the components it holds
// are stateless.
package fidelity

import (
	"fmt"
	"log/slog"

	"github.com/ironsheep/image-fidelity-mcp/internal/composite"
	"github.com/ironsheep/image-fidelity-mcp/internal/drift"
	"github.com/ironsheep/image-fidelity-mcp/internal/heatmap"
	"github.com/ironsheep/image-fidelity-mcp/internal/imaging"
	"github.com/ironsheep/image-fidelity-mcp/internal/masks"
)

// Options holds the components a Service uses. Nil fields get serial
// defaults; a nil Logger uses slog.Default().
type Options struct {
	Drift       *drift.Engine
	Heatmap     *heatmap.Renderer
	Compositor  *composite.Compositor
	Synthesizer *masks.Synthesizer
	Logger      *slog.Logger
}

// Service runs fidelity operations.
type Service struct {
	drift       *drift.Engine
	heatmap     *heatmap.Renderer
	compositor  *composite.Compositor
	synthesizer *masks.Synthesizer
	logger      *slog.Logger
}

// New builds a Service from explicit components.
func New(o Options) *Service {
	s := &Service{
		drift:       o.Drift,
		heatmap:     o.Heatmap,
		compositor:  o.Compositor,
		synthesizer: o.Synthesizer,
		logger:      o.Logger,
	}
	if s.drift == nil {
		s.drift = &drift.Engine{}
	}
	if s.heatmap == nil {
		s.heatmap = &heatmap.Renderer{}
	}
	if s.compositor == nil {
		s.compositor = &composite.Compositor{}
	}
	if s.synthesizer == nil {
		s.synthesizer = masks.NewSynthesizer(masks.DefaultOptions())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Synthesizer returns the mask synthesizer in use.
func (s *Service) Synthesizer() *masks.Synthesizer {
	return s.synthesizer
}

// MaskSuggestion is a synthesized mask for a base image.
type MaskSuggestion struct {
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	Regions         []masks.Region `json:"regions"`
	CoveragePercent float64        `json:"coverage_percent"`

	// Mask is the rasterized mask; MaskPNG is its PNG encoding.
	Mask    *imaging.Raster `json:"-"`
	MaskPNG []byte          `json:"-"`
}

// SuggestMask decodes base for its dimensions and synthesizes a mask from
// detections using the service's synthesizer.
func (s *Service) SuggestMask(base []byte, detections []masks.Detection) (*MaskSuggestion, error) {
	img, err := imaging.DecodeNamed("base", base)
	if err != nil {
		return nil, err
	}
	return s.SuggestMaskFor(img.Width, img.Height, detections, s.synthesizer)
}

// SuggestMaskFor synthesizes a width x height mask with the given synthesizer.
// A nil synthesizer uses the service's own.
func (s *Service) SuggestMaskFor(width, height int, detections []masks.Detection, syn *masks.Synthesizer) (*MaskSuggestion, error) {
	if syn == nil {
		syn = s.synthesizer
	}
	res, err := syn.Synthesize(detections, width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize mask: %w", err)
	}
	png, err := imaging.Encode(res.Mask)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("mask synthesized",
		"width", width,
		"height", height,
		"detections", len(detections),
		"regions", len(res.Regions),
		"coverage_percent", res.CoveragePercent,
		"merge", syn.Options.MergeOverlapping)

	return &MaskSuggestion{
		Width:           width,
		Height:          height,
		Regions:         res.Regions,
		CoveragePercent: res.CoveragePercent,
		Mask:            res.Mask,
		MaskPNG:         png,
	}, nil
}

// Verification is the full outcome of checking one candidate against its base.
type Verification struct {
	Drift  *drift.Result `json:"drift"`
	Width  int           `json:"width"`
	Height int           `json:"height"`

	// CandidateResampled and MaskResampled report whether the input had to be
	// scaled to the base size before comparison.
	CandidateResampled bool `json:"candidate_resampled"`
	MaskResampled      bool `json:"mask_resampled"`

	Heatmap   *imaging.Raster `json:"-"`
	Overlay   *imaging.Raster `json:"-"`
	Composite *imaging.Raster `json:"-"`

	// PNG encodings, filled by Verify.
	HeatmapPNG   []byte `json:"-"`
	OverlayPNG   []byte `json:"-"`
	CompositePNG []byte `json:"-"`
}

// Verify decodes the three buffers, verifies them and PNG-encodes the
// heatmap, overlay and composite.
//
// A corrupt buffer yields an *imaging.DecodeError naming which input failed.
func (s *Service) Verify(base, candidate, mask []byte) (*Verification, error) {
	b, err := imaging.DecodeNamed("base", base)
	if err != nil {
		return nil, err
	}
	c, err := imaging.DecodeNamed("candidate", candidate)
	if err != nil {
		return nil, err
	}
	m, err := imaging.DecodeNamed("mask", mask)
	if err != nil {
		return nil, err
	}

	v, err := s.VerifyRasters(b, c, m)
	if err != nil {
		return nil, err
	}
	if err := v.encode(); err != nil {
		return nil, err
	}
	return v, nil
}

// Inputs is a base raster with candidate and mask conformed to its size.
type Inputs struct {
	Base      *imaging.Raster
	Candidate *imaging.Raster
	Mask      *imaging.Raster

	CandidateResampled bool
	MaskResampled      bool
}

// Conform resamples candidate and mask to the base size when they differ.
//
// The candidate uses the quality kernel and the mask the nearest kernel, so
// the mask keeps hard edges and no ambiguous alpha values appear.
func Conform(base, candidate, mask *imaging.Raster) (*Inputs, error) {
	c, err := imaging.Conform(candidate, base.Width, base.Height, imaging.KernelQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to conform candidate: %w", err)
	}
	m, err := imaging.Conform(mask, base.Width, base.Height, imaging.KernelNearest)
	if err != nil {
		return nil, fmt.Errorf("failed to conform mask: %w", err)
	}
	return &Inputs{
		Base:               base,
		Candidate:          c,
		Mask:               m,
		CandidateResampled: c != candidate,
		MaskResampled:      m != mask,
	}, nil
}

// Drift scores conformed inputs.
func (s *Service) Drift(in *Inputs) (*drift.Result, error) {
	return s.drift.Compute(in.Base, in.Candidate, in.Mask)
}

// Heatmap renders a drift result on its own, or over the candidate when
// overlay is set.
func (s *Service) Heatmap(res *drift.Result, in *Inputs, overlay bool) (*imaging.Raster, error) {
	if !overlay {
		return s.heatmap.Render(res.DiffMap), nil
	}
	out, err := s.heatmap.Overlay(res.DiffMap, in.Candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to render overlay: %w", err)
	}
	return out, nil
}

// Composite restores every preserved pixel of the base into the candidate.
func (s *Service) Composite(in *Inputs) (*imaging.Raster, error) {
	return s.compositor.Apply(in.Base, in.Candidate, in.Mask)
}

// VerifyRasters conforms candidate and mask to the base size, then computes
// drift, heatmap, overlay and composite.
func (s *Service) VerifyRasters(base, candidate, mask *imaging.Raster) (*Verification, error) {
	in, err := Conform(base, candidate, mask)
	if err != nil {
		return nil, err
	}
	return s.VerifyInputs(in)
}

// VerifyInputs computes drift, heatmap, overlay and composite for inputs that
// are already conformed.
func (s *Service) VerifyInputs(in *Inputs) (*Verification, error) {
	res, err := s.Drift(in)
	if err != nil {
		return nil, err
	}
	heat, err := s.Heatmap(res, in, false)
	if err != nil {
		return nil, err
	}
	overlay, err := s.Heatmap(res, in, true)
	if err != nil {
		return nil, err
	}
	comp, err := s.Composite(in)
	if err != nil {
		return nil, err
	}

	v := &Verification{
		Drift:              res,
		Width:              in.Base.Width,
		Height:             in.Base.Height,
		CandidateResampled: in.CandidateResampled,
		MaskResampled:      in.MaskResampled,
		Heatmap:            heat,
		Overlay:            overlay,
		Composite:          comp,
	}

	s.logger.Info("drift computed",
		"width", v.Width,
		"height", v.Height,
		"score", res.Score,
		"status", res.Status.String(),
		"changed_pixels", res.ChangedPixels,
		"considered_pixels", res.TotalConsideredPixels,
		"candidate_resampled", v.CandidateResampled,
		"mask_resampled", v.MaskResampled)

	return v, nil
}

func (v *Verification) encode() error {
	var err error
	if v.HeatmapPNG, err = imaging.Encode(v.Heatmap); err != nil {
		return fmt.Errorf("heatmap: %w", err)
	}
	if v.OverlayPNG, err = imaging.Encode(v.Overlay); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	if v.CompositePNG, err = imaging.Encode(v.Composite); err != nil {
		return fmt.Errorf("composite: %w", err)
	}
	return nil
}
