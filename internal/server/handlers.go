package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ironsheep/image-fidelity-mcp/internal/drift"
	"github.com/ironsheep/image-fidelity-mcp/internal/fidelity"
	"github.com/ironsheep/image-fidelity-mcp/internal/imaging"
	"github.com/ironsheep/image-fidelity-mcp/internal/masks"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "drift_compute").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// invalidParamsError marks tool arguments that are missing or malformed.
// It is reported with code -32602 rather than as a tool failure.
type invalidParamsError struct {
	err error
}

func (e *invalidParamsError) Error() string { return e.err.Error() }

func (e *invalidParamsError) Unwrap() error { return e.err }

func invalidParams(format string, args ...interface{}) error {
	return &invalidParamsError{err: fmt.Errorf(format, args...)}
}

// decodeArgs unmarshals tool arguments, reporting failures as invalid params.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &invalidParamsError{err: fmt.Errorf("invalid arguments: %w", err)}
	}
	return nil
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Malformed arguments return code -32602; any other tool error returns -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		var ipe *invalidParamsError
		if errors.As(err, &ipe) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, codeToolFailure, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Mask Synthesis
	case "mask_suggest":
		return s.handleMaskSuggest(args)

	// Fidelity Verification
	case "drift_compute":
		return s.handleDriftCompute(args)
	case "heatmap_render":
		return s.handleHeatmapRender(args)
	case "composite_apply":
		return s.handleCompositeApply(args)
	case "fidelity_verify":
		return s.handleFidelityVerify(args)

	default:
		return nil, invalidParams("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	resp := &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
		},
	}
	if data != "" {
		resp.Error.Data = data
	}
	return resp
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (a imageLoadArgs) validate() error {
	if a.Path == "" {
		return invalidParams("path is required")
	}
	return nil
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Mask Synthesis Handlers ===

type maskSuggestArgs struct {
	Path       string            `json:"path"`
	Detections []masks.Detection `json:"detections"`

	// Per-call overrides of the configured mask options.
	PaddingPercent   *float64 `json:"padding_percent"`
	MinPadding       *int     `json:"min_padding"`
	MaxPadding       *int     `json:"max_padding"`
	MergeOverlapping *bool    `json:"merge_overlapping"`
	MergeTolerance   *int     `json:"merge_tolerance"`

	OutputPath string `json:"output_path"`
}

// options layers the call's overrides on top of base.
func (a maskSuggestArgs) options(base masks.Options) masks.Options {
	o := base
	if a.PaddingPercent != nil {
		o.PaddingPercent = *a.PaddingPercent
	}
	if a.MinPadding != nil {
		o.MinPadding = *a.MinPadding
	}
	if a.MaxPadding != nil {
		o.MaxPadding = *a.MaxPadding
	}
	if a.MergeOverlapping != nil {
		o.MergeOverlapping = *a.MergeOverlapping
	}
	if a.MergeTolerance != nil {
		o.MergeTolerance = *a.MergeTolerance
	}
	return o
}

type maskSuggestResult struct {
	Width            int                  `json:"width"`
	Height           int                  `json:"height"`
	Regions          []masks.Region       `json:"regions"`
	CoveragePercent  float64              `json:"coverage_percent"`
	MergeOverlapping bool                 `json:"merge_overlapping"`
	Mask             *imaging.ImageResult `json:"mask"`
}

func (s *Server) handleMaskSuggest(args json.RawMessage) (interface{}, error) {
	var a maskSuggestArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, invalidParams("path is required")
	}
	opts := a.options(s.cfg.Mask)
	if err := opts.Validate(); err != nil {
		return nil, invalidParams("invalid mask options: %v", err)
	}

	base, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	suggestion, err := s.fidelity.SuggestMaskFor(base.Width, base.Height, a.Detections, masks.NewSynthesizer(opts))
	if err != nil {
		return nil, suggestionError(err)
	}

	mask := imaging.PNGResult(suggestion.Width, suggestion.Height, suggestion.MaskPNG)
	if err := writeOutput(mask, a.OutputPath); err != nil {
		return nil, err
	}

	return &maskSuggestResult{
		Width:            suggestion.Width,
		Height:           suggestion.Height,
		Regions:          suggestion.Regions,
		CoveragePercent:  suggestion.CoveragePercent,
		MergeOverlapping: opts.MergeOverlapping,
		Mask:             mask,
	}, nil
}

// suggestionError maps unusable detection boxes to invalid params.
func suggestionError(err error) error {
	var boxErr *masks.InvalidBoundingBoxError
	if errors.As(err, &boxErr) {
		return &invalidParamsError{err: fmt.Errorf("detections: %w", err)}
	}
	return err
}

// === Fidelity Verification Handlers ===

type triadArgs struct {
	BasePath      string `json:"base_path"`
	CandidatePath string `json:"candidate_path"`
	MaskPath      string `json:"mask_path"`
}

func (a triadArgs) validate() error {
	switch {
	case a.BasePath == "":
		return invalidParams("base_path is required")
	case a.CandidatePath == "":
		return invalidParams("candidate_path is required")
	case a.MaskPath == "":
		return invalidParams("mask_path is required")
	}
	return nil
}

// loadInputs reads the three images and conforms candidate and mask to the
// base. Candidate and mask are evicted from the cache afterwards since they
// are usually regenerated or repainted under the same path; the base stays
// cached for the next verification.
func (s *Server) loadInputs(a triadArgs) (*fidelity.Inputs, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	defer s.cache.Evict(a.CandidatePath)
	defer s.cache.Evict(a.MaskPath)

	base, err := s.cache.Load(a.BasePath)
	if err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}
	candidate, err := s.cache.Load(a.CandidatePath)
	if err != nil {
		return nil, fmt.Errorf("candidate: %w", err)
	}
	mask, err := s.cache.Load(a.MaskPath)
	if err != nil {
		return nil, fmt.Errorf("mask: %w", err)
	}
	return fidelity.Conform(base, candidate, mask)
}

type driftComputeResult struct {
	Drift              *drift.Result `json:"drift"`
	Width              int           `json:"width"`
	Height             int           `json:"height"`
	MaxDiff            uint8         `json:"max_diff"`
	CandidateResampled bool          `json:"candidate_resampled"`
	MaskResampled      bool          `json:"mask_resampled"`
}

func (s *Server) handleDriftCompute(args json.RawMessage) (interface{}, error) {
	var a triadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	in, err := s.loadInputs(a)
	if err != nil {
		return nil, err
	}
	res, err := s.fidelity.Drift(in)
	if err != nil {
		return nil, err
	}
	return &driftComputeResult{
		Drift:              res,
		Width:              in.Base.Width,
		Height:             in.Base.Height,
		MaxDiff:            res.DiffMap.Max(),
		CandidateResampled: in.CandidateResampled,
		MaskResampled:      in.MaskResampled,
	}, nil
}

type heatmapRenderArgs struct {
	triadArgs
	Overlay    bool   `json:"overlay"`
	OutputPath string `json:"output_path"`
}

func (s *Server) handleHeatmapRender(args json.RawMessage) (interface{}, error) {
	var a heatmapRenderArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	in, err := s.loadInputs(a.triadArgs)
	if err != nil {
		return nil, err
	}
	res, err := s.fidelity.Drift(in)
	if err != nil {
		return nil, err
	}
	heat, err := s.fidelity.Heatmap(res, in, a.Overlay)
	if err != nil {
		return nil, err
	}
	return encodeOutput(heat, a.OutputPath)
}

type compositeApplyArgs struct {
	triadArgs
	OutputPath string `json:"output_path"`
}

func (s *Server) handleCompositeApply(args json.RawMessage) (interface{}, error) {
	var a compositeApplyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	in, err := s.loadInputs(a.triadArgs)
	if err != nil {
		return nil, err
	}
	out, err := s.fidelity.Composite(in)
	if err != nil {
		return nil, err
	}
	return encodeOutput(out, a.OutputPath)
}

type fidelityVerifyArgs struct {
	triadArgs
	OutputDir string `json:"output_dir"`
}

type fidelityVerifyResult struct {
	RunID string `json:"run_id"`
	*fidelity.Verification
	Heatmap   *imaging.ImageResult `json:"heatmap"`
	Overlay   *imaging.ImageResult `json:"overlay"`
	Composite *imaging.ImageResult `json:"composite"`
}

func (s *Server) handleFidelityVerify(args json.RawMessage) (interface{}, error) {
	var a fidelityVerifyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	in, err := s.loadInputs(a.triadArgs)
	if err != nil {
		return nil, err
	}
	if a.OutputDir != "" {
		if err := os.MkdirAll(a.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	v, err := s.fidelity.VerifyInputs(in)
	if err != nil {
		return nil, err
	}

	result := &fidelityVerifyResult{RunID: uuid.NewString(), Verification: v}
	artifacts := []struct {
		name string
		r    *imaging.Raster
		dst  **imaging.ImageResult
	}{
		{"heatmap", v.Heatmap, &result.Heatmap},
		{"overlay", v.Overlay, &result.Overlay},
		{"composite", v.Composite, &result.Composite},
	}
	for _, art := range artifacts {
		path := ""
		if a.OutputDir != "" {
			path = filepath.Join(a.OutputDir, fmt.Sprintf("%s-%s.png", result.RunID, art.name))
		}
		enc, err := encodeOutput(art.r, path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", art.name, err)
		}
		*art.dst = enc
	}

	s.logger.Info("fidelity verified",
		"run_id", result.RunID,
		"base", a.BasePath,
		"status", v.Drift.Status.String(),
		"score", v.Drift.Score)

	return result, nil
}

// encodeOutput PNG-encodes r and, when path is set, writes it there.
func encodeOutput(r *imaging.Raster, path string) (*imaging.ImageResult, error) {
	res, err := imaging.EncodeResult(r)
	if err != nil {
		return nil, err
	}
	if err := writeOutput(res, path); err != nil {
		return nil, err
	}
	return res, nil
}

func writeOutput(res *imaging.ImageResult, path string) error {
	if path == "" {
		return nil
	}
	return res.WriteTo(path, true)
}
