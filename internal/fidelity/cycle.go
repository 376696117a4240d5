package fidelity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ironsheep/image-fidelity-mcp/internal/masks"
)

// GenerateRequest is what an external generator receives.
type GenerateRequest struct {
	RunID  string
	Prompt string
	// Base and Mask are encoded images. Mask alpha above 127 marks pixels the
	// generator must not change.
	Base []byte
	Mask []byte
}

// Generator produces a candidate image from a base, a mask and a prompt.
// Implementations wrap an external model; none live in this module.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]byte, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) ([]byte, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) ([]byte, error) {
	return f(ctx, req)
}

// CycleRequest describes one generate-and-verify run.
//
// When Mask is empty a mask is synthesized from Detections; no detections
// give an all-preserve mask.
type CycleRequest struct {
	Base       []byte
	Prompt     string
	Detections []masks.Detection
	Mask       []byte
}

// CycleResult collects everything a cycle produced.
type CycleResult struct {
	RunID string `json:"run_id"`
	// Suggestion is nil when the request carried its own mask.
	Suggestion   *MaskSuggestion `json:"suggestion,omitempty"`
	Candidate    []byte          `json:"-"`
	Verification *Verification   `json:"verification"`
}

// GenerationError wraps a failure returned by the Generator.
type GenerationError struct {
	RunID string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s failed: %v", e.RunID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Cycle runs mask suggestion (when needed), a single generator call and
// verification.
//
// A failed generation is returned as *GenerationError and is not retried;
// deciding whether to regenerate is the caller's job. ctx is only passed to
// the generator.
func (s *Service) Cycle(ctx context.Context, gen Generator, req CycleRequest) (*CycleResult, error) {
	runID := uuid.NewString()
	log := s.logger.With("run_id", runID)

	result := &CycleResult{RunID: runID}

	mask := req.Mask
	if len(mask) == 0 {
		suggestion, err := s.SuggestMask(req.Base, req.Detections)
		if err != nil {
			return nil, err
		}
		result.Suggestion = suggestion
		mask = suggestion.MaskPNG
	}

	log.Info("generation started", "prompt_len", len(req.Prompt), "synthesized_mask", result.Suggestion != nil)
	candidate, err := gen.Generate(ctx, GenerateRequest{
		RunID:  runID,
		Prompt: req.Prompt,
		Base:   req.Base,
		Mask:   mask,
	})
	if err != nil {
		log.Warn("generation failed", "error", err)
		return nil, &GenerationError{RunID: runID, Err: err}
	}
	result.Candidate = candidate

	v, err := s.Verify(req.Base, candidate, mask)
	if err != nil {
		return nil, err
	}
	result.Verification = v

	log.Info("cycle finished",
		"status", v.Drift.Status.String(),
		"score", v.Drift.Score)
	return result, nil
}
