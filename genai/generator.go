// Package genai adapts an OpenAI-compatible chat-completion endpoint
// into the structured tailoring generator used by the worker. The
// upstream model is treated as an unreliable remote dependency: calls
// are bounded by timeouts, rate limited, and classified into retryable
// failure modes.
package genai

import (
	"context"
	"errors"
	"fmt"

	"github.com/stitchhq/stitch/resume"
)

// Reason classifies a generation failure. All reasons are retryable by
// the caller.
type Reason string

const (
	// ReasonTimeout means the upstream call exceeded its deadline.
	ReasonTimeout Reason = "timeout"
	// ReasonUpstreamUnavailable means the upstream returned an error or
	// rate-limited the call.
	ReasonUpstreamUnavailable Reason = "upstream_unavailable"
	// ReasonMalformedOutput means the model output did not parse as the
	// expected JSON structure.
	ReasonMalformedOutput Reason = "malformed_output"
)

// GenerationError is a classified failure of a generation call.
type GenerationError struct {
	Reason Reason
	Err    error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("genai: generation failed (%s)", e.Reason)
	}
	return fmt.Sprintf("genai: generation failed (%s): %v", e.Reason, e.Err)
}

// Unwrap returns the underlying cause.
func (e *GenerationError) Unwrap() error { return e.Err }

// AsGenerationError extracts a *GenerationError from err, if present.
func AsGenerationError(err error) (*GenerationError, bool) {
	var ge *GenerationError
	ok := errors.As(err, &ge)
	return ge, ok
}

// Generator produces tailored content for a (resume, job) pair.
// Implementations must be safe for concurrent use.
type Generator interface {
	// Generate returns structured tailored content or fails with a
	// *GenerationError. A resume without required fields is a caller
	// error, reported as a plain (non-retryable) error.
	Generate(ctx context.Context, src *resume.Resume, jobTitle, company, jobDescription string) (*resume.TailoredContent, error)
}
