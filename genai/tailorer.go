package genai

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/resume"
)

// Tailorer is the production Generator: prompt assembly, a rate-limited
// chat call, strict parsing, and a fabrication audit.
type Tailorer struct {
	client  ChatClient
	limiter *rate.Limiter
	logger  *slog.Logger
}

// TailorerOption configures a Tailorer.
type TailorerOption func(*Tailorer)

// WithRateLimit caps upstream calls per second with the given burst.
// Zero rps disables limiting.
func WithRateLimit(rps float64, burst int) TailorerOption {
	return func(t *Tailorer) {
		if rps > 0 {
			if burst <= 0 {
				burst = 1
			}
			t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) TailorerOption {
	return func(t *Tailorer) { t.logger = l }
}

// NewTailorer creates a Tailorer over the given chat client.
func NewTailorer(client ChatClient, opts ...TailorerOption) *Tailorer {
	t := &Tailorer{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Generate implements Generator.
func (t *Tailorer) Generate(ctx context.Context, src *resume.Resume, jobTitle, company, jobDescription string) (*resume.TailoredContent, error) {
	if src == nil || src.Text == "" {
		// Caller error: a resume without extracted text can never
		// tailor, so no GenerationError and no retry.
		return nil, stitch.ErrResumeNotParsed
	}

	prompt, err := buildPrompt(src, jobTitle, company, jobDescription)
	if err != nil {
		return nil, err
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &GenerationError{Reason: ReasonTimeout, Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	raw, err := t.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		if _, ok := AsGenerationError(err); ok {
			return nil, err
		}
		return nil, &GenerationError{Reason: ReasonUpstreamUnavailable, Err: err}
	}

	content, err := parseContent(raw)
	if err != nil {
		return nil, err
	}

	auditFabrication(t.logger, src, content)
	return content, nil
}

var _ Generator = (*Tailorer)(nil)
