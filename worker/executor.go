// Package worker processes leased queue items: an Executor that runs
// the tailoring algorithm for a single item, and a Pool that manages
// concurrent worker goroutines polling the queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/dlq"
	"github.com/stitchhq/stitch/genai"
	"github.com/stitchhq/stitch/hook"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/middleware"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/resume"
)

// Parser extracts structured text from an uploaded resume. It backs
// parse-kind queue items; the tailoring pipeline only needs the side
// effect of Resume.Text being filled in.
type Parser interface {
	Parse(ctx context.Context, resumeID id.ResumeID) error
}

// Executor processes one queue item end to end: load state, run the
// generator through middleware, persist the result, and commit the
// application status with a compare-and-set. Failures go back to the
// queue with backoff or, once exhausted, to the dead-letter set.
type Executor struct {
	apps      application.Store
	resumes   resume.Source
	tailored  resume.Store
	queue     *queue.Queue
	dlq       *dlq.Service
	generator genai.Generator
	parser    Parser
	hooks     *hook.Registry
	mw        middleware.Middleware
	logger    *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithParser sets the resume parser used for parse-kind items. Without
// one, parse items are dead-lettered as unprocessable.
func WithParser(p Parser) ExecutorOption {
	return func(e *Executor) { e.parser = p }
}

// WithMiddleware sets the middleware chain wrapped around generation.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// NewExecutor creates an Executor with the given collaborators.
func NewExecutor(
	apps application.Store,
	resumes resume.Source,
	tailored resume.Store,
	q *queue.Queue,
	dlqService *dlq.Service,
	generator genai.Generator,
	hooks *hook.Registry,
	logger *slog.Logger,
	opts ...ExecutorOption,
) *Executor {
	e := &Executor{
		apps:      apps,
		resumes:   resumes,
		tailored:  tailored,
		queue:     q,
		dlq:       dlqService,
		generator: generator,
		hooks:     hooks,
		mw:        middleware.Chain(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process handles a single leased item. It always resolves the item's
// delivery: ack on success or permanent failure, nack with backoff on a
// retryable failure, dead-letter plus ack on exhaustion. Items are
// never silently dropped.
func (e *Executor) Process(ctx context.Context, item *queue.Item) error {
	switch item.Kind {
	case queue.KindTailor:
		return e.processTailor(ctx, item)
	case queue.KindParse:
		return e.processParse(ctx, item)
	default:
		return e.deadLetter(ctx, item, fmt.Errorf("unknown item kind %q", item.Kind))
	}
}

func (e *Executor) processTailor(ctx context.Context, item *queue.Item) error {
	app, err := e.apps.GetApplication(ctx, item.JobID)
	if err != nil {
		// A missing application can never succeed on retry.
		return e.deadLetter(ctx, item, fmt.Errorf("load application: %w", err))
	}

	// A duplicate delivery after the result was already committed is a
	// no-op: the row at the pre-allocated ID is already written.
	if app.Status == application.StatusTailored && app.TailoredResumeID == item.TailoredResumeID {
		e.logger.Debug("duplicate delivery for tailored application, acking",
			slog.String("item_id", item.ID.String()),
			slog.String("job_id", item.JobID.String()),
		)
		return e.queue.Ack(ctx, item)
	}

	switch app.Status {
	case application.StatusSaved:
		prior := app.Status
		if err := application.Transition(app, application.StatusTailoring, application.TransitionInput{}); err != nil {
			return e.failTailor(ctx, item, app, err)
		}
		if err := e.apps.CASApplicationStatus(ctx, app, prior); err != nil {
			// Another writer moved the application first. Reload and
			// fall through only if it landed on tailoring.
			reloaded, getErr := e.apps.GetApplication(ctx, item.JobID)
			if getErr != nil {
				return e.deadLetter(ctx, item, fmt.Errorf("reload application: %w", getErr))
			}
			app = reloaded
			if app.Status != application.StatusTailoring {
				e.logger.Info("application moved away from saved, acking stale item",
					slog.String("job_id", item.JobID.String()),
					slog.String("status", string(app.Status)),
				)
				return e.queue.Ack(ctx, item)
			}
		} else {
			e.hooks.EmitStatusChanged(ctx, app, prior)
		}
	case application.StatusTailoring:
		// Redelivery after a lease expired mid-flight. Resume work.
	default:
		// The application left the tailoring path entirely; the item is
		// stale and further work would be wrong.
		e.logger.Info("application no longer tailorable, acking stale item",
			slog.String("job_id", item.JobID.String()),
			slog.String("status", string(app.Status)),
		)
		return e.queue.Ack(ctx, item)
	}

	src, err := e.resumes.GetResume(ctx, item.ResumeID)
	if err != nil {
		return e.failTailor(ctx, item, app, fmt.Errorf("load resume: %w", err))
	}

	e.hooks.EmitTailorStarted(ctx, item)
	start := time.Now()

	var content *resume.TailoredContent
	terminal := func(ctx context.Context) error {
		var genErr error
		content, genErr = e.generator.Generate(ctx, src, app.Title, app.Company, app.Description)
		return genErr
	}

	if err := e.mw(ctx, item, terminal); err != nil {
		if genErr, ok := genai.AsGenerationError(err); ok {
			return e.retryTailor(ctx, item, app, genErr)
		}
		// Anything that is not a GenerationError is a caller or data
		// error; retrying cannot fix it.
		return e.failTailor(ctx, item, app, err)
	}
	elapsed := time.Since(start)

	tr := &resume.TailoredResume{
		Entity:          stitch.NewEntity(),
		ID:              item.TailoredResumeID,
		JobID:           item.JobID,
		UserID:          item.UserID,
		TailoredContent: *content,
	}
	if err := e.tailored.UpsertTailoredResume(ctx, tr); err != nil {
		return e.retryTailor(ctx, item, app, fmt.Errorf("persist tailored resume: %w", err))
	}

	prior := app.Status
	app.TailoredResumeID = tr.ID
	if err := application.Transition(app, application.StatusTailored, application.TransitionInput{}); err != nil {
		return e.failTailor(ctx, item, app, err)
	}
	if err := e.apps.CASApplicationStatus(ctx, app, prior); err != nil {
		// The row at the pre-allocated ID is written either way; a lost
		// status race means another delivery already committed.
		e.logger.Warn("status commit lost race after tailoring",
			slog.String("job_id", item.JobID.String()),
			slog.String("error", err.Error()),
		)
		return e.queue.Ack(ctx, item)
	}

	e.hooks.EmitStatusChanged(ctx, app, prior)
	e.hooks.EmitTailorCompleted(ctx, item, tr, elapsed)

	e.logger.Info("tailoring completed",
		slog.String("job_id", item.JobID.String()),
		slog.String("tailored_resume_id", tr.ID.String()),
		slog.Int("match_score", tr.MatchScore),
		slog.Duration("elapsed", elapsed),
	)

	return e.queue.Ack(ctx, item)
}

func (e *Executor) processParse(ctx context.Context, item *queue.Item) error {
	if e.parser == nil {
		return e.deadLetter(ctx, item, fmt.Errorf("no parser configured for item %s", item.ID))
	}

	if err := e.parser.Parse(ctx, item.ResumeID); err != nil {
		dead, nackErr := e.queue.Nack(ctx, item, err)
		if nackErr != nil {
			return nackErr
		}
		if dead {
			return e.deadLetter(ctx, item, err)
		}
		e.hooks.EmitTailorRetrying(ctx, item, item.Attempt, item.ScheduledAt)
		return nil
	}

	return e.queue.Ack(ctx, item)
}

// retryTailor records a failed attempt. While attempts remain the item
// is rescheduled with backoff; on exhaustion the application reverts to
// saved with the failure reason and the item moves to the dead set.
func (e *Executor) retryTailor(ctx context.Context, item *queue.Item, app *application.Application, cause error) error {
	dead, err := e.queue.Nack(ctx, item, cause)
	if err != nil {
		return err
	}
	if !dead {
		e.hooks.EmitTailorRetrying(ctx, item, item.Attempt, item.ScheduledAt)
		return nil
	}

	e.revertToSaved(ctx, app, cause)
	e.hooks.EmitTailorFailed(ctx, item, cause)
	return e.deadLetter(ctx, item, cause)
}

// failTailor handles permanent failures: no retry, straight to the dead
// set, with the application returned to saved so the owner can act.
func (e *Executor) failTailor(ctx context.Context, item *queue.Item, app *application.Application, cause error) error {
	e.revertToSaved(ctx, app, cause)
	e.hooks.EmitTailorFailed(ctx, item, cause)
	return e.deadLetter(ctx, item, cause)
}

func (e *Executor) revertToSaved(ctx context.Context, app *application.Application, cause error) {
	if app.Status != application.StatusTailoring {
		return
	}
	prior := app.Status
	if err := application.Transition(app, application.StatusSaved, application.TransitionInput{FailureReason: cause.Error()}); err != nil {
		e.logger.Error("failed to revert application to saved",
			slog.String("job_id", app.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := e.apps.CASApplicationStatus(ctx, app, prior); err != nil {
		e.logger.Error("failed to commit revert to saved",
			slog.String("job_id", app.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	e.hooks.EmitStatusChanged(ctx, app, prior)
}

// deadLetter moves the item to the dead set and acks it out of the
// queue. The entry carries everything needed for an operator replay.
func (e *Executor) deadLetter(ctx context.Context, item *queue.Item, cause error) error {
	if err := e.dlq.Push(ctx, item, cause); err != nil {
		// Keep the item leased rather than lose it; the lease will
		// expire and the push gets another chance.
		return fmt.Errorf("worker: dead-letter %s: %w", item.ID, err)
	}

	e.hooks.EmitTailorDLQ(ctx, item, cause)

	e.logger.Warn("item dead-lettered",
		slog.String("item_id", item.ID.String()),
		slog.String("job_id", item.JobID.String()),
		slog.Int("attempts", item.Attempt),
		slog.String("error", cause.Error()),
	)

	return e.queue.Ack(ctx, item)
}
