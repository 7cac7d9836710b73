// Package engine wires all subsystems together: store, queue, dead
// letter set, generator, hooks, middleware, and the worker pool. It is
// the application-facing surface of the tailoring pipeline.
//
// This package exists to break the import cycle: the root stitch
// package defines Entity and the sentinel errors (imported by every
// subsystem) and so cannot import those packages back. The engine
// package sits above all subsystem packages and below the caller.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/actor"
	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/backoff"
	"github.com/stitchhq/stitch/dlq"
	"github.com/stitchhq/stitch/event"
	"github.com/stitchhq/stitch/genai"
	"github.com/stitchhq/stitch/hook"
	"github.com/stitchhq/stitch/id"
	mw "github.com/stitchhq/stitch/middleware"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/resume"
	"github.com/stitchhq/stitch/store"
	"github.com/stitchhq/stitch/worker"
)

// Engine is the assembled tailoring pipeline.
type Engine struct {
	store      store.Store
	generator  genai.Generator
	config     stitch.Config
	hooks      *hook.Registry
	queue      *queue.Queue
	dlqService *dlq.Service
	pool       *worker.Pool
	mws        []mw.Middleware
	logger     *slog.Logger
	parser     worker.Parser

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the persistence backend. Required.
func WithStore(s store.Store) Option {
	return func(eng *Engine) { eng.store = s }
}

// WithGenerator sets the AI content generator. Required.
func WithGenerator(g genai.Generator) Option {
	return func(eng *Engine) { eng.generator = g }
}

// WithConfig replaces the default pipeline configuration.
func WithConfig(cfg stitch.Config) Option {
	return func(eng *Engine) { eng.config = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithConcurrency overrides the worker pool size.
func WithConcurrency(n int) Option {
	return func(eng *Engine) { eng.config.Concurrency = n }
}

// WithHook registers a lifecycle hook with the engine.
func WithHook(h hook.Hook) Option {
	return func(eng *Engine) { eng.hooks.Register(h) }
}

// WithMiddleware appends middleware to the generation chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithParser sets the resume parser backing parse-kind queue items.
func WithParser(p worker.Parser) Option {
	return func(eng *Engine) { eng.parser = p }
}

// WithTracerProvider sets a custom OTel TracerProvider. When set, the
// tracing middleware uses this provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider. When set, the
// metrics middleware uses this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// Build assembles an Engine from its options. The store and generator
// are required; everything else has defaults.
func Build(opts ...Option) (*Engine, error) {
	eng := &Engine{
		config: stitch.DefaultConfig(),
		logger: slog.Default(),
	}
	// The hook registry must exist before WithHook options run.
	eng.hooks = hook.NewRegistry(eng.logger)

	for _, opt := range opts {
		opt(eng)
	}

	if eng.store == nil {
		return nil, stitch.ErrNoStore
	}
	if eng.generator == nil {
		return nil, stitch.ErrNoGenerator
	}

	// Every committed transition and terminal failure lands in the
	// audit trail.
	eng.hooks.Register(event.NewRecorder(eng.store))

	eng.queue = queue.New(eng.store,
		queue.WithMaxAttempts(eng.config.MaxAttempts),
		queue.WithLeaseTimeout(eng.config.LeaseTimeout),
		queue.WithStrategy(queue.KindTailor, backoff.NewExponential(eng.config.TailorBackoffBase, time.Minute)),
		queue.WithStrategy(queue.KindParse, backoff.NewExponential(eng.config.ParseBackoffBase, time.Minute)),
		queue.WithLogger(eng.logger),
	)
	eng.dlqService = dlq.NewService(eng.store, eng.store)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/stitchhq/stitch"))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/stitchhq/stitch"))
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	allMws := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(eng.config.GenerationTimeout),
	}
	allMws = append(allMws, eng.mws...)

	execOpts := []worker.ExecutorOption{worker.WithMiddleware(allMws...)}
	if eng.parser != nil {
		execOpts = append(execOpts, worker.WithParser(eng.parser))
	}
	executor := worker.NewExecutor(
		eng.store, eng.store, eng.store,
		eng.queue, eng.dlqService, eng.generator, eng.hooks,
		eng.logger,
		execOpts...,
	)

	eng.pool = worker.NewPool(eng.queue, executor, eng.logger,
		worker.WithPoolConcurrency(eng.config.Concurrency),
		worker.WithPollInterval(eng.config.PollInterval),
	)

	return eng, nil
}

// ──────────────────────────────────────────────────
// Submission
// ──────────────────────────────────────────────────

// SubmitForTailoring accepts a tailoring request for the application
// and returns the queued item. The tailored-resume row ID is allocated
// here so every delivery of the item writes to the same row. Submitting
// an application that already has an in-flight request returns
// stitch.ErrAlreadyQueued; the accepted request is unaffected.
func (eng *Engine) SubmitForTailoring(ctx context.Context, appID id.ApplicationID) (*queue.Item, error) {
	app, err := eng.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app.ResumeID.IsNil() {
		return nil, stitch.ErrMissingResume
	}
	if app.Status == application.StatusTailoring {
		return nil, fmt.Errorf("%w: application %s", stitch.ErrAlreadyQueued, app.ID)
	}
	if app.Status != application.StatusSaved {
		return nil, fmt.Errorf("%w: cannot tailor from %s", stitch.ErrInvalidTransition, app.Status)
	}

	item := queue.NewTailorItem(app.ID, app.UserID, app.ResumeID)
	if err := eng.queue.Enqueue(ctx, item); err != nil {
		return nil, err
	}

	// Surface the accepted request immediately. The worker's own
	// compare-and-set covers the case where this commit loses.
	prior := app.Status
	if err := application.Transition(app, application.StatusTailoring, application.TransitionInput{}); err == nil {
		if casErr := eng.store.CASApplicationStatus(ctx, app, prior); casErr == nil {
			eng.hooks.EmitStatusChanged(ctx, app, prior)
		}
	}

	eng.hooks.EmitTailorEnqueued(ctx, item)

	eng.logger.Info("tailoring submitted",
		slog.String("job_id", app.ID.String()),
		slog.String("item_id", item.ID.String()),
		slog.String("tailored_resume_id", item.TailoredResumeID.String()),
	)
	return item, nil
}

// SubmitForParsing queues text extraction for an uploaded resume.
func (eng *Engine) SubmitForParsing(ctx context.Context, appID id.ApplicationID, resumeID id.ResumeID) (*queue.Item, error) {
	app, err := eng.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}

	item := queue.NewParseItem(app.ID, app.UserID, resumeID)
	if err := eng.queue.Enqueue(ctx, item); err != nil {
		return nil, err
	}
	eng.hooks.EmitTailorEnqueued(ctx, item)
	return item, nil
}

// ──────────────────────────────────────────────────
// Status reads
// ──────────────────────────────────────────────────

// TailoringStatus is the polling view of an application's pipeline
// progress.
type TailoringStatus struct {
	Status           application.Status `json:"status"`
	TailoredResumeID id.TailoredID      `json:"tailored_resume_id,omitempty"`
	MatchScore       *int               `json:"match_score,omitempty"`
	FailureReason    string             `json:"failure_reason,omitempty"`
}

// GetTailoringStatus reports where the application sits in the
// pipeline. The match score is only present once a result exists.
func (eng *Engine) GetTailoringStatus(ctx context.Context, appID id.ApplicationID) (*TailoringStatus, error) {
	app, err := eng.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}

	st := &TailoringStatus{
		Status:        app.Status,
		FailureReason: app.FailureReason,
	}
	if !app.TailoredResumeID.IsNil() {
		st.TailoredResumeID = app.TailoredResumeID
		if tr, trErr := eng.store.GetTailoredResume(ctx, app.TailoredResumeID); trErr == nil {
			score := tr.MatchScore
			st.MatchScore = &score
		}
	}
	return st, nil
}

// GetApplication retrieves an application by ID.
func (eng *Engine) GetApplication(ctx context.Context, appID id.ApplicationID) (*application.Application, error) {
	return eng.store.GetApplication(ctx, appID)
}

// GetTailoredResume retrieves a tailored resume by ID.
func (eng *Engine) GetTailoredResume(ctx context.Context, trID id.TailoredID) (*resume.TailoredResume, error) {
	return eng.store.GetTailoredResume(ctx, trID)
}

// Events returns the audit trail for an application, oldest first.
func (eng *Engine) Events(ctx context.Context, appID id.ApplicationID) ([]*event.Event, error) {
	return eng.store.ListEventsForJob(ctx, appID)
}

// ──────────────────────────────────────────────────
// Transitions
// ──────────────────────────────────────────────────

// TransitionStatus validates and commits a lifecycle transition. The
// withdrawn and rejected statuses require an operator actor on the
// context; everything else is open to the owner.
func (eng *Engine) TransitionStatus(ctx context.Context, appID id.ApplicationID, to application.Status, in application.TransitionInput) (*application.Application, error) {
	if to == application.StatusWithdrawn || to == application.StatusRejected {
		if _, err := actor.RequireOperator(ctx); err != nil {
			return nil, err
		}
		in.Operator = true
	}

	app, err := eng.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}

	prior := app.Status
	if err := application.Transition(app, to, in); err != nil {
		return nil, err
	}
	if err := eng.store.CASApplicationStatus(ctx, app, prior); err != nil {
		return nil, err
	}

	eng.hooks.EmitStatusChanged(ctx, app, prior)
	return app, nil
}

// SetStaffStatus applies a staff-tool status change by mapping the
// coarse staff value onto its canonical lifecycle status. Setting the
// projection an application already has is a no-op.
func (eng *Engine) SetStaffStatus(ctx context.Context, appID id.ApplicationID, staff application.StaffStatus, proof string) (*application.Application, error) {
	canonical, err := application.CanonicalStatus(staff)
	if err != nil {
		return nil, err
	}

	app, err := eng.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if application.StaffView(app.Status) == staff {
		return app, nil
	}

	return eng.TransitionStatus(ctx, appID, canonical, application.TransitionInput{Proof: proof})
}

// ──────────────────────────────────────────────────
// Dead letters
// ──────────────────────────────────────────────────

// ReplayDeadLetter re-enqueues a dead-lettered entry as a fresh item.
// Operator only.
func (eng *Engine) ReplayDeadLetter(ctx context.Context, entryID id.DLQID) (*queue.Item, error) {
	if _, err := actor.RequireOperator(ctx); err != nil {
		return nil, err
	}
	item, err := eng.dlqService.Replay(ctx, entryID)
	if err != nil {
		return nil, err
	}
	eng.hooks.EmitTailorEnqueued(ctx, item)
	return item, nil
}

// DLQService returns the dead-letter service for inspection and replay.
func (eng *Engine) DLQService() *dlq.Service { return eng.dlqService }

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start begins processing queued items.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.store.Ping(ctx); err != nil {
		return fmt.Errorf("engine: store ping: %w", err)
	}
	return eng.pool.Start(ctx)
}

// Stop gracefully shuts down the engine, bounded by ShutdownTimeout.
func (eng *Engine) Stop(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.config.ShutdownTimeout)
		defer cancel()
	}

	err := eng.pool.Stop(ctx)
	eng.hooks.EmitShutdown(ctx)
	return err
}

// Hooks returns the hook registry.
func (eng *Engine) Hooks() *hook.Registry { return eng.hooks }

// Queue returns the work queue.
func (eng *Engine) Queue() *queue.Queue { return eng.queue }

// Store returns the persistence backend.
func (eng *Engine) Store() store.Store { return eng.store }
