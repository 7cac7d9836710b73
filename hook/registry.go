package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/resume"
)

// Named entry types pair a hook implementation with the hook name
// captured at registration time. This avoids type-asserting back to
// Hook inside the emit methods.
type tailorEnqueuedEntry struct {
	name string
	hook TailorEnqueued
}

type tailorStartedEntry struct {
	name string
	hook TailorStarted
}

type tailorCompletedEntry struct {
	name string
	hook TailorCompleted
}

type tailorRetryingEntry struct {
	name string
	hook TailorRetrying
}

type tailorFailedEntry struct {
	name string
	hook TailorFailed
}

type tailorDLQEntry struct {
	name string
	hook TailorDLQ
}

type statusChangedEntry struct {
	name string
	hook StatusChanged
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events to
// them. It type-caches hooks at registration time so emit calls iterate
// only over hooks that implement the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	tailorEnqueued  []tailorEnqueuedEntry
	tailorStarted   []tailorStartedEntry
	tailorCompleted []tailorCompletedEntry
	tailorRetrying  []tailorRetryingEntry
	tailorFailed    []tailorFailedEntry
	tailorDLQ       []tailorDLQEntry
	statusChanged   []statusChangedEntry
	shutdown        []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if e, ok := h.(TailorEnqueued); ok {
		r.tailorEnqueued = append(r.tailorEnqueued, tailorEnqueuedEntry{name, e})
	}
	if e, ok := h.(TailorStarted); ok {
		r.tailorStarted = append(r.tailorStarted, tailorStartedEntry{name, e})
	}
	if e, ok := h.(TailorCompleted); ok {
		r.tailorCompleted = append(r.tailorCompleted, tailorCompletedEntry{name, e})
	}
	if e, ok := h.(TailorRetrying); ok {
		r.tailorRetrying = append(r.tailorRetrying, tailorRetryingEntry{name, e})
	}
	if e, ok := h.(TailorFailed); ok {
		r.tailorFailed = append(r.tailorFailed, tailorFailedEntry{name, e})
	}
	if e, ok := h.(TailorDLQ); ok {
		r.tailorDLQ = append(r.tailorDLQ, tailorDLQEntry{name, e})
	}
	if e, ok := h.(StatusChanged); ok {
		r.statusChanged = append(r.statusChanged, statusChangedEntry{name, e})
	}
	if e, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, e})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitTailorEnqueued notifies all hooks that implement TailorEnqueued.
func (r *Registry) EmitTailorEnqueued(ctx context.Context, item *queue.Item) {
	for _, e := range r.tailorEnqueued {
		if err := e.hook.OnTailorEnqueued(ctx, item); err != nil {
			r.logHookError("OnTailorEnqueued", e.name, err)
		}
	}
}

// EmitTailorStarted notifies all hooks that implement TailorStarted.
func (r *Registry) EmitTailorStarted(ctx context.Context, item *queue.Item) {
	for _, e := range r.tailorStarted {
		if err := e.hook.OnTailorStarted(ctx, item); err != nil {
			r.logHookError("OnTailorStarted", e.name, err)
		}
	}
}

// EmitTailorCompleted notifies all hooks that implement TailorCompleted.
func (r *Registry) EmitTailorCompleted(ctx context.Context, item *queue.Item, tr *resume.TailoredResume, elapsed time.Duration) {
	for _, e := range r.tailorCompleted {
		if err := e.hook.OnTailorCompleted(ctx, item, tr, elapsed); err != nil {
			r.logHookError("OnTailorCompleted", e.name, err)
		}
	}
}

// EmitTailorRetrying notifies all hooks that implement TailorRetrying.
func (r *Registry) EmitTailorRetrying(ctx context.Context, item *queue.Item, attempt int, nextAt time.Time) {
	for _, e := range r.tailorRetrying {
		if err := e.hook.OnTailorRetrying(ctx, item, attempt, nextAt); err != nil {
			r.logHookError("OnTailorRetrying", e.name, err)
		}
	}
}

// EmitTailorFailed notifies all hooks that implement TailorFailed.
func (r *Registry) EmitTailorFailed(ctx context.Context, item *queue.Item, itemErr error) {
	for _, e := range r.tailorFailed {
		if err := e.hook.OnTailorFailed(ctx, item, itemErr); err != nil {
			r.logHookError("OnTailorFailed", e.name, err)
		}
	}
}

// EmitTailorDLQ notifies all hooks that implement TailorDLQ.
func (r *Registry) EmitTailorDLQ(ctx context.Context, item *queue.Item, itemErr error) {
	for _, e := range r.tailorDLQ {
		if err := e.hook.OnTailorDLQ(ctx, item, itemErr); err != nil {
			r.logHookError("OnTailorDLQ", e.name, err)
		}
	}
}

// EmitStatusChanged notifies all hooks that implement StatusChanged.
func (r *Registry) EmitStatusChanged(ctx context.Context, app *application.Application, from application.Status) {
	for _, e := range r.statusChanged {
		if err := e.hook.OnStatusChanged(ctx, app, from); err != nil {
			r.logHookError("OnStatusChanged", e.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		e.hook.OnShutdown(ctx)
	}
}

// logHookError logs a hook error. Hook errors never propagate into the
// pipeline.
func (r *Registry) logHookError(event, name string, err error) {
	r.logger.Warn("hook error",
		slog.String("event", event),
		slog.String("hook", name),
		slog.String("error", err.Error()),
	)
}
