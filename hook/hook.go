// Package hook defines the lifecycle hook system for the tailoring
// pipeline. Hooks are notified of pipeline events (item enqueued,
// generation completed, status changed, etc.) and can react to them
// with audit trails, metrics, or notifications.
//
// Each lifecycle hook is a separate interface so implementations opt in
// only to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/resume"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// TailorEnqueued is called after a tailoring request is accepted.
type TailorEnqueued interface {
	OnTailorEnqueued(ctx context.Context, item *queue.Item) error
}

// TailorStarted is called when a worker begins processing an item.
type TailorStarted interface {
	OnTailorStarted(ctx context.Context, item *queue.Item) error
}

// TailorCompleted is called after a tailoring run finishes successfully.
type TailorCompleted interface {
	OnTailorCompleted(ctx context.Context, item *queue.Item, tr *resume.TailoredResume, elapsed time.Duration) error
}

// TailorRetrying is called when a run fails but the item is rescheduled.
type TailorRetrying interface {
	OnTailorRetrying(ctx context.Context, item *queue.Item, attempt int, nextAt time.Time) error
}

// TailorFailed is called when an item fails terminally (no more retries
// or a permanent data error).
type TailorFailed interface {
	OnTailorFailed(ctx context.Context, item *queue.Item, err error) error
}

// TailorDLQ is called when an item is moved to the dead letter set.
type TailorDLQ interface {
	OnTailorDLQ(ctx context.Context, item *queue.Item, err error) error
}

// StatusChanged is called after any committed application status
// transition, automatic or manual.
type StatusChanged interface {
	OnStatusChanged(ctx context.Context, app *application.Application, from application.Status) error
}

// Shutdown is called once when the engine stops.
type Shutdown interface {
	OnShutdown(ctx context.Context)
}
