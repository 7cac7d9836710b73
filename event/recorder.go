package event

import (
	"context"
	"fmt"
	"time"

	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/queue"
)

// Recorder is a hook that writes audit events for pipeline activity.
// Register it on the engine to get a durable trail of transitions,
// retries, and failures.
type Recorder struct {
	store Store
}

// NewRecorder creates a Recorder over the given event store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Name implements hook.Hook.
func (r *Recorder) Name() string { return "event-recorder" }

// OnStatusChanged records the committed transition.
func (r *Recorder) OnStatusChanged(ctx context.Context, app *application.Application, from application.Status) error {
	return r.store.RecordEvent(ctx, New(app.ID, TypeStatusChanged,
		fmt.Sprintf("%s → %s", from, app.Status)))
}

// OnTailorRetrying records a rescheduled attempt.
func (r *Recorder) OnTailorRetrying(ctx context.Context, item *queue.Item, attempt int, nextAt time.Time) error {
	return r.store.RecordEvent(ctx, New(item.JobID, TypeTailorRetried,
		fmt.Sprintf("attempt %d/%d, next at %s", attempt, item.MaxAttempts, nextAt.Format(time.RFC3339))))
}

// OnTailorFailed records the terminal failure.
func (r *Recorder) OnTailorFailed(ctx context.Context, item *queue.Item, itemErr error) error {
	return r.store.RecordEvent(ctx, New(item.JobID, TypeTailorFailed, itemErr.Error()))
}

// OnTailorDLQ records the dead-letter move.
func (r *Recorder) OnTailorDLQ(ctx context.Context, item *queue.Item, itemErr error) error {
	return r.store.RecordEvent(ctx, New(item.JobID, TypeDeadLettered,
		fmt.Sprintf("item %s: %s", item.ID, itemErr.Error())))
}
