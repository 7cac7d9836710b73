package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/backoff"
	"github.com/stitchhq/stitch/id"
)

// Queue provides enqueue/dequeue/ack/nack semantics over a Store.
// Dead-lettering is the caller's job: Nack reports when an item has
// exhausted its attempts, and the worker moves it to the dead set.
type Queue struct {
	store       Store
	strategies  map[Kind]backoff.Strategy
	maxAttempts int
	leaseFor    time.Duration
	logger      *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxAttempts bounds delivery attempts per item.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) { q.maxAttempts = n }
}

// WithLeaseTimeout sets how long a dequeued item stays invisible.
func WithLeaseTimeout(d time.Duration) Option {
	return func(q *Queue) { q.leaseFor = d }
}

// WithStrategy overrides the backoff strategy for a kind.
func WithStrategy(kind Kind, s backoff.Strategy) Option {
	return func(q *Queue) { q.strategies[kind] = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// New creates a Queue over the given store. Defaults: 3 attempts,
// 60s lease, exponential backoff with a 2s base for tailoring and a
// 1s base for parsing.
func New(store Store, opts ...Option) *Queue {
	q := &Queue{
		store: store,
		strategies: map[Kind]backoff.Strategy{
			KindTailor: backoff.ForTailoring(),
			KindParse:  backoff.ForParsing(),
		},
		maxAttempts: 3,
		leaseFor:    60 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue persists item after verifying no non-terminal item already
// exists for the same application. Returns stitch.ErrAlreadyQueued on a
// duplicate in-flight request, so submitting twice yields exactly one
// accepted request.
func (q *Queue) Enqueue(ctx context.Context, item *Item) error {
	existing, err := q.store.ActiveItemForJob(ctx, item.JobID)
	if err != nil && !errors.Is(err, stitch.ErrQueueItemNotFound) {
		return fmt.Errorf("queue: check in-flight work: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: item %s", stitch.ErrAlreadyQueued, existing.ID)
	}

	if item.MaxAttempts == 0 {
		item.MaxAttempts = q.maxAttempts
	}
	if item.ScheduledAt.IsZero() {
		item.ScheduledAt = time.Now().UTC()
	}

	if err := q.store.PutItem(ctx, item); err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}

	q.logger.Debug("item enqueued",
		slog.String("item_id", item.ID.String()),
		slog.String("job_id", item.JobID.String()),
		slog.String("kind", string(item.Kind)),
	)
	return nil
}

// Dequeue leases one due item of the given kinds for the worker.
// Returns (nil, nil) when nothing is due.
func (q *Queue) Dequeue(ctx context.Context, kinds []Kind, workerID id.WorkerID) (*Item, error) {
	return q.store.LeaseItem(ctx, kinds, q.leaseFor, workerID)
}

// Ack acknowledges successful (or permanently resolved) processing and
// removes the item. Acking an item that was already removed is a no-op:
// under at-least-once delivery two workers can resolve the same item,
// and the second ack must not fail the delivery that lost the race.
func (q *Queue) Ack(ctx context.Context, item *Item) error {
	if err := q.store.DeleteItem(ctx, item.ID); err != nil {
		if errors.Is(err, stitch.ErrQueueItemNotFound) {
			return nil
		}
		return fmt.Errorf("queue: ack %s: %w", item.ID, err)
	}
	return nil
}

// Nack records a failed delivery. While attempts remain it reschedules
// the item with exponential backoff and returns dead=false. Once the
// attempt ceiling is reached it marks the item terminal and returns
// dead=true; the item stays stored until the caller moves it to the
// dead-letter set and acks. Items are never silently dropped.
func (q *Queue) Nack(ctx context.Context, item *Item, reason error) (dead bool, err error) {
	item.LastError = reason.Error()
	item.LeaseExpiresAt = nil
	item.WorkerID = id.Nil

	if item.Attempt >= item.MaxAttempts {
		item.Terminal = true
		item.Touch()
		if err := q.store.UpdateItem(ctx, item); err != nil {
			return false, fmt.Errorf("queue: mark terminal %s: %w", item.ID, err)
		}

		q.logger.Warn("item exhausted attempts",
			slog.String("item_id", item.ID.String()),
			slog.String("job_id", item.JobID.String()),
			slog.Int("attempts", item.Attempt),
			slog.String("error", item.LastError),
		)
		return true, nil
	}

	delay := q.strategy(item.Kind).Delay(item.Attempt)
	item.ScheduledAt = time.Now().UTC().Add(delay)
	item.Touch()

	if err := q.store.UpdateItem(ctx, item); err != nil {
		return false, fmt.Errorf("queue: reschedule %s: %w", item.ID, err)
	}

	q.logger.Info("item rescheduled",
		slog.String("item_id", item.ID.String()),
		slog.String("job_id", item.JobID.String()),
		slog.Int("attempt", item.Attempt),
		slog.Int("max_attempts", item.MaxAttempts),
		slog.Duration("delay", delay),
	)
	return false, nil
}

// Reclaim makes items with expired leases visible again.
func (q *Queue) Reclaim(ctx context.Context) (int, error) {
	return q.store.ReclaimExpiredLeases(ctx)
}

// LeaseTimeout returns the configured lease duration.
func (q *Queue) LeaseTimeout() time.Duration { return q.leaseFor }

func (q *Queue) strategy(kind Kind) backoff.Strategy {
	if s, ok := q.strategies[kind]; ok {
		return s
	}
	return backoff.ForTailoring()
}
