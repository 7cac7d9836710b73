package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/backoff"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/store/memory"
)

func newQueue(t *testing.T, opts ...queue.Option) *queue.Queue {
	t.Helper()
	return queue.New(memory.New(), opts...)
}

func dueItem() *queue.Item {
	item := queue.NewTailorItem(id.NewApplicationID(), id.NewUserID(), id.NewResumeID())
	item.ScheduledAt = time.Now().UTC().Add(-time.Second)
	return item
}

func TestEnqueueIsIdempotentPerJob(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	ctx := context.Background()

	item := dueItem()
	if err := q.Enqueue(ctx, item); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if item.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want default 3", item.MaxAttempts)
	}

	// A second request for the same application is rejected while the
	// first is still in flight.
	dup := queue.NewTailorItem(item.JobID, item.UserID, item.ResumeID)
	if err := q.Enqueue(ctx, dup); !errors.Is(err, stitch.ErrAlreadyQueued) {
		t.Fatalf("duplicate enqueue: got %v, want ErrAlreadyQueued", err)
	}

	// A different application is unaffected.
	if err := q.Enqueue(ctx, dueItem()); err != nil {
		t.Fatalf("Enqueue distinct job: %v", err)
	}
}

func TestDequeueAck(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	ctx := context.Background()
	workerID := id.NewWorkerID()

	item := dueItem()
	if err := q.Enqueue(ctx, item); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	leased, err := q.Dequeue(ctx, []queue.Kind{queue.KindTailor}, workerID)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if leased == nil || leased.ID != item.ID {
		t.Fatalf("got %v, want item %s", leased, item.ID)
	}
	if leased.Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", leased.Attempt)
	}

	if err := q.Ack(ctx, leased); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	// A second ack from a racing worker is a no-op.
	if err := q.Ack(ctx, leased); err != nil {
		t.Fatalf("Ack again: %v", err)
	}

	// Acked items are gone; the application can be enqueued again.
	next, err := q.Dequeue(ctx, []queue.Kind{queue.KindTailor}, workerID)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if next != nil {
		t.Fatalf("unexpected item after ack: %s", next.ID)
	}
	if err := q.Enqueue(ctx, queue.NewTailorItem(item.JobID, item.UserID, item.ResumeID)); err != nil {
		t.Fatalf("re-enqueue after ack: %v", err)
	}
}

func TestNackReschedulesWithBackoff(t *testing.T) {
	t.Parallel()
	q := newQueue(t, queue.WithStrategy(queue.KindTailor, backoff.NewExponential(2*time.Second, time.Minute)))
	ctx := context.Background()
	workerID := id.NewWorkerID()

	item := dueItem()
	if err := q.Enqueue(ctx, item); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	leased, err := q.Dequeue(ctx, []queue.Kind{queue.KindTailor}, workerID)
	if err != nil || leased == nil {
		t.Fatalf("Dequeue: %v %v", leased, err)
	}

	before := time.Now().UTC()
	dead, err := q.Nack(ctx, leased, errors.New("upstream unavailable"))
	if err != nil {
		t.Fatalf("Nack: %v", err)
	}
	if dead {
		t.Fatal("first failure reported dead")
	}

	// First attempt backs off by the 2s base.
	delay := leased.ScheduledAt.Sub(before)
	if delay < 1500*time.Millisecond || delay > 2500*time.Millisecond {
		t.Fatalf("reschedule delay = %v, want ~2s", delay)
	}
	if leased.LastError == "" {
		t.Fatal("LastError not recorded")
	}
	if leased.LeaseExpiresAt != nil {
		t.Fatal("lease not released on nack")
	}

	// The item is not visible until its backoff elapses.
	got, err := q.Dequeue(ctx, []queue.Kind{queue.KindTailor}, workerID)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got != nil {
		t.Fatalf("backed-off item leased early: %s", got.ID)
	}
}

func TestNackExhaustionMarksTerminal(t *testing.T) {
	t.Parallel()
	q := newQueue(t, queue.WithMaxAttempts(2), queue.WithStrategy(queue.KindTailor, backoff.NewConstant(0)))
	ctx := context.Background()
	workerID := id.NewWorkerID()

	item := dueItem()
	if err := q.Enqueue(ctx, item); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	cause := errors.New("malformed output")
	var dead bool
	for i := 0; i < 2; i++ {
		leased, err := q.Dequeue(ctx, []queue.Kind{queue.KindTailor}, workerID)
		if err != nil || leased == nil {
			t.Fatalf("Dequeue attempt %d: %v %v", i+1, leased, err)
		}
		dead, err = q.Nack(ctx, leased, cause)
		if err != nil {
			t.Fatalf("Nack attempt %d: %v", i+1, err)
		}
		item = leased
	}

	if !dead {
		t.Fatal("exhausted item not reported dead")
	}
	if !item.Terminal {
		t.Fatal("exhausted item not marked terminal")
	}

	// Terminal items are never redelivered.
	got, err := q.Dequeue(ctx, []queue.Kind{queue.KindTailor}, workerID)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got != nil {
		t.Fatalf("terminal item leased: %s", got.ID)
	}
}

func TestReclaim(t *testing.T) {
	t.Parallel()
	q := newQueue(t, queue.WithLeaseTimeout(5*time.Millisecond))
	ctx := context.Background()

	if err := q.Enqueue(ctx, dueItem()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Dequeue(ctx, nil, id.NewWorkerID()); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	n, err := q.Reclaim(ctx)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if n != 1 {
		t.Fatalf("reclaimed %d, want 1", n)
	}
}
