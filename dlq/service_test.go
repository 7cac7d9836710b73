package dlq_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/dlq"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/store/memory"
)

func deadItem() *queue.Item {
	item := queue.NewTailorItem(id.NewApplicationID(), id.NewUserID(), id.NewResumeID())
	item.Attempt = 3
	item.MaxAttempts = 3
	item.Terminal = true
	return item
}

func TestPushAndReplay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	svc := dlq.NewService(s, s)

	item := deadItem()
	if err := svc.Push(ctx, item, errors.New("generation timed out")); err != nil {
		t.Fatalf("Push: %v", err)
	}

	entries, err := s.ListDLQ(ctx, dlq.ListOpts{JobID: item.JobID})
	if err != nil || len(entries) != 1 {
		t.Fatalf("ListDLQ: %v entries, err %v", len(entries), err)
	}
	entry := entries[0]

	replayed, err := svc.Replay(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed.TailoredResumeID != item.TailoredResumeID {
		t.Fatalf("TailoredResumeID = %s, want original target %s", replayed.TailoredResumeID, item.TailoredResumeID)
	}
	if replayed.Attempt != 0 || replayed.Terminal {
		t.Fatalf("replayed item not fresh: attempt %d terminal %v", replayed.Attempt, replayed.Terminal)
	}
	if _, err := s.GetItem(ctx, replayed.ID); err != nil {
		t.Fatalf("GetItem: %v", err)
	}

	got, err := s.GetDLQ(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetDLQ: %v", err)
	}
	if got.ReplayedAt == nil {
		t.Fatal("entry not stamped as replayed")
	}
}

func TestReplayTwiceIsRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	svc := dlq.NewService(s, s)

	item := deadItem()
	if err := svc.Push(ctx, item, errors.New("boom")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	entries, err := s.ListDLQ(ctx, dlq.ListOpts{JobID: item.JobID})
	if err != nil || len(entries) != 1 {
		t.Fatalf("ListDLQ: %v entries, err %v", len(entries), err)
	}
	entryID := entries[0].ID

	replayed, err := svc.Replay(ctx, entryID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	// The replayed item finished and left the queue.
	if err := s.DeleteItem(ctx, replayed.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	if _, err := svc.Replay(ctx, entryID); !errors.Is(err, stitch.ErrAlreadyQueued) {
		t.Fatalf("second replay: got %v, want ErrAlreadyQueued", err)
	}
}

func TestReplayRejectsInFlightWork(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	svc := dlq.NewService(s, s)

	item := deadItem()
	if err := svc.Push(ctx, item, errors.New("boom")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	entries, err := s.ListDLQ(ctx, dlq.ListOpts{JobID: item.JobID})
	if err != nil || len(entries) != 1 {
		t.Fatalf("ListDLQ: %v entries, err %v", len(entries), err)
	}

	// A fresh submission is already in flight for the same application.
	fresh := queue.NewTailorItem(item.JobID, item.UserID, item.ResumeID)
	fresh.MaxAttempts = 3
	if err := s.PutItem(ctx, fresh); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	if _, err := svc.Replay(ctx, entries[0].ID); !errors.Is(err, stitch.ErrAlreadyQueued) {
		t.Fatalf("replay with in-flight item: got %v, want ErrAlreadyQueued", err)
	}
}
