package dlq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
)

// Service provides high-level dead-letter operations over a Store.
type Service struct {
	store     Store
	itemStore queue.Store
}

// NewService creates a DLQ service. itemStore is used by Replay to
// re-enqueue a fresh item.
func NewService(store Store, itemStore queue.Store) *Service {
	return &Service{store: store, itemStore: itemStore}
}

// Push builds an Entry from a failed queue item and persists it.
// The error string is captured from the original processing error.
func (s *Service) Push(ctx context.Context, item *queue.Item, itemErr error) error {
	now := time.Now().UTC()
	entry := &Entry{
		ID:               id.NewDLQID(),
		ItemID:           item.ID,
		Kind:             item.Kind,
		JobID:            item.JobID,
		UserID:           item.UserID,
		ResumeID:         item.ResumeID,
		TailoredResumeID: item.TailoredResumeID,
		Error:            itemErr.Error(),
		Attempts:         item.Attempt,
		MaxAttempts:      item.MaxAttempts,
		FailedAt:         now,
		CreatedAt:        now,
	}
	return s.store.PushDLQ(ctx, entry)
}

// Replay re-enqueues a dead-lettered entry as a fresh queue item and
// marks the entry as replayed. The new item gets a fresh ID and a zero
// attempt counter but keeps the pre-allocated tailored-resume target so
// a replay still writes to the same row. An entry already replayed, or
// an application with a non-terminal item already in flight, is
// rejected with stitch.ErrAlreadyQueued.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*queue.Item, error) {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.ReplayedAt != nil {
		return nil, fmt.Errorf("%w: entry %s was already replayed", stitch.ErrAlreadyQueued, entry.ID)
	}

	// The same idempotent-submission check Enqueue applies: replaying
	// while a fresh item is in flight would double the work.
	existing, err := s.itemStore.ActiveItemForJob(ctx, entry.JobID)
	if err != nil && !errors.Is(err, stitch.ErrQueueItemNotFound) {
		return nil, fmt.Errorf("dlq: check in-flight work: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: item %s", stitch.ErrAlreadyQueued, existing.ID)
	}

	item := queue.NewTailorItem(entry.JobID, entry.UserID, entry.ResumeID)
	item.Kind = entry.Kind
	if !entry.TailoredResumeID.IsNil() {
		item.TailoredResumeID = entry.TailoredResumeID
	}
	item.MaxAttempts = entry.MaxAttempts

	if err := s.itemStore.PutItem(ctx, item); err != nil {
		return nil, err
	}

	if err := s.store.ReplayDLQ(ctx, entryID); err != nil {
		// The item is already enqueued. Surface the error but keep it.
		return item, err
	}

	return item, nil
}

// DLQStore returns the underlying store for direct access to List, Get,
// Purge, and Count operations.
func (s *Service) DLQStore() Store {
	return s.store
}
