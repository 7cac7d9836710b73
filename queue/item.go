// Package queue implements the durable, at-least-once work queue that
// decouples tailoring submission from processing. Items are leased by
// workers; a dequeued-but-unacknowledged item becomes visible again
// after its lease expires, so a crashed worker's item is retried by
// another worker. Ordering across items is not guaranteed.
package queue

import (
	"time"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/id"
)

// Kind distinguishes the work carried by an item.
type Kind string

const (
	// KindTailor requests AI tailoring of a resume against a job.
	KindTailor Kind = "tailor"
	// KindParse requests text extraction for an uploaded resume.
	KindParse Kind = "parse"
)

// Item is a pending unit of work.
type Item struct {
	stitch.Entity

	ID   id.QueueItemID `json:"id"`
	Kind Kind           `json:"kind"`

	JobID    id.ApplicationID `json:"job_id"`
	UserID   id.UserID        `json:"user_id"`
	ResumeID id.ResumeID      `json:"resume_id"`

	// TailoredResumeID is pre-allocated at enqueue time so the worker
	// writes to a known row rather than creating one non-idempotently.
	TailoredResumeID id.TailoredID `json:"tailored_resume_id,omitempty"`

	// Delivery metadata.
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	LastError   string    `json:"last_error,omitempty"`
	Terminal    bool      `json:"terminal"`
	ScheduledAt time.Time `json:"scheduled_at"`

	// Lease state. A nil LeaseExpiresAt means the item is not held by
	// any worker.
	LeaseExpiresAt *time.Time  `json:"lease_expires_at,omitempty"`
	WorkerID       id.WorkerID `json:"worker_id,omitempty"`
}

// NewTailorItem builds a tailoring work item with a freshly allocated
// target row ID.
func NewTailorItem(jobID id.ApplicationID, userID id.UserID, resumeID id.ResumeID) *Item {
	return &Item{
		Entity:           stitch.NewEntity(),
		ID:               id.NewQueueItemID(),
		Kind:             KindTailor,
		JobID:            jobID,
		UserID:           userID,
		ResumeID:         resumeID,
		TailoredResumeID: id.NewTailoredID(),
		ScheduledAt:      time.Now().UTC(),
	}
}

// NewParseItem builds a parsing work item.
func NewParseItem(jobID id.ApplicationID, userID id.UserID, resumeID id.ResumeID) *Item {
	return &Item{
		Entity:      stitch.NewEntity(),
		ID:          id.NewQueueItemID(),
		Kind:        KindParse,
		JobID:       jobID,
		UserID:      userID,
		ResumeID:    resumeID,
		ScheduledAt: time.Now().UTC(),
	}
}

// Leased reports whether the item holds an unexpired lease at t.
func (i *Item) Leased(t time.Time) bool {
	return i.LeaseExpiresAt != nil && i.LeaseExpiresAt.After(t)
}

// Due reports whether the item is eligible for leasing at t.
func (i *Item) Due(t time.Time) bool {
	return !i.Terminal && !i.ScheduledAt.After(t) && !i.Leased(t)
}
