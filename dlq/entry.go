// Package dlq provides the dead-letter set for queue items that have
// exhausted their retry budget, and for items that hit permanent data
// errors (missing job or resume) where retrying cannot change the
// outcome. Entries support inspection and replay; they are never
// silently discarded.
package dlq

import (
	"time"

	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
)

// Entry captures a dead-lettered queue item for inspection or replay.
type Entry struct {
	ID     id.DLQID       `json:"id"`
	ItemID id.QueueItemID `json:"item_id"`
	Kind   queue.Kind     `json:"kind"`

	// Payload identity, preserved from the original item.
	JobID            id.ApplicationID `json:"job_id"`
	UserID           id.UserID        `json:"user_id"`
	ResumeID         id.ResumeID      `json:"resume_id"`
	TailoredResumeID id.TailoredID    `json:"tailored_resume_id,omitempty"`

	Error       string     `json:"error"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	FailedAt    time.Time  `json:"failed_at"`
	ReplayedAt  *time.Time `json:"replayed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
