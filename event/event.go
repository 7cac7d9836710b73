// Package event provides the durable audit trail of the tailoring
// pipeline. Every committed status transition and every terminal
// failure is recorded as an Event so operators can reconstruct what
// happened to an application without log archaeology.
package event

import (
	"time"

	"github.com/stitchhq/stitch/id"
)

// Type classifies an audit event.
type Type string

const (
	// TypeStatusChanged records a committed lifecycle transition.
	TypeStatusChanged Type = "status_changed"
	// TypeTailorFailed records a terminal tailoring failure.
	TypeTailorFailed Type = "tailor_failed"
	// TypeTailorRetried records a rescheduled delivery attempt.
	TypeTailorRetried Type = "tailor_retried"
	// TypeDeadLettered records an item moved to the dead letter set.
	TypeDeadLettered Type = "dead_lettered"
)

// Event is one immutable audit record tied to an application.
type Event struct {
	ID     id.EventID       `json:"id"`
	JobID  id.ApplicationID `json:"job_id"`
	Type   Type             `json:"type"`
	Detail string           `json:"detail,omitempty"`
	At     time.Time        `json:"at"`
}

// New builds an event stamped with the current time.
func New(jobID id.ApplicationID, typ Type, detail string) *Event {
	return &Event{
		ID:     id.NewEventID(),
		JobID:  jobID,
		Type:   typ,
		Detail: detail,
		At:     time.Now().UTC(),
	}
}
