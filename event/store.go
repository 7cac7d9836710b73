package event

import (
	"context"

	"github.com/stitchhq/stitch/id"
)

// Store defines the persistence contract for audit events.
type Store interface {
	// RecordEvent persists an event. Events are append-only.
	RecordEvent(ctx context.Context, evt *Event) error

	// ListEventsForJob returns all events for the application, oldest
	// first.
	ListEventsForJob(ctx context.Context, jobID id.ApplicationID) ([]*Event, error)
}
