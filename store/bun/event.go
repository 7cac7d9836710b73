package bunstore

import (
	"context"
	"fmt"

	"github.com/stitchhq/stitch/event"
	"github.com/stitchhq/stitch/id"
)

// RecordEvent persists an audit event.
func (s *Store) RecordEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("stitch/bun: record event: %w", err)
	}
	return nil
}

// ListEventsForJob returns all events for the application, oldest first.
func (s *Store) ListEventsForJob(ctx context.Context, jobID id.ApplicationID) ([]*event.Event, error) {
	var models []eventModel
	err := s.db.NewSelect().Model(&models).
		Where("job_id = ?", jobID.String()).
		Order("at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: list events: %w", err)
	}

	events := make([]*event.Event, 0, len(models))
	for i := range models {
		evt, convErr := fromEventModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("stitch/bun: list events convert: %w", convErr)
		}
		events = append(events, evt)
	}
	return events, nil
}
