package store

import (
	"context"

	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/dlq"
	"github.com/stitchhq/stitch/event"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/resume"
)

// Store is the aggregate persistence interface. Each subsystem store is
// a composable interface; a single backend implements all of them so
// the pipeline's compare-and-set and lease operations share one
// database.
type Store interface {
	application.Store
	resume.Source
	resume.Store
	queue.Store
	dlq.Store
	event.Store

	// PutResume persists a source resume. The parsing pipeline that
	// fills Resume.Text lives upstream; this is the ingestion point.
	PutResume(ctx context.Context, r *resume.Resume) error

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
