// Package store defines the aggregate persistence interface.
//
// Each subsystem (application, resume, queue, dlq, event) defines its
// own store interface. The composite [Store] composes them all. A
// single backend need only implement Store to satisfy every
// subsystem's persistence contract, which keeps the pipeline's
// compare-and-set commits and lease claims on one database.
//
// The composite interface:
//
//	type Store interface {
//	    application.Store
//	    resume.Source
//	    resume.Store
//	    queue.Store
//	    dlq.Store
//	    event.Store
//
//	    PutResume(ctx context.Context, r *resume.Resume) error
//	    Migrate(ctx context.Context) error
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory — in-memory store for development and testing
//   - store/bun — PostgreSQL backend using Bun ORM
//   - store/sqlite — single-process SQLite backend using GORM
//
// # Usage
//
//	import (
//	    "github.com/uptrace/bun"
//	    bunstore "github.com/stitchhq/stitch/store/bun"
//	)
//
//	s := bunstore.New(db)
//	eng, err := engine.Build(engine.WithStore(s), ...)
//
// # Migrations
//
// Call Migrate once at startup to create or update the schema:
//
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package store
