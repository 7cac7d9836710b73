// Package stitch provides a durable resume-tailoring pipeline for Go.
// It accepts (resume, job) pairs, enqueues tailoring work on an
// at-least-once queue, drives an AI generation step, persists structured
// tailored resumes, and advances a multi-actor job-application state
// machine under retry and failure conditions.
//
// Stitch is designed as a library, not a service. Import it, configure a
// store and a generator, and start a worker pool.
//
// # Quick Start
//
//	s := memory.New()
//	eng, err := engine.Build(
//	    engine.WithStore(s),
//	    engine.WithGenerator(gen),
//	)
//
// # Architecture
//
// Stitch follows a composable store pattern where each subsystem
// (application, resume, queue, dlq, event) defines its own store
// interface. A single backend implements all of them. Backends: memory,
// PostgreSQL (bun), and SQLite (gorm).
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package stitch
