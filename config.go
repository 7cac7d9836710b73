package stitch

import "time"

// Config holds configuration for the tailoring pipeline.
type Config struct {
	// Concurrency is the maximum number of queue items processed
	// concurrently by the worker pool.
	Concurrency int

	// PollInterval is how often idle workers poll the queue for work.
	PollInterval time.Duration

	// LeaseTimeout is how long a dequeued item stays invisible before
	// it is considered abandoned and becomes leasable again.
	LeaseTimeout time.Duration

	// MaxAttempts bounds delivery attempts per queue item before the
	// item is dead-lettered.
	MaxAttempts int

	// TailorBackoffBase is the initial retry delay for tailoring items.
	// Delays double per attempt.
	TailorBackoffBase time.Duration

	// ParseBackoffBase is the initial retry delay for parsing items.
	ParseBackoffBase time.Duration

	// GenerationTimeout bounds a single AI generation call.
	GenerationTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults. Retry and
// backoff constants are deliberately configuration, not assumptions
// baked into the worker.
func DefaultConfig() Config {
	return Config{
		Concurrency:       4,
		PollInterval:      1 * time.Second,
		LeaseTimeout:      60 * time.Second,
		MaxAttempts:       3,
		TailorBackoffBase: 2 * time.Second,
		ParseBackoffBase:  1 * time.Second,
		GenerationTimeout: 20 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}
