package stitch

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("stitch: no store configured")
	ErrNoGenerator = errors.New("stitch: no generator configured")
	ErrStoreClosed = errors.New("stitch: store closed")

	// Not found errors.
	ErrApplicationNotFound     = errors.New("stitch: application not found")
	ErrResumeNotFound          = errors.New("stitch: resume not found")
	ErrTailoredResumeNotFound  = errors.New("stitch: tailored resume not found")
	ErrQueueItemNotFound       = errors.New("stitch: queue item not found")
	ErrDLQNotFound             = errors.New("stitch: dlq entry not found")
	ErrEventNotFound           = errors.New("stitch: event not found")

	// Conflict errors.
	ErrItemAlreadyExists = errors.New("stitch: queue item already exists")
	ErrAlreadyQueued     = errors.New("stitch: tailoring request already in flight")

	// Caller errors.
	ErrMissingResume   = errors.New("stitch: application has no resume attached")
	ErrMissingProof    = errors.New("stitch: submission proof required")
	ErrResumeNotParsed = errors.New("stitch: resume has no extracted text")
	ErrForbidden       = errors.New("stitch: operator role required")

	// State errors.
	ErrInvalidStatus      = errors.New("stitch: invalid application status")
	ErrInvalidTransition  = errors.New("stitch: invalid status transition")
	ErrStatusConflict     = errors.New("stitch: application status changed concurrently")
	ErrMaxAttemptsReached = errors.New("stitch: max attempts reached")
)
