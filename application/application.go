// Package application defines the job-application entity, its lifecycle
// status machine, and the persistence contract used by the tailoring
// pipeline. Status mutations go through compare-and-set updates so
// concurrent writers never silently clobber each other.
package application

import (
	"fmt"
	"time"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/id"
)

// Status is the lifecycle state of a job application.
type Status string

const (
	// StatusSaved means the application is imported but no tailoring has
	// run (or the last run failed and may be retried).
	StatusSaved Status = "saved"
	// StatusTailoring means a tailoring request is in flight.
	StatusTailoring Status = "tailoring"
	// StatusTailored means a tailored resume exists for this application.
	StatusTailored Status = "tailored"
	// StatusApplied means a submission was recorded with proof.
	StatusApplied Status = "applied"
	// StatusInterviewing means the candidacy progressed to interviews.
	StatusInterviewing Status = "interviewing"
	// StatusOffer means an offer was extended.
	StatusOffer Status = "offer"
	// StatusClosed means the candidacy ended.
	StatusClosed Status = "closed"
	// StatusWithdrawn is the operator side channel for abandoning an
	// application, reachable from any non-terminal state.
	StatusWithdrawn Status = "withdrawn"
	// StatusRejected is the operator side channel for a rejection
	// recorded outside the forward progression.
	StatusRejected Status = "rejected"
)

// ParseStatus validates a raw status value at the storage boundary.
// Unknown values fail rather than propagate silently.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusSaved, StatusTailoring, StatusTailored, StatusApplied,
		StatusInterviewing, StatusOffer, StatusClosed,
		StatusWithdrawn, StatusRejected:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: %q", stitch.ErrInvalidStatus, s)
	}
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusClosed, StatusWithdrawn, StatusRejected:
		return true
	default:
		return false
	}
}

// Application represents one user's candidacy for one posting.
type Application struct {
	stitch.Entity

	ID     id.ApplicationID `json:"id"`
	UserID id.UserID        `json:"user_id"`

	// Descriptive fields, immutable after import except by explicit edit.
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url,omitempty"`
	Location    string `json:"location,omitempty"`

	// ResumeID is the tailoring input. Tailoring cannot run until set.
	ResumeID id.ResumeID `json:"resume_id,omitempty"`

	Status Status `json:"status"`

	// TailoredResumeID points at the most recent tailored resume,
	// set only on successful completion of a tailoring run.
	TailoredResumeID id.TailoredID `json:"tailored_resume_id,omitempty"`

	// Artifacts attached by later manual steps; never mutated by the
	// pipeline itself.
	CoverLetter     string `json:"cover_letter,omitempty"`
	SubmissionProof string `json:"submission_proof,omitempty"`

	// FailureReason annotates a saved application whose last tailoring
	// run exhausted its retries.
	FailureReason string `json:"failure_reason,omitempty"`

	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// New creates a saved application owned by userID.
func New(userID id.UserID, title, company, description string) *Application {
	return &Application{
		Entity:      stitch.NewEntity(),
		ID:          id.NewApplicationID(),
		UserID:      userID,
		Title:       title,
		Company:     company,
		Description: description,
		Status:      StatusSaved,
	}
}

// ──────────────────────────────────────────────────
// Staff projection
// ──────────────────────────────────────────────────

// StaffStatus is the staff-facing projection of Status. It carries less
// detail than the underlying lifecycle but maps back without loss:
// each staff value corresponds to one canonical Status.
type StaffStatus string

const (
	StaffApplying StaffStatus = "Applying"
	StaffApplied  StaffStatus = "Applied"
	StaffTrashed  StaffStatus = "Trashed"
)

// StaffView projects a lifecycle status onto the staff-facing view.
func StaffView(s Status) StaffStatus {
	switch s {
	case StatusApplied, StatusInterviewing, StatusOffer, StatusClosed:
		return StaffApplied
	case StatusWithdrawn, StatusRejected:
		return StaffTrashed
	default:
		return StaffApplying
	}
}

// CanonicalStatus maps a staff value back to its canonical lifecycle
// status: Applying → saved, Applied → applied, Trashed → withdrawn.
func CanonicalStatus(s StaffStatus) (Status, error) {
	switch s {
	case StaffApplying:
		return StatusSaved, nil
	case StaffApplied:
		return StatusApplied, nil
	case StaffTrashed:
		return StatusWithdrawn, nil
	default:
		return "", fmt.Errorf("%w: staff status %q", stitch.ErrInvalidStatus, s)
	}
}
