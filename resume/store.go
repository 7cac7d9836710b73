package resume

import (
	"context"

	"github.com/stitchhq/stitch/id"
)

// Source hands out structured resume data. It models the upstream
// resume-storage collaborator; the text-extraction pipeline that fills
// Text is outside this module.
type Source interface {
	// GetResume retrieves a source resume by ID. Returns
	// stitch.ErrResumeNotFound when the resume does not exist.
	GetResume(ctx context.Context, resumeID id.ResumeID) (*Resume, error)
}

// Store defines the persistence contract for tailored resumes.
type Store interface {
	// UpsertTailoredResume writes the row with tr.ID, replacing any
	// existing row with the same ID. The ID is pre-allocated at enqueue
	// time so duplicate deliveries land on the same row.
	UpsertTailoredResume(ctx context.Context, tr *TailoredResume) error

	// GetTailoredResume retrieves a tailored resume by ID.
	GetTailoredResume(ctx context.Context, trID id.TailoredID) (*TailoredResume, error)

	// LatestTailoredResumeForJob returns the most recently created row
	// for the given application, or stitch.ErrTailoredResumeNotFound.
	LatestTailoredResumeForJob(ctx context.Context, jobID id.ApplicationID) (*TailoredResume, error)

	// PatchTailoredResume applies owner edits to an existing row. Edits
	// never re-trigger tailoring.
	PatchTailoredResume(ctx context.Context, trID id.TailoredID, patch ContentPatch) (*TailoredResume, error)
}

// ContentPatch is a partial update to tailored content. Nil fields are
// left unchanged.
type ContentPatch struct {
	Summary    *string               `json:"summary,omitempty"`
	Experience *[]TailoredExperience `json:"experience,omitempty"`
	Skills     *[]string             `json:"skills,omitempty"`
}

// Apply mutates tr in place and bumps its timestamps.
func (p ContentPatch) Apply(tr *TailoredResume) {
	if p.Summary != nil {
		tr.Summary = *p.Summary
	}
	if p.Experience != nil {
		tr.Experience = *p.Experience
	}
	if p.Skills != nil {
		tr.Skills = *p.Skills
	}
	tr.Touch()
}
