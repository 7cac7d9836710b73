package bunstore

import (
	"context"
	"fmt"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/resume"
)

// PutResume persists a source resume, replacing any existing row.
func (s *Store) PutResume(ctx context.Context, r *resume.Resume) error {
	m, err := toResumeModel(r)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("full_name = EXCLUDED.full_name").
		Set("headline = EXCLUDED.headline").
		Set("skills = EXCLUDED.skills").
		Set("experience = EXCLUDED.experience").
		Set("text = EXCLUDED.text").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stitch/bun: put resume: %w", err)
	}
	return nil
}

// GetResume retrieves a source resume by ID.
func (s *Store) GetResume(ctx context.Context, resumeID id.ResumeID) (*resume.Resume, error) {
	m := new(resumeModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", resumeID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrResumeNotFound
		}
		return nil, fmt.Errorf("stitch/bun: get resume: %w", err)
	}
	return fromResumeModel(m)
}

// UpsertTailoredResume writes the row with tr.ID, replacing any
// existing row with the same ID. Duplicate deliveries land on the same
// row because the ID is allocated at enqueue time.
func (s *Store) UpsertTailoredResume(ctx context.Context, tr *resume.TailoredResume) error {
	m, err := toTailoredResumeModel(tr)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("summary = EXCLUDED.summary").
		Set("experience = EXCLUDED.experience").
		Set("skills = EXCLUDED.skills").
		Set("matched_keywords = EXCLUDED.matched_keywords").
		Set("missing_keywords = EXCLUDED.missing_keywords").
		Set("match_score = EXCLUDED.match_score").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stitch/bun: upsert tailored resume: %w", err)
	}
	return nil
}

// GetTailoredResume retrieves a tailored resume by ID.
func (s *Store) GetTailoredResume(ctx context.Context, trID id.TailoredID) (*resume.TailoredResume, error) {
	m := new(tailoredResumeModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", trID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrTailoredResumeNotFound
		}
		return nil, fmt.Errorf("stitch/bun: get tailored resume: %w", err)
	}
	return fromTailoredResumeModel(m)
}

// LatestTailoredResumeForJob returns the most recently created row for
// the given application.
func (s *Store) LatestTailoredResumeForJob(ctx context.Context, jobID id.ApplicationID) (*resume.TailoredResume, error) {
	m := new(tailoredResumeModel)
	err := s.db.NewSelect().Model(m).
		Where("job_id = ?", jobID.String()).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrTailoredResumeNotFound
		}
		return nil, fmt.Errorf("stitch/bun: latest tailored resume: %w", err)
	}
	return fromTailoredResumeModel(m)
}

// PatchTailoredResume applies owner edits to an existing row.
func (s *Store) PatchTailoredResume(ctx context.Context, trID id.TailoredID, patch resume.ContentPatch) (*resume.TailoredResume, error) {
	// Read-modify-write keeps the patch semantics in one place.
	tr, err := s.GetTailoredResume(ctx, trID)
	if err != nil {
		return nil, err
	}
	patch.Apply(tr)
	if err := s.UpsertTailoredResume(ctx, tr); err != nil {
		return nil, err
	}
	return tr, nil
}
