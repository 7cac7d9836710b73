package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/id"
)

// CreateApplication persists a new application.
func (s *Store) CreateApplication(ctx context.Context, app *application.Application) error {
	m := toApplicationModel(app)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return stitch.ErrItemAlreadyExists
		}
		return fmt.Errorf("stitch/bun: create application: %w", err)
	}
	return nil
}

// GetApplication retrieves an application by ID.
func (s *Store) GetApplication(ctx context.Context, appID id.ApplicationID) (*application.Application, error) {
	m := new(applicationModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", appID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("stitch/bun: get application: %w", err)
	}
	return fromApplicationModel(m)
}

// UpdateApplication persists changes to an existing application. The
// status column is deliberately not touched; CASApplicationStatus owns
// status writes.
func (s *Store) UpdateApplication(ctx context.Context, app *application.Application) error {
	m := toApplicationModel(app)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).
		ExcludeColumn("status", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stitch/bun: update application: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return stitch.ErrApplicationNotFound
	}
	return nil
}

// CASApplicationStatus replaces the stored row with app if and only if
// the stored status still equals expect.
func (s *Store) CASApplicationStatus(ctx context.Context, app *application.Application, expect application.Status) error {
	m := toApplicationModel(app)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).
		ExcludeColumn("created_at").
		Where("id = ?", m.ID).
		Where("status = ?", string(expect)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stitch/bun: cas application status: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		// Either the row is gone or another writer changed the status.
		exists, exErr := s.db.NewSelect().
			TableExpr("stitch_applications").
			Where("id = ?", m.ID).
			Exists(ctx)
		if exErr != nil {
			return fmt.Errorf("stitch/bun: cas application status: %w", exErr)
		}
		if !exists {
			return stitch.ErrApplicationNotFound
		}
		return stitch.ErrStatusConflict
	}
	return nil
}

// ListApplications returns applications matching the given options,
// newest first.
func (s *Store) ListApplications(ctx context.Context, opts application.ListOpts) ([]*application.Application, error) {
	var models []applicationModel
	q := s.db.NewSelect().Model(&models)

	if !opts.UserID.IsNil() {
		q = q.Where("user_id = ?", opts.UserID.String())
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}

	q = q.Order("created_at DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("stitch/bun: list applications: %w", err)
	}

	apps := make([]*application.Application, 0, len(models))
	for i := range models {
		app, convErr := fromApplicationModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("stitch/bun: list applications convert: %w", convErr)
		}
		apps = append(apps, app)
	}
	return apps, nil
}
