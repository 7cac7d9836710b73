package application

import (
	"context"

	"github.com/stitchhq/stitch/id"
)

// ListOpts controls pagination and filtering for application list queries.
type ListOpts struct {
	// Limit is the maximum number of applications to return. Zero means
	// no limit.
	Limit int
	// Offset is the number of applications to skip.
	Offset int
	// UserID filters by owner. Nil means all users.
	UserID id.UserID
	// Status filters by lifecycle status. Empty means all statuses.
	Status Status
}

// Store defines the persistence contract for job applications.
type Store interface {
	// CreateApplication persists a new application.
	CreateApplication(ctx context.Context, app *Application) error

	// GetApplication retrieves an application by ID.
	GetApplication(ctx context.Context, appID id.ApplicationID) (*Application, error)

	// UpdateApplication persists changes to an existing application
	// without a status guard. It must not be used to change Status;
	// use CASApplicationStatus for that.
	UpdateApplication(ctx context.Context, app *Application) error

	// CASApplicationStatus atomically replaces the stored row with app
	// if and only if the stored status still equals expect. Returns
	// stitch.ErrStatusConflict when another writer got there first.
	// This is the only way the pipeline commits status changes.
	CASApplicationStatus(ctx context.Context, app *Application, expect Status) error

	// ListApplications returns applications matching the given options,
	// newest first.
	ListApplications(ctx context.Context, opts ListOpts) ([]*Application, error)
}
