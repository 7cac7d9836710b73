package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/id"
)

// CreateApplicationInput describes a new application. UserID may be
// empty when the client carries an actor; the server then assigns
// ownership to the actor.
type CreateApplicationInput struct {
	UserID      string `json:"user_id,omitempty"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url,omitempty"`
	Location    string `json:"location,omitempty"`
	ResumeID    string `json:"resume_id,omitempty"`
}

// CreateApplication imports a job posting as a saved application.
func (c *Client) CreateApplication(ctx context.Context, in CreateApplicationInput) (*application.Application, error) {
	var app application.Application
	if err := c.do(ctx, http.MethodPost, "/v1/applications", nil, in, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// GetApplication retrieves an application by ID.
func (c *Client) GetApplication(ctx context.Context, appID id.ApplicationID) (*application.Application, error) {
	var app application.Application
	if err := c.do(ctx, http.MethodGet, "/v1/applications/"+appID.String(), nil, nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// ListApplications returns applications matching opts, newest first.
func (c *Client) ListApplications(ctx context.Context, opts application.ListOpts) ([]*application.Application, error) {
	query := url.Values{}
	if !opts.UserID.IsNil() {
		query.Set("user", opts.UserID.String())
	}
	if opts.Status != "" {
		query.Set("status", string(opts.Status))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	var apps []*application.Application
	if err := c.do(ctx, http.MethodGet, "/v1/applications", query, nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// TransitionStatus moves an application to the target status. Proof is
// required for the applied transition; withdrawn and rejected need an
// operator actor.
func (c *Client) TransitionStatus(ctx context.Context, appID id.ApplicationID, to application.Status, proof string) (*application.Application, error) {
	body := struct {
		To    string `json:"to"`
		Proof string `json:"proof,omitempty"`
	}{To: string(to), Proof: proof}

	var app application.Application
	if err := c.do(ctx, http.MethodPost, "/v1/applications/"+appID.String()+"/status", nil, body, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// SetStaffStatus applies a staff projection (Applying, Applied,
// Trashed) to an application. Operator actor required.
func (c *Client) SetStaffStatus(ctx context.Context, appID id.ApplicationID, staff application.StaffStatus, proof string) (*application.Application, error) {
	body := struct {
		Status string `json:"status"`
		Proof  string `json:"proof,omitempty"`
	}{Status: string(staff), Proof: proof}

	var app application.Application
	if err := c.do(ctx, http.MethodPost, "/v1/applications/"+appID.String()+"/staff-status", nil, body, &app); err != nil {
		return nil, err
	}
	return &app, nil
}
