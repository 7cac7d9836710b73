package client

import (
	"context"
	"net/http"

	"github.com/stitchhq/stitch/engine"
	"github.com/stitchhq/stitch/event"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/resume"
)

// SubmitForTailoring enqueues an asynchronous tailoring run for the
// application. The returned item carries the pre-allocated tailored
// resume ID.
func (c *Client) SubmitForTailoring(ctx context.Context, appID id.ApplicationID) (*queue.Item, error) {
	var item queue.Item
	if err := c.do(ctx, http.MethodPost, "/v1/applications/"+appID.String()+"/tailor", nil, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// TailoringStatus reports where the application's tailoring run stands.
func (c *Client) TailoringStatus(ctx context.Context, appID id.ApplicationID) (*engine.TailoringStatus, error) {
	var status engine.TailoringStatus
	if err := c.do(ctx, http.MethodGet, "/v1/applications/"+appID.String()+"/tailoring", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Events returns the application's audit trail, oldest first.
func (c *Client) Events(ctx context.Context, appID id.ApplicationID) ([]*event.Event, error) {
	var events []*event.Event
	if err := c.do(ctx, http.MethodGet, "/v1/applications/"+appID.String()+"/events", nil, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetTailoredResume retrieves a tailored resume by ID.
func (c *Client) GetTailoredResume(ctx context.Context, trID id.TailoredID) (*resume.TailoredResume, error) {
	var tr resume.TailoredResume
	if err := c.do(ctx, http.MethodGet, "/v1/tailored/"+trID.String(), nil, nil, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// PatchTailoredResume applies owner edits to a tailored resume. Nil
// patch fields are left unchanged; edits never re-trigger tailoring.
func (c *Client) PatchTailoredResume(ctx context.Context, trID id.TailoredID, patch resume.ContentPatch) (*resume.TailoredResume, error) {
	var tr resume.TailoredResume
	if err := c.do(ctx, http.MethodPatch, "/v1/tailored/"+trID.String(), nil, patch, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}
