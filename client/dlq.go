package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/stitchhq/stitch/dlq"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
)

// ListDLQ returns dead letter entries, newest first.
func (c *Client) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	query := url.Values{}
	if !opts.JobID.IsNil() {
		query.Set("job", opts.JobID.String())
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	var entries []*dlq.Entry
	if err := c.do(ctx, http.MethodGet, "/v1/dlq", query, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetDLQ retrieves a dead letter entry by ID.
func (c *Client) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	var entry dlq.Entry
	if err := c.do(ctx, http.MethodGet, "/v1/dlq/"+entryID.String(), nil, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ReplayDLQ re-enqueues a dead-lettered item with a fresh attempt
// budget. Operator actor required.
func (c *Client) ReplayDLQ(ctx context.Context, entryID id.DLQID) (*queue.Item, error) {
	var item queue.Item
	if err := c.do(ctx, http.MethodPost, "/v1/dlq/"+entryID.String()+"/replay", nil, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// PurgeDLQ removes entries that failed before the cutoff. A zero
// cutoff lets the server apply its default retention.
func (c *Client) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	query := url.Values{}
	if !before.IsZero() {
		query.Set("before", before.UTC().Format(time.RFC3339))
	}

	var resp struct {
		Purged int64 `json:"purged"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/dlq/purge", query, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Purged, nil
}

// Stats is a point-in-time snapshot of pipeline depth.
type Stats struct {
	QueuedItems int64 `json:"queued_items"`
	DeadLetters int64 `json:"dead_letters"`
}

// GetStats reports queue and dead letter depth.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
