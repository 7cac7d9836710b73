// Package client provides a Go client for a remote stitch API server.
//
// Usage:
//
//	c := client.New("https://stitch.internal",
//	    client.WithActor(userID, actor.RoleUser),
//	)
//
//	app, err := c.CreateApplication(ctx, client.CreateApplicationInput{
//	    Title:   "Backend Engineer",
//	    Company: "Acme",
//	})
//	item, err := c.SubmitForTailoring(ctx, app.ID)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stitchhq/stitch/actor"
	"github.com/stitchhq/stitch/id"
)

const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// Client talks to a stitch API server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	actorID   id.UserID
	actorRole actor.Role
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithActor sets the caller identity sent on every request.
func WithActor(userID id.UserID, role actor.Role) Option {
	return func(c *Client) {
		c.actorID = userID
		c.actorRole = role
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stitch/client: server returned %d: %s", e.StatusCode, e.Message)
}

// do issues a request and decodes the JSON response into out when the
// server answers 2xx. A non-2xx response becomes an *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("stitch/client: encode request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return fmt.Errorf("stitch/client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !c.actorID.IsNil() {
		req.Header.Set(headerActorID, c.actorID.String())
	}
	if c.actorRole != "" {
		req.Header.Set(headerActorRole, string(c.actorRole))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stitch/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("stitch/client: decode response: %w", err)
	}
	return nil
}
