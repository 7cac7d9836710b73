package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/actor"
	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/engine"
	"github.com/stitchhq/stitch/genai"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/resume"
	"github.com/stitchhq/stitch/store/memory"
)

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, *resume.Resume, string, string, string) (*resume.TailoredContent, error) {
	return &resume.TailoredContent{Summary: "Tailored.", MatchScore: 82}, nil
}

// gatedGenerator blocks generation until released, keeping a request
// in flight for as long as a test needs it to be.
type gatedGenerator struct {
	release chan struct{}
}

func (g *gatedGenerator) Generate(ctx context.Context, _ *resume.Resume, _, _, _ string) (*resume.TailoredContent, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &resume.TailoredContent{Summary: "Tailored.", MatchScore: 82}, nil
}

type fixture struct {
	srv   *httptest.Server
	eng   *engine.Engine
	store *memory.Store
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, stubGenerator{})
}

func newFixtureWith(t *testing.T, gen genai.Generator) *fixture {
	t.Helper()
	s := memory.New()
	cfg := stitch.DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.Build(
		engine.WithStore(s),
		engine.WithGenerator(gen),
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = eng.Stop(ctx)
	})

	srv := httptest.NewServer(New(eng, WithLogger(logger)).Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, eng: eng, store: s}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func (f *fixture) seedApplication(t *testing.T) *application.Application {
	t.Helper()
	ctx := context.Background()
	userID := id.NewUserID()
	src := &resume.Resume{
		Entity: stitch.NewEntity(),
		ID:     id.NewResumeID(),
		UserID: userID,
		Skills: []string{"Go"},
		Text:   "Engineer.",
	}
	if err := f.store.PutResume(ctx, src); err != nil {
		t.Fatalf("PutResume: %v", err)
	}
	app := application.New(userID, "Backend Engineer", "Acme", "Go services.")
	app.ResumeID = src.ID
	if err := f.store.CreateApplication(ctx, app); err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	return app
}

func TestCreateAndGetApplication(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, raw := f.do(t, http.MethodPost, "/v1/applications", CreateApplicationRequest{
		UserID:      id.NewUserID().String(),
		Title:       "Backend Engineer",
		Company:     "Acme",
		Description: "Go services.",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}
	var created application.Application
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != application.StatusSaved {
		t.Fatalf("got status %s, want saved", created.Status)
	}

	resp, raw = f.do(t, http.MethodGet, "/v1/applications/"+created.ID.String(), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}

	resp, _ = f.do(t, http.MethodGet, "/v1/applications/"+id.NewApplicationID().String(), nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got %d, want 404", resp.StatusCode)
	}
}

func TestCreateApplicationUsesActorAsOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	userID := id.NewUserID()
	resp, raw := f.do(t, http.MethodPost, "/v1/applications", CreateApplicationRequest{
		Title:       "Backend Engineer",
		Company:     "Acme",
		Description: "Go services.",
	}, map[string]string{headerActorID: userID.String()})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}
	var created application.Application
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.UserID != userID {
		t.Fatalf("got owner %s, want %s", created.UserID, userID)
	}

	resp, _ = f.do(t, http.MethodPost, "/v1/applications", CreateApplicationRequest{
		Title:   "Backend Engineer",
		Company: "Acme",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got %d, want 400 without owner", resp.StatusCode)
	}
}

func TestTailoringEndToEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	app := f.seedApplication(t)

	resp, raw := f.do(t, http.MethodPost, fmt.Sprintf("/v1/applications/%s/tailor", app.ID), nil, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}
	var item queue.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var status engine.TailoringStatus
	for {
		resp, raw = f.do(t, http.MethodGet, fmt.Sprintf("/v1/applications/%s/tailoring", app.ID), nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("got %d: %s", resp.StatusCode, raw)
		}
		if err := json.Unmarshal(raw, &status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if status.Status == application.StatusTailored {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out in status %s", status.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status.MatchScore == nil || *status.MatchScore != 82 {
		t.Fatalf("unexpected match score: %v", status.MatchScore)
	}

	resp, raw = f.do(t, http.MethodGet, "/v1/tailored/"+status.TailoredResumeID.String(), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}

	summary := "Edited summary"
	resp, raw = f.do(t, http.MethodPatch, "/v1/tailored/"+status.TailoredResumeID.String(),
		resume.ContentPatch{Summary: &summary}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}
	var tr resume.TailoredResume
	if err := json.Unmarshal(raw, &tr); err != nil {
		t.Fatalf("decode tailored: %v", err)
	}
	if tr.Summary != summary {
		t.Fatalf("got summary %q", tr.Summary)
	}

	resp, raw = f.do(t, http.MethodGet, fmt.Sprintf("/v1/applications/%s/events", app.ID), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}
	var events []json.RawMessage
	if err := json.Unmarshal(raw, &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected at least one audit event")
	}
}

func TestSubmitWhileInFlightConflicts(t *testing.T) {
	t.Parallel()
	gen := &gatedGenerator{release: make(chan struct{})}
	f := newFixtureWith(t, gen)
	app := f.seedApplication(t)
	defer close(gen.release)

	path := fmt.Sprintf("/v1/applications/%s/tailor", app.ID)

	resp, raw := f.do(t, http.MethodPost, path, nil, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}

	resp, raw = f.do(t, http.MethodPost, path, nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate submit: got %d: %s", resp.StatusCode, raw)
	}
}

func TestOperatorTransitionsNeedRole(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	app := f.seedApplication(t)

	path := fmt.Sprintf("/v1/applications/%s/status", app.ID)

	resp, _ := f.do(t, http.MethodPost, path, TransitionStatusRequest{To: "withdrawn"}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("got %d, want 403 without actor", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodPost, path, TransitionStatusRequest{To: "withdrawn"}, map[string]string{
		headerActorID:   id.NewUserID().String(),
		headerActorRole: string(actor.RoleUser),
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("got %d, want 403 for plain user", resp.StatusCode)
	}

	resp, raw := f.do(t, http.MethodPost, path, TransitionStatusRequest{To: "withdrawn"}, map[string]string{
		headerActorID:   id.NewUserID().String(),
		headerActorRole: string(actor.RoleAdmin),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}
	var got application.Application
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != application.StatusWithdrawn {
		t.Fatalf("got status %s, want withdrawn", got.Status)
	}
}

func TestTransitionAppliedRequiresProof(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	app := f.seedApplication(t)

	path := fmt.Sprintf("/v1/applications/%s/status", app.ID)

	resp, _ := f.do(t, http.MethodPost, path, TransitionStatusRequest{To: "applied"}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("got %d, want 422 without proof", resp.StatusCode)
	}

	resp, raw := f.do(t, http.MethodPost, path, TransitionStatusRequest{
		To:    "applied",
		Proof: "https://jobs.acme.test/c/123",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}
}

func TestStatsAndDLQ(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, raw := f.do(t, http.MethodGet, "/v1/stats", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}
	var stats StatsResponse
	if err := json.Unmarshal(raw, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.DeadLetters != 0 {
		t.Fatalf("got %d dead letters, want 0", stats.DeadLetters)
	}

	resp, raw = f.do(t, http.MethodGet, "/v1/dlq", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d: %s", resp.StatusCode, raw)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}

	resp, _ = f.do(t, http.MethodGet, "/v1/dlq/"+id.NewDLQID().String(), nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got %d, want 404", resp.StatusCode)
	}
}
