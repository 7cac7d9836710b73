package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/actor"
	"github.com/stitchhq/stitch/api"
	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/engine"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/resume"
	"github.com/stitchhq/stitch/store/memory"
)

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, *resume.Resume, string, string, string) (*resume.TailoredContent, error) {
	return &resume.TailoredContent{Summary: "Tailored.", MatchScore: 77}, nil
}

func newServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	s := memory.New()
	cfg := stitch.DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.Build(
		engine.WithStore(s),
		engine.WithGenerator(stubGenerator{}),
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

	srv := httptest.NewServer(api.New(eng, api.WithLogger(logger)).Handler())
	t.Cleanup(srv.Close)
	return srv, s
}

func TestClientRoundTrip(t *testing.T) {
	t.Parallel()
	srv, s := newServer(t)
	ctx := context.Background()

	userID := id.NewUserID()
	src := &resume.Resume{
		Entity: stitch.NewEntity(),
		ID:     id.NewResumeID(),
		UserID: userID,
		Skills: []string{"Go"},
		Text:   "Engineer.",
	}
	if err := s.PutResume(ctx, src); err != nil {
		t.Fatalf("PutResume: %v", err)
	}

	c := New(srv.URL, WithActor(userID, actor.RoleUser))

	app, err := c.CreateApplication(ctx, CreateApplicationInput{
		Title:       "Backend Engineer",
		Company:     "Acme",
		Description: "Go services.",
		ResumeID:    src.ID.String(),
	})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if app.UserID != userID || app.Status != application.StatusSaved {
		t.Fatalf("unexpected application: %+v", app)
	}

	item, err := c.SubmitForTailoring(ctx, app.ID)
	if err != nil {
		t.Fatalf("SubmitForTailoring: %v", err)
	}
	if item.TailoredResumeID.IsNil() {
		t.Fatal("item missing pre-allocated tailored resume ID")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := c.TailoringStatus(ctx, app.ID)
		if err != nil {
			t.Fatalf("TailoringStatus: %v", err)
		}
		if status.Status == application.StatusTailored {
			if status.MatchScore == nil || *status.MatchScore != 77 {
				t.Fatalf("unexpected match score: %v", status.MatchScore)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out in status %s", status.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	tr, err := c.GetTailoredResume(ctx, item.TailoredResumeID)
	if err != nil {
		t.Fatalf("GetTailoredResume: %v", err)
	}
	if tr.Summary != "Tailored." {
		t.Fatalf("got summary %q", tr.Summary)
	}

	summary := "Edited summary"
	patched, err := c.PatchTailoredResume(ctx, tr.ID, resume.ContentPatch{Summary: &summary})
	if err != nil {
		t.Fatalf("PatchTailoredResume: %v", err)
	}
	if patched.Summary != summary {
		t.Fatalf("got summary %q", patched.Summary)
	}

	events, err := c.Events(ctx, app.ID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected audit events")
	}

	apps, err := c.ListApplications(ctx, application.ListOpts{UserID: userID})
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("got %d applications, want 1", len(apps))
	}
}

func TestClientOperatorErrors(t *testing.T) {
	t.Parallel()
	srv, s := newServer(t)
	ctx := context.Background()

	app := application.New(id.NewUserID(), "Backend Engineer", "Acme", "Go services.")
	if err := s.CreateApplication(ctx, app); err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}

	plain := New(srv.URL, WithActor(id.NewUserID(), actor.RoleUser))
	_, err := plain.TransitionStatus(ctx, app.ID, application.StatusWithdrawn, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 403 {
		t.Fatalf("expected 403 APIError, got %v", err)
	}

	admin := New(srv.URL, WithActor(id.NewUserID(), actor.RoleAdmin))
	got, err := admin.TransitionStatus(ctx, app.ID, application.StatusWithdrawn, "")
	if err != nil {
		t.Fatalf("TransitionStatus as admin: %v", err)
	}
	if got.Status != application.StatusWithdrawn {
		t.Fatalf("got status %s, want withdrawn", got.Status)
	}

	stats, err := admin.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.DeadLetters != 0 {
		t.Fatalf("got %d dead letters, want 0", stats.DeadLetters)
	}
}
