package genai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/resume"
)

func sourceResume() *resume.Resume {
	return &resume.Resume{
		ID:       id.NewResumeID(),
		UserID:   id.NewUserID(),
		FullName: "Ada Example",
		Skills:   []string{"Go", "PostgreSQL"},
		Experience: []resume.Experience{
			{Company: "Acme", Role: "Engineer", Bullets: []string{"Built services in Go"}},
		},
		Text: "Ada Example. Engineer at Acme. Built services in Go and PostgreSQL.",
	}
}

const validOutput = `{
	"summary": "Engineer with Go experience.",
	"experience": [
		{"company": "Acme", "role": "Engineer", "bullets": ["Shipped Go services"]},
		{"company": "Empty", "role": "NoBullets", "bullets": []}
	],
	"skills": ["Go"],
	"matched_keywords": ["Go"],
	"missing_keywords": ["Kubernetes"],
	"match_score": 82
}`

// cannedClient returns fixed output or a fixed error.
type cannedClient struct {
	output string
	err    error
	calls  int
}

func (c *cannedClient) Complete(_ context.Context, _, _ string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.output, nil
}

func TestParseContent(t *testing.T) {
	t.Parallel()

	t.Run("valid output", func(t *testing.T) {
		content, err := parseContent(validOutput)
		if err != nil {
			t.Fatalf("parseContent: %v", err)
		}
		if content.Summary == "" {
			t.Error("summary empty")
		}
		if content.MatchScore != 82 {
			t.Errorf("match score = %d, want 82", content.MatchScore)
		}
		if len(content.Experience) != 1 {
			t.Fatalf("expected bullet-less entry dropped, got %d entries", len(content.Experience))
		}
		if len(content.MissingKeywords) != 1 || content.MissingKeywords[0] != "Kubernetes" {
			t.Errorf("missing keywords = %v", content.MissingKeywords)
		}
	})

	t.Run("markdown fences stripped", func(t *testing.T) {
		fenced := "```json\n" + validOutput + "\n```"
		if _, err := parseContent(fenced); err != nil {
			t.Fatalf("parseContent with fences: %v", err)
		}
	})

	t.Run("missing fields normalized", func(t *testing.T) {
		content, err := parseContent(`{"summary": "only a summary"}`)
		if err != nil {
			t.Fatalf("parseContent: %v", err)
		}
		if content.Skills == nil || content.MatchedKeywords == nil || content.MissingKeywords == nil {
			t.Error("nil slices not normalized to empty")
		}
		if content.MatchScore != 0 {
			t.Errorf("match score = %d, want 0", content.MatchScore)
		}
	})

	t.Run("score clamped", func(t *testing.T) {
		tests := []struct {
			raw  string
			want int
		}{
			{`{"match_score": 150}`, 100},
			{`{"match_score": -10}`, 0},
			{`{"match_score": 55}`, 55},
		}
		for _, tt := range tests {
			content, err := parseContent(tt.raw)
			if err != nil {
				t.Fatalf("parseContent(%s): %v", tt.raw, err)
			}
			if content.MatchScore != tt.want {
				t.Errorf("score for %s = %d, want %d", tt.raw, content.MatchScore, tt.want)
			}
		}
	})

	t.Run("unparseable output fails", func(t *testing.T) {
		_, err := parseContent("I could not produce JSON, sorry.")
		ge, ok := AsGenerationError(err)
		if !ok {
			t.Fatalf("expected GenerationError, got %v", err)
		}
		if ge.Reason != ReasonMalformedOutput {
			t.Errorf("reason = %s, want malformed_output", ge.Reason)
		}
	})
}

func TestTailorerGenerate(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		gen := NewTailorer(&cannedClient{output: validOutput})
		content, err := gen.Generate(context.Background(), sourceResume(), "Backend Engineer", "Acme", "Go services")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if content.MatchScore != 82 {
			t.Errorf("match score = %d, want 82", content.MatchScore)
		}
	})

	t.Run("resume without text is a caller error", func(t *testing.T) {
		gen := NewTailorer(&cannedClient{output: validOutput})
		src := sourceResume()
		src.Text = ""
		_, err := gen.Generate(context.Background(), src, "t", "c", "d")
		if !errors.Is(err, stitch.ErrResumeNotParsed) {
			t.Fatalf("expected ErrResumeNotParsed, got %v", err)
		}
		if _, ok := AsGenerationError(err); ok {
			t.Error("caller error must not be a GenerationError")
		}
	})

	t.Run("upstream failure classified", func(t *testing.T) {
		gen := NewTailorer(&cannedClient{err: &GenerationError{Reason: ReasonUpstreamUnavailable, Err: errors.New("503")}})
		_, err := gen.Generate(context.Background(), sourceResume(), "t", "c", "d")
		ge, ok := AsGenerationError(err)
		if !ok || ge.Reason != ReasonUpstreamUnavailable {
			t.Fatalf("expected upstream_unavailable, got %v", err)
		}
	})

	t.Run("malformed output classified", func(t *testing.T) {
		gen := NewTailorer(&cannedClient{output: "not json"})
		_, err := gen.Generate(context.Background(), sourceResume(), "t", "c", "d")
		ge, ok := AsGenerationError(err)
		if !ok || ge.Reason != ReasonMalformedOutput {
			t.Fatalf("expected malformed_output, got %v", err)
		}
	})
}

func TestPromptTruncatesJobDescription(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", maxJobDescriptionLen+500)
	prompt, err := buildPrompt(sourceResume(), "t", "c", long)
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}
	if strings.Contains(prompt, strings.Repeat("x", maxJobDescriptionLen+1)) {
		t.Error("job description not truncated")
	}
	if !strings.Contains(prompt, strings.Repeat("x", maxJobDescriptionLen)) {
		t.Error("truncated description missing from prompt")
	}
}

func TestPromptTruncatesAtRuneBoundary(t *testing.T) {
	t.Parallel()

	// Place a multi-byte rune straddling the cut point.
	long := strings.Repeat("x", maxJobDescriptionLen-1) + strings.Repeat("é", 300)
	prompt, err := buildPrompt(sourceResume(), "t", "c", long)
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}
	if !utf8.ValidString(prompt) {
		t.Fatal("prompt contains invalid UTF-8 after truncation")
	}
	if strings.Contains(prompt, "�") {
		t.Fatal("prompt contains a replacement character")
	}
}

func TestHTTPChatClient(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("auth header = %q", got)
			}
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
		}))
		defer srv.Close()

		c := NewHTTPChatClient(ChatConfig{APIBase: srv.URL, APIKey: "test-key", Model: "m"}, srv.Client())
		out, err := c.Complete(context.Background(), "sys", "user")
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if out != "hello" {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("http error is upstream unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewHTTPChatClient(ChatConfig{APIBase: srv.URL, APIKey: "k", Model: "m"}, srv.Client())
		_, err := c.Complete(context.Background(), "sys", "user")
		ge, ok := AsGenerationError(err)
		if !ok || ge.Reason != ReasonUpstreamUnavailable {
			t.Fatalf("expected upstream_unavailable, got %v", err)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		c := NewHTTPChatClient(ChatConfig{APIBase: "http://localhost:0", Model: "m"}, nil)
		_, err := c.Complete(context.Background(), "sys", "user")
		if _, ok := AsGenerationError(err); !ok {
			t.Fatalf("expected GenerationError, got %v", err)
		}
	})
}
