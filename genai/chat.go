package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ChatClient abstracts the chat-completion call so tests can inject a
// canned model.
type ChatClient interface {
	// Complete sends a system + user prompt and returns the raw model
	// output.
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatConfig configures the HTTP chat client.
type ChatConfig struct {
	// APIBase is the endpoint root, e.g. "https://api.openai.com/v1".
	APIBase string
	// APIKey is the bearer token.
	APIKey string
	// Model is the model identifier.
	Model string
	// Temperature controls sampling. Zero keeps output deterministic
	// enough for structured JSON.
	Temperature float64
}

// HTTPChatClient calls an OpenAI-compatible chat-completions endpoint.
type HTTPChatClient struct {
	cfg    ChatConfig
	client *http.Client
}

// NewHTTPChatClient creates a chat client. A nil httpClient gets a
// 30s-timeout default; per-call deadlines still come from the context.
func NewHTTPChatClient(cfg ChatConfig, httpClient *http.Client) *HTTPChatClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	return &HTTPChatClient{cfg: cfg, client: httpClient}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt pair and returns the first choice's content.
// Failures are classified: deadline overruns become ReasonTimeout,
// everything else on the wire becomes ReasonUpstreamUnavailable.
func (c *HTTPChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", &GenerationError{Reason: ReasonUpstreamUnavailable, Err: errors.New("api key missing")}
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("genai: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("genai: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &GenerationError{Reason: ReasonTimeout, Err: err}
		}
		return "", &GenerationError{Reason: ReasonUpstreamUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", &GenerationError{
			Reason: ReasonUpstreamUnavailable,
			Err:    fmt.Errorf("upstream http %d", resp.StatusCode),
		}
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &GenerationError{Reason: ReasonMalformedOutput, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(body.Choices) == 0 || body.Choices[0].Message.Content == "" {
		return "", &GenerationError{Reason: ReasonMalformedOutput, Err: errors.New("empty response")}
	}

	return strings.TrimSpace(body.Choices[0].Message.Content), nil
}
