// Package llm talks to an OpenAI-compatible chat-completions endpoint and
// exposes the capabilities the gate core consumes: input validation,
// new-visitor detection, field extraction, contact matching, history
// summarization, decision classification, and frame threat analysis.
// Every capability degrades to an error; callers hold the fallback policy.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Params selects the model and temperature for one capability call.
type Params struct {
	Model       string
	Temperature float64
}

// Config holds the endpoint shared by all capabilities.
type Config struct {
	APIURL    string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration

	Main       Params
	Validation Params
	Session    Params
	Summary    Params
	Decision   Params
	Vision     Params
}

// Client is an injected handle to the model endpoint. No package-level
// singletons: tests swap the whole client for a stub behind the consumer
// interfaces.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a client with validated defaults.
func New(cfg Config) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// message is one chat turn on the wire. Content is a string for text-only
// turns or a []part for multimodal turns.
type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// part is one element of a multimodal message.
type part struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// complete performs one chat-completions round trip and returns the
// assistant text with thinking-model wrappers stripped.
func (c *Client) complete(ctx context.Context, p Params, messages []message) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"model":       p.Model,
		"messages":    messages,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": p.Temperature,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || len(result.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return stripThinking(result.Choices[0].Message.Content), nil
}

// stripThinking removes <think>...</think> wrappers some local models emit
// and returns the trailing answer.
func stripThinking(content string) string {
	if idx := strings.LastIndex(content, "</think>"); idx >= 0 {
		content = content[idx+len("</think>"):]
	}
	return strings.TrimSpace(content)
}

// cleanJSON strips markdown fences and surrounding whitespace.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractObject pulls the first {...} object out of free text. Models that
// were asked for bare JSON still occasionally add commentary around it.
func extractObject(s string) (json.RawMessage, error) {
	s = cleanJSON(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	raw := json.RawMessage(s[start : end+1])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
