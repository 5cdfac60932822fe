package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"haven/internal/config"
)

// Generator produces free-form supportive text. Implementations must
// be safe for concurrent use. A nil Generator is a valid deployment
// shape: callers fall back to templates.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint
// behind a circuit breaker.
type Client struct {
	url         string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	breaker     *CircuitBreaker
}

func NewClient(cfg *config.Config) *Client {
	gen := cfg.Generator
	timeout := time.Duration(gen.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		url:         gen.URL,
		model:       gen.Model,
		maxTokens:   gen.MaxTokens,
		temperature: gen.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     NewCircuitBreaker(gen.FailureThreshold, time.Duration(gen.CooldownSeconds)*time.Second),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
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

// Generate sends one chat completion request. Circuit-open, transport
// and decode failures all surface as errors; the caller decides how to
// degrade.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	var out string
	err := c.breaker.Call(func() error {
		text, err := c.complete(ctx, system, user)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation backend returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("generation response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
