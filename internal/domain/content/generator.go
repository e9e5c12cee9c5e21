package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clinicd/clinicd/internal/platform/apperror"
)

// TextGenerator produces free text from a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorConfig points at an OpenAI-compatible chat-completions endpoint.
type GeneratorConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator calls a chat-completions API. Any transport or provider
// failure surfaces as an upstream error so clients see a sanitized 500.
type OpenAIGenerator struct {
	cfg    GeneratorConfig
	client *http.Client
}

func NewOpenAIGenerator(cfg GeneratorConfig) *OpenAIGenerator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIGenerator{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a clinic assistant writing short, plain-language health education material for patients."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", apperror.Upstream(err, "text generation failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", apperror.Upstream(err, "text generation failed")
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", apperror.Upstream(err, "text generation failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperror.Upstream(err, "text generation failed")
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperror.Upstream(
			fmt.Errorf("provider returned %d: %s", resp.StatusCode, body),
			"text generation failed")
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", apperror.Upstream(err, "text generation failed")
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", apperror.Upstream(fmt.Errorf("provider returned no choices"), "text generation failed")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Model reports the configured model name for attribution on stored content.
func (g *OpenAIGenerator) Model() string { return g.cfg.Model }
