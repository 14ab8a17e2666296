// Package ai wraps the Gemini model used for receipt scanning and monthly
// insights. Model output is treated as untrusted text: it is stripped of
// markdown fences and decoded into typed values, and any mismatch surfaces as
// core.ErrInvalidResponseFormat.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"welth/internal/core"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// Classified model failures. All of them wrap core.ErrExternalService.
var (
	ErrMissingAPIKey = fmt.Errorf("%w: AI API key is missing or invalid", core.ErrExternalService)
	ErrQuota         = fmt.Errorf("%w: AI service limit reached, try again later", core.ErrExternalService)
	ErrNetwork       = fmt.Errorf("%w: network error reaching the AI service", core.ErrExternalService)
	ErrModel         = fmt.Errorf("%w: AI request failed", core.ErrExternalService)
)

// generator is the single model call this package needs.
type generator interface {
	Generate(ctx context.Context, parts []*genai.Part) (string, error)
}

type Client struct {
	gen generator
}

type genaiGenerator struct {
	client *genai.Client
	model  string
}

func (g *genaiGenerator) Generate(ctx context.Context, parts []*genai.Part) (string, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// NewClient creates a Gemini backed client. An empty model selects DefaultModel.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	slog.InfoContext(ctx, "AI client initialized", "model", model)
	return &Client{gen: &genaiGenerator{client: client, model: model}}, nil
}

func (c *Client) generate(ctx context.Context, parts ...*genai.Part) (string, error) {
	text, err := c.gen.Generate(ctx, parts)
	if err != nil {
		return "", classifyError(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty model response", core.ErrInvalidResponseFormat)
	}
	return text, nil
}

// classifyError maps raw model errors onto the user facing categories.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"), strings.Contains(msg, "api_key"):
		return fmt.Errorf("%w: %v", ErrMissingAPIKey, err)
	case strings.Contains(msg, "quota"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "resource_exhausted"):
		return fmt.Errorf("%w: %v", ErrQuota, err)
	case strings.Contains(msg, "network"), strings.Contains(msg, "dial tcp"), strings.Contains(msg, "connection"):
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	default:
		return fmt.Errorf("%w: %v", ErrModel, err)
	}
}

// cleanModelJSON strips ```json fences and surrounding prose the model may add.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
