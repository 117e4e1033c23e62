// Package summary generates AI overviews of aggregated content: a cached
// cross-source home summary and a daily RSS digest.
package summary

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Summarizer turns a prompt into a short text. Implementations own their
// model selection and quota handling.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Gemini is the production summarizer. Models are tried in order; quota
// and missing-model responses fall through to the next entry.
type Gemini struct {
	client *genai.Client
	models []string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	models := []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}
	if model != "" {
		models = append([]string{model}, models...)
	}
	return &Gemini{client: client, models: models}, nil
}

func (g *Gemini) Summarize(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, model := range g.models {
		result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			if retriableModelError(err) {
				lastErr = err
				continue
			}
			return "", err
		}
		if result != nil && len(result.Candidates) > 0 &&
			result.Candidates[0].Content != nil && len(result.Candidates[0].Content.Parts) > 0 {
			return result.Candidates[0].Content.Parts[0].Text, nil
		}
		lastErr = fmt.Errorf("model %s returned no candidates", model)
	}
	return "", fmt.Errorf("all models failed: %w", lastErr)
}

func retriableModelError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") || strings.Contains(s, "rate limit") ||
		strings.Contains(s, "exhausted") ||
		strings.Contains(s, "404") || strings.Contains(s, "not found")
}

// Placeholder stands in when no API key is configured, so the rest of the
// flow keeps working in keyless deployments.
type Placeholder struct{}

func (Placeholder) Summarize(ctx context.Context, prompt string) (string, error) {
	return "AI summaries are not configured. Set GEMINI_API_KEY to enable them.", nil
}
