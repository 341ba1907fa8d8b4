package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/agromic/agrobot/backend/internal/config"
)

type geminiModelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var newGeminiClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
	return genai.NewClient(ctx, cfg)
}

// GeminiCompleter talks to the Gemini API through the Google Gen AI SDK.
type GeminiCompleter struct {
	models       geminiModelsClient
	defaultModel string
	temperature  *float64
	maxTokens    *int
}

// NewGeminiCompleter creates a Gemini-backed completer.
func NewGeminiCompleter(ctx context.Context, cfg config.AIConfig) (*GeminiCompleter, error) {
	apiKey := strings.TrimSpace(cfg.Gemini.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingCredential)
	}

	client, err := newGeminiClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	slog.Debug("gemini completer ready", "model", cfg.Gemini.Model)
	return &GeminiCompleter{
		models:       client.Models,
		defaultModel: cfg.Gemini.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

// Complete sends one GenerateContent call.
func (g *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if req.Model == "" {
		req.Model = g.defaultModel
	}
	if err := validateRequest(req); err != nil {
		return Completion{}, err
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: req.UserText}}},
	}

	resp, err := g.models.GenerateContent(ctx, req.Model, contents, g.buildConfig(req))
	if err != nil {
		return Completion{}, fmt.Errorf("gemini generate content: %w", err)
	}

	return Completion{Text: extractVisibleText(resp), Model: req.Model}, nil
}

func (g *GeminiCompleter) buildConfig(req CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}
	if g.temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*g.temperature))
	}
	if g.maxTokens != nil && *g.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(*g.maxTokens)
	}
	return cfg
}

func extractVisibleText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
