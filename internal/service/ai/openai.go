package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/agromic/agrobot/backend/internal/config"
)

// OpenAICompleter uses an OpenAI-compatible chat completions endpoint.
type OpenAICompleter struct {
	client       openai.Client
	defaultModel string
	temperature  *float64
	maxTokens    *int
}

// NewOpenAICompleter creates an OpenAI-backed completer.
func NewOpenAICompleter(cfg config.AIConfig, extra ...option.RequestOption) (*OpenAICompleter, error) {
	apiKey := strings.TrimSpace(cfg.OpenAI.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingCredential)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	opts = append(opts, extra...)

	return &OpenAICompleter{
		client:       openai.NewClient(opts...),
		defaultModel: cfg.OpenAI.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

// Complete sends one chat completion request.
func (o *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if req.Model == "" {
		req.Model = o.defaultModel
	}
	if err := validateRequest(req); err != nil {
		return Completion{}, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemInstruction != "" {
		messages = append(messages, openai.SystemMessage(req.SystemInstruction))
	}
	messages = append(messages, openai.UserMessage(req.UserText))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if o.temperature != nil {
		params.Temperature = openai.Float(*o.temperature)
	}
	if o.maxTokens != nil && *o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(*o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("openai chat completion: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	return Completion{Text: content, Model: resp.Model}, nil
}
