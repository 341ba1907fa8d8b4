package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/agromic/agrobot/backend/internal/config"
)

// ArkCompleter runs the system instruction and user turn through an eino
// chain backed by a Volcengine Ark chat model.
type ArkCompleter struct {
	model string
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkCompleter creates an Ark model from configuration and compiles the chain.
func NewArkCompleter(ctx context.Context, cfg config.AIConfig) (*ArkCompleter, error) {
	if !cfg.Ark.Enabled() {
		return nil, fmt.Errorf("ark: %w", ErrMissingCredential)
	}

	chatModel, err := cfg.Ark.NewChatModel(ctx, cfg.Temperature, cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return newArkCompleter(ctx, chatModel, cfg.Ark.Model)
}

func newArkCompleter(ctx context.Context, chatModel model.ChatModel, modelName string) (*ArkCompleter, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkCompleter{model: modelName, chain: runnable}, nil
}

// Complete invokes the chain once.
func (a *ArkCompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if req.UserText == "" {
		return Completion{}, fmt.Errorf("user text is required")
	}

	// Ark 的模型由接入点决定，请求中的模型名仅用于记录。
	response, err := a.chain.Invoke(ctx, map[string]any{
		"system": req.SystemInstruction,
		"query":  req.UserText,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return Completion{Model: a.model}, nil
	}

	slog.Debug("ark completion", "model", a.model, "length", len(response.Content))
	return Completion{Text: response.Content, Model: a.model}, nil
}
