package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/agromic/agrobot/backend/internal/config"
)

// ErrMissingCredential is returned by every call when the hosting
// environment supplied no API key for the selected provider.
var ErrMissingCredential = errors.New("ai credential not configured")

// CompletionRequest is a single stateless turn: the fixed system
// instruction plus the latest user text. Earlier turns are not resent.
type CompletionRequest struct {
	Model             string
	SystemInstruction string
	UserText          string
}

// Completion is the text returned by the hosted model. Text may be empty.
type Completion struct {
	Text  string
	Model string
}

// Completer abstracts the hosted text-completion API.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (Completion, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	return f(ctx, req)
}

// NewCompleter builds the completer for the configured provider. A missing
// credential does not fail here; the returned completer reports
// ErrMissingCredential on each call instead.
func NewCompleter(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	if !cfg.HasCredential() {
		return missingCredential{provider: cfg.Provider}, nil
	}

	switch cfg.Provider {
	case config.ProviderArk:
		return NewArkCompleter(ctx, cfg)
	case config.ProviderOpenAI:
		return NewOpenAICompleter(cfg)
	case config.ProviderGemini, "":
		return NewGeminiCompleter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

type missingCredential struct {
	provider string
}

func (m missingCredential) Complete(context.Context, CompletionRequest) (Completion, error) {
	return Completion{}, fmt.Errorf("%s: %w", m.provider, ErrMissingCredential)
}

func validateRequest(req CompletionRequest) error {
	if req.Model == "" {
		return errors.New("model is required")
	}
	if req.UserText == "" {
		return errors.New("user text is required")
	}
	return nil
}
