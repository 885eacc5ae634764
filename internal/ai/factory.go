package ai

import (
	"context"
	"fmt"
	"log/slog"

	"fridgefeast/internal/cache"
	"fridgefeast/internal/config"
)

// NewFromConfig builds the backend selected by cfg.Provider. recipes may be
// nil to disable recipe caching.
func NewFromConfig(ctx context.Context, cfg config.AIConfig, recipes cache.Cache) (Backend, error) {
	var completer Completer
	switch cfg.Provider {
	case "mock":
		slog.WarnContext(ctx, "no AI provider configured, using canned recipes")
		return Mock{}, nil
	case "openrouter":
		completer = NewOpenRouterClient(cfg.APIKey, cfg.Model, cfg.Endpoint, cfg.Timeout)
	case "openai":
		completer = NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.Endpoint, cfg.Timeout)
	case "gemini":
		gc, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		completer = gc
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}

	var opts []Option
	if recipes != nil {
		opts = append(opts, WithRecipeCache(recipes))
	}
	slog.InfoContext(ctx, "using AI provider", "provider", cfg.Provider, "model", cfg.Model)
	return NewService(completer, opts...), nil
}
