package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/smartrepeat/internal/store"
	"go.uber.org/zap"
)

// Open resolves cfg and builds its provider. With a non-nil events repo
// every call is recorded.
func Open(ctx context.Context, cfg Config, events store.EventRepo, logger *zap.Logger) (Provider, error) {
	cfg, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}

	var p Provider
	switch cfg.Provider {
	case "anthropic":
		p, err = NewAnthropicProvider(cfg)
	case "openai":
		p, err = NewOpenAIProvider(cfg)
	case "openrouter":
		p, err = NewOpenRouterProvider(cfg)
	case "gemini":
		p, err = NewGeminiProvider(ctx, cfg)
	case "mock":
		p = NewMockProvider()
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Provider, err)
	}

	if logger != nil {
		logger.Debug("generation provider ready",
			zap.String("provider", p.Name()),
			zap.String("model", p.ModelID()))
	}
	if events == nil {
		return p, nil
	}
	return NewRecorder(p, events, logger), nil
}
