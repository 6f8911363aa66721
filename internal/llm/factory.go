package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/stepwise/internal/store"
)

// Options carries the optional collaborators of NewProvider.
type Options struct {
	Events   store.EventRepo
	Recorder Recorder
	Logger   *slog.Logger
}

// NewProvider creates a Provider from configuration, wrapped so that the
// caller sees timeout → retry → logging → base.
//
// The "none" provider is an always-unavailable provider: every consumer
// falls back to its static text.
func NewProvider(ctx context.Context, cfg Config, opts Options) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock", "none":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var p Provider = base
	if opts.Events != nil || opts.Recorder != nil {
		p = WithLogging(p, opts.Events, opts.Recorder, logger)
	}
	p = WithRetry(p, cfg.Retry, logger)
	if cfg.Timeout > 0 {
		p = WithTimeout(p, cfg.Timeout)
	}
	return p, nil
}
