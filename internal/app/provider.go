// Package app wires configuration into the long-lived components shared by
// the server and the worker.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/suPer8Hu/hugg-chat/internal/ai"
	"github.com/suPer8Hu/hugg-chat/internal/chat"
	"github.com/suPer8Hu/hugg-chat/internal/config"
)

// NewRegistry registers every supported model backend.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, m)
	})
	return reg
}

// NewOrchestrator resolves the configured provider.
func NewOrchestrator(ctx context.Context, cfg config.Config) (*chat.Orchestrator, error) {
	provider, err := NewRegistry(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		return nil, fmt.Errorf("ai provider %q: %w", cfg.AIProvider, err)
	}
	temperature := float32(cfg.Temperature)
	return chat.NewOrchestrator(provider, chat.InferenceConfig{
		SystemPrompt: cfg.SystemPrompt,
		MaxTokens:    cfg.MaxTokens,
		Temperature:  &temperature,
		Timeout:      cfg.CompletionTimeout,
	}), nil
}
