package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultOpenAIBaseURL = "https://router.huggingface.co/v1"

// OpenAIProvider talks to any OpenAI compatible chat completions endpoint
// (Hugging Face router, OpenRouter, OpenAI).
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("openai: model is required")
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	// the request field is omitempty; a tiny non-zero value keeps greedy decoding
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
