package ai

import "context"

type Message struct {
	Role    string
	Content string
}

// Options are the generation parameters sent with every completion.
type Options struct {
	MaxTokens   int
	Temperature float32
}

type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}
