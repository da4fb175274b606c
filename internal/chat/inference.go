package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/suPer8Hu/hugg-chat/internal/ai"
	"github.com/suPer8Hu/hugg-chat/internal/apperr"
)

const (
	DefaultSystemPrompt      = "You are friendly, detail oriented and concise AI assistant named 'HUGG'. Keep your answers accurate and brief."
	defaultMaxTokens         = 512
	defaultTemperature       = 0.7
	defaultCompletionTimeout = 60 * time.Second

	maxTitleRunes      = 50
	minTitleRunes      = 3
	fallbackTitleRunes = 47
	titleMaxTokens     = 24
	titleTemperature   = 0.3
	titleExcerptRunes  = 500
)

const titlePrompt = "Write a short title (at most 6 words) for a conversation that starts with the exchange below. " +
	"Reply with the title only, no quotes and no punctuation at the end."

// InferenceConfig zero values select the defaults. Temperature is a pointer
// so that an explicit 0 stays 0.
type InferenceConfig struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  *float32
	Timeout      time.Duration
}

// Orchestrator builds the model context and runs completions under their own
// deadline.
type Orchestrator struct {
	provider    ai.Provider
	cfg         InferenceConfig
	temperature float32
}

func NewOrchestrator(provider ai.Provider, cfg InferenceConfig) *Orchestrator {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCompletionTimeout
	}
	o := &Orchestrator{provider: provider, cfg: cfg, temperature: defaultTemperature}
	if cfg.Temperature != nil && *cfg.Temperature >= 0 {
		o.temperature = *cfg.Temperature
	}
	return o
}

// BuildContext returns system prompt, history oldest first, then the prompt.
func (o *Orchestrator) BuildContext(history []Message, prompt string) []ai.Message {
	out := make([]ai.Message, 0, len(history)+2)
	out = append(out, ai.Message{Role: string(RoleSystem), Content: o.cfg.SystemPrompt})
	for _, m := range history {
		out = append(out, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	return append(out, ai.Message{Role: string(RoleUser), Content: prompt})
}

// Complete returns the assistant reply. Provider errors, the completion
// deadline and blank replies all surface as CompletionFailure.
func (o *Orchestrator) Complete(ctx context.Context, history []Message, prompt string) (string, error) {
	return o.call(ctx, o.BuildContext(history, prompt), ai.Options{
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.temperature,
	})
}

func (o *Orchestrator) call(ctx context.Context, msgs []ai.Message, opts ai.Options) (string, error) {
	if o.provider == nil {
		return "", apperr.CompletionFailure("no model provider configured", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	reply, err := o.provider.Chat(ctx, msgs, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperr.CompletionFailure("completion timed out", err)
		}
		return "", apperr.CompletionFailure("completion failed", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", apperr.CompletionFailure("empty completion", nil)
	}
	return reply, nil
}

// GenerateTitle asks the model for a chat title. It never fails: when the
// model errors or returns something unusable the first message is truncated
// instead, and fallback reports that.
func (o *Orchestrator) GenerateTitle(ctx context.Context, firstMessage, assistantResponse string) (title string, fallback bool) {
	if strings.TrimSpace(firstMessage) == "" {
		return DefaultTitle, true
	}

	var b strings.Builder
	b.WriteString("User: ")
	b.WriteString(truncateRunes(firstMessage, titleExcerptRunes))
	if strings.TrimSpace(assistantResponse) != "" {
		b.WriteString("\nAssistant: ")
		b.WriteString(truncateRunes(assistantResponse, titleExcerptRunes))
	}

	reply, err := o.call(ctx, []ai.Message{
		{Role: string(RoleSystem), Content: titlePrompt},
		{Role: string(RoleUser), Content: b.String()},
	}, ai.Options{MaxTokens: titleMaxTokens, Temperature: titleTemperature})
	if err == nil {
		if t := CleanTitle(reply); utf8.RuneCountInString(t) >= minTitleRunes {
			return t, false
		}
	}
	return FallbackTitle(firstMessage), true
}

var titlePrefixes = []string{"title:", "chat title:", "conversation title:"}

// CleanTitle strips quotes and label prefixes, collapses whitespace and
// truncates to the title length limit.
func CleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	lower := strings.ToLower(s)
	for _, p := range titlePrefixes {
		if strings.HasPrefix(lower, p) {
			s = s[len(p):]
			break
		}
	}
	s = strings.Trim(strings.TrimSpace(s), "\"'`*“”‘’")
	s = strings.TrimRight(s, ".")
	s = strings.Join(strings.Fields(s), " ")
	return truncateRunes(s, maxTitleRunes)
}

// FallbackTitle derives a title from the first message alone.
func FallbackTitle(firstMessage string) string {
	s := strings.Join(strings.Fields(firstMessage), " ")
	if s == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(s) <= maxTitleRunes {
		return s
	}
	return strings.TrimRight(truncateRunes(s, fallbackTitleRunes), " ") + "..."
}
