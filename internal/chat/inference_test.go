package chat

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/hugg-chat/internal/ai"
	"github.com/suPer8Hu/hugg-chat/internal/apperr"
)

type slowProvider struct{}

func (slowProvider) Chat(ctx context.Context, _ []ai.Message, _ ai.Options) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestOrchestrator_BuildContext(t *testing.T) {
	o := NewOrchestrator(nil, InferenceConfig{SystemPrompt: "sys"})
	history := []Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
	}
	got := o.BuildContext(history, "c")
	assert.Equal(t, []ai.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
	}, got)
}

func TestOrchestrator_CompleteDefaultsAndTrim(t *testing.T) {
	p := &recordingProvider{reply: "  answer \n"}
	o := NewOrchestrator(p, InferenceConfig{})

	reply, err := o.Complete(context.Background(), nil, "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", reply)
	assert.Equal(t, 512, p.opts.MaxTokens)
	assert.InDelta(t, 0.7, p.opts.Temperature, 0.0001)
	require.NotEmpty(t, p.last)
	assert.Equal(t, DefaultSystemPrompt, p.last[0].Content)
}

func TestOrchestrator_ZeroTemperatureIsKept(t *testing.T) {
	p := &recordingProvider{reply: "answer"}
	zero := float32(0)
	o := NewOrchestrator(p, InferenceConfig{Temperature: &zero})

	_, err := o.Complete(context.Background(), nil, "q")
	require.NoError(t, err)
	assert.Zero(t, p.opts.Temperature)
}

func TestOrchestrator_CompleteTimesOut(t *testing.T) {
	o := NewOrchestrator(slowProvider{}, InferenceConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := o.Complete(context.Background(), nil, "q")
	assert.True(t, apperr.Is(err, apperr.KindCompletionFailure))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOrchestrator_NoProvider(t *testing.T) {
	_, err := NewOrchestrator(nil, InferenceConfig{}).Complete(context.Background(), nil, "q")
	assert.True(t, apperr.Is(err, apperr.KindCompletionFailure))
}

func TestCleanTitle(t *testing.T) {
	cases := map[string]string{
		`"Weekend in Paris"`:               "Weekend in Paris",
		"Title: Weekend in Paris.":         "Weekend in Paris",
		"chat title:   Bread   baking\n x": "Bread baking",
		"**Tax Questions**":                "Tax Questions",
		"“Quoted”":                         "Quoted",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanTitle(in), "input %q", in)
	}

	long := CleanTitle(strings.Repeat("word ", 30))
	assert.Equal(t, maxTitleRunes, utf8.RuneCountInString(long))
}

func TestFallbackTitle(t *testing.T) {
	assert.Equal(t, DefaultTitle, FallbackTitle("  "))
	assert.Equal(t, "Short question", FallbackTitle(" Short \n question "))

	long := strings.Repeat("é", 80)
	got := FallbackTitle(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, fallbackTitleRunes+3, utf8.RuneCountInString(got))
}

func TestGenerateTitle_EmptyMessage(t *testing.T) {
	p := &recordingProvider{reply: "Something"}
	title, fallback := NewOrchestrator(p, InferenceConfig{}).GenerateTitle(context.Background(), "", "")
	assert.Equal(t, DefaultTitle, title)
	assert.True(t, fallback)
	assert.Zero(t, p.calls)
}
