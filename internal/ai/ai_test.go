package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "hi there"},
			"done":    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3:latest")
	reply, err := p.Chat(context.Background(), []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
	}, Options{MaxTokens: 512, Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)

	assert.False(t, got.Stream)
	assert.Equal(t, "llama3:latest", got.Model)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, 512, got.Options.NumPredict)
	assert.InDelta(t, 0.7, got.Options.Temperature, 0.001)
}

func TestOllamaProvider_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "").Chat(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	body := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer body.Close()

	_, err = NewOllamaProvider(body.URL, "").Chat(context.Background(), nil, Options{})
	assert.EqualError(t, err, "boom")
}

func TestOpenAIProvider_Chat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(srv.URL+"/v1", "secret", "meta-llama/Meta-Llama-3-8B-Instruct")
	require.NoError(t, err)

	reply, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "ping"}}, Options{MaxTokens: 64, Temperature: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)
	assert.Equal(t, "meta-llama/Meta-Llama-3-8B-Instruct", got["model"])
	assert.EqualValues(t, 64, got["max_tokens"])
	assert.InDelta(t, 0.5, got["temperature"], 0.0001)

	got = nil
	_, err = p.Chat(context.Background(), []Message{{Role: "user", Content: "ping"}}, Options{MaxTokens: 64})
	require.NoError(t, err)
	require.Contains(t, got, "temperature")
	assert.InDelta(t, 0, got["temperature"], 0.0001)
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(srv.URL, "k", "m")
	require.NoError(t, err)
	_, err = p.Chat(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	assert.Error(t, err)
}

func TestNewOpenAIProvider_RequiresKeyAndModel(t *testing.T) {
	_, err := NewOpenAIProvider("", "", "m")
	assert.Error(t, err)
	_, err = NewOpenAIProvider("", "k", " ")
	assert.Error(t, err)
}

type stubProvider struct{ model string }

func (s stubProvider) Chat(context.Context, []Message, Options) (string, error) { return s.model, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(" Fake ", func(ctx context.Context, model string) (Provider, error) {
		return stubProvider{model: model}, nil
	})

	p, err := r.Get(context.Background(), "FAKE", "m1")
	require.NoError(t, err)
	out, _ := p.Chat(context.Background(), nil, Options{})
	assert.Equal(t, "m1", out)
	assert.Equal(t, []string{"fake"}, r.Names())

	_, err = r.Get(context.Background(), "missing", "")
	assert.Error(t, err)
}
