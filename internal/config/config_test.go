package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 50, cfg.ChatContextWindowSize)
	assert.Equal(t, 60*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 5*time.Second, cfg.StorageTimeout)
	assert.Equal(t, "chat_title_jobs", cfg.RabbitQueue)
	assert.Empty(t, cfg.SystemPrompt)
	assert.InDelta(t, 0.7, cfg.Temperature, 0.0001)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "sqlite:/tmp/chat.db")
	t.Setenv("CHAT_CONTEXT_WINDOW_SIZE", "12")
	t.Setenv("COMPLETION_TIMEOUT", "15s")
	t.Setenv("WORKER_CONCURRENCY", "500")
	t.Setenv("TEMPERATURE", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite:/tmp/chat.db", cfg.DBDSN)
	assert.Equal(t, 12, cfg.ChatContextWindowSize)
	assert.Equal(t, 15*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 50, cfg.WorkerConcurrency)
	assert.Zero(t, cfg.Temperature)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai_provider: ollama\nmax_tokens: 64\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.AIProvider)
	assert.Equal(t, 64, cfg.MaxTokens)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
