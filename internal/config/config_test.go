package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("ASSIGNMENT_API_URL", "http://lms.local/api")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, BackendSQLite, cfg.HistoryBackend)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 10, cfg.ChatHistoryWindow)
	assert.Equal(t, 60*time.Second, cfg.ExternalCallTimeout)
	assert.Empty(t, cfg.JWTSecret)
}

func TestFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LLM_PROVIDER", "Ollama")
	t.Setenv("HISTORY_BACKEND", "mongo")
	t.Setenv("CHAT_HISTORY_WINDOW", "6")
	t.Setenv("EXTERNAL_CALL_TIMEOUT", "15")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, cfg.LLMProvider)
	assert.Equal(t, BackendMongo, cfg.HistoryBackend)
	assert.Equal(t, 6, cfg.ChatHistoryWindow)
	assert.Equal(t, 15*time.Second, cfg.ExternalCallTimeout)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestFromEnvValidation(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ASSIGNMENT_API_URL", "")
	t.Setenv("HISTORY_BACKEND", "redis")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	assert.Contains(t, err.Error(), "ASSIGNMENT_API_URL")
	assert.Contains(t, err.Error(), `unsupported HISTORY_BACKEND "redis"`)
}

func TestOllamaNeedsNoAPIKey(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ASSIGNMENT_API_URL", "http://lms.local/api")

	_, err := FromEnv()
	assert.NoError(t, err)
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "1m30s")
	assert.Equal(t, 90*time.Second, getEnvAsDuration("TEST_TIMEOUT", time.Second))

	t.Setenv("TEST_TIMEOUT", "not-a-duration")
	assert.Equal(t, time.Second, getEnvAsDuration("TEST_TIMEOUT", time.Second))
}
