package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "REDIS_URL", "PORT"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-test")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "jobs", cfg.Jobs.Dir)
	assert.Equal(t, "openrouter", cfg.AI.DefaultProvider)
	assert.Equal(t, "qwen/qwen3-coder:free", cfg.AI.PrimaryModel)
	assert.Equal(t, "deepseek/deepseek-chat", cfg.AI.FallbackModel)
	assert.Equal(t, 3, cfg.AI.Retries)
	assert.Equal(t, 12000, cfg.AI.MaxTokens)
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.3, *cfg.AI.Temperature, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.AI.AttemptTimeout)
	assert.Equal(t, 2*time.Second, cfg.AI.BackoffBase)
	assert.False(t, cfg.Chat.AllowNewFiles)

	// 3x90s attempts, 2s+4s backoff, 90s fallback.
	assert.Equal(t, 366*time.Second, cfg.AI.CompletionBudget())
	assert.Greater(t, cfg.Server.RequestTimeout, cfg.AI.CompletionBudget())
}

func TestLoadConfig_YAMLAndEnvOverrides(t *testing.T) {
	clearProviderEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  addr: ":8080"
jobs:
  dir: /tmp/jobs
  workers: 2
ai:
  openai_key: from-file
  primary_model: gpt-4o-mini
  retries: 5
  attempt_timeout: 15s
  temperature: 0
chat:
  allow_new_files: true
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfig(path, false)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr, "PORT wins over file")
	assert.Equal(t, "/tmp/jobs", cfg.Jobs.Dir)
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, 8, cfg.Jobs.QueueSize)
	assert.Equal(t, "openai", cfg.AI.DefaultProvider)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.PrimaryModel)
	assert.Equal(t, 5, cfg.AI.Retries)
	assert.Equal(t, 15*time.Second, cfg.AI.AttemptTimeout)
	require.NotNil(t, cfg.AI.Temperature, "explicit zero temperature")
	assert.Zero(t, *cfg.AI.Temperature)
	assert.Equal(t, 110*time.Second+time.Minute, cfg.Server.RequestTimeout)
	assert.True(t, cfg.Chat.AllowNewFiles)
}

func TestLoadConfig_RequiresProviderOutsideDev(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), "none.yaml")

	_, err := LoadConfig(path, false)
	require.Error(t, err)

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.True(t, cfg.Runtime.Dev)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))

	_, err := LoadConfig(path, true)
	require.Error(t, err)
}
