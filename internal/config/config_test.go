package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no key in the environment.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv(KeyEnv, "")
	require.NoError(t, os.Unsetenv(KeyEnv))
	t.Setenv("METAMIND_API_KEY", "")
	require.NoError(t, os.Unsetenv("METAMIND_API_KEY"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "llama3-70b-8192", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, time.Second, cfg.LLM.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.LLM.MaxBackoff)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Extract.SampleRows)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.APIKey)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := isolate(t)
	yaml := "llm:\n  model: llama-3.1-8b-instant\n  timeout: 30s\n  max_retries: 5\nchat:\n  history_budget: 1200\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metamind.yaml"), []byte(yaml), 0o644))
	t.Setenv("METAMIND_LLM_MAX_RETRIES", "1")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 1, cfg.LLM.MaxRetries)
	assert.Equal(t, 1200, cfg.Chat.HistoryBudget)

	client := cfg.ClientConfig()
	assert.Equal(t, "llama-3.1-8b-instant", client.Model)
	assert.Equal(t, 1, client.MaxRetries)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: 127.0.0.1:9000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadKeyFromDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GROQ_API_KEY=gsk_from_dotenv\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gsk_from_dotenv", cfg.APIKey)
}

func TestLoadKeyPrecedence(t *testing.T) {
	isolate(t)
	t.Setenv(KeyEnv, "gsk_env")
	t.Setenv("METAMIND_API_KEY", "gsk_metamind")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gsk_metamind", cfg.APIKey)
	assert.Equal(t, "gsk_user", cfg.ResolveAPIKey(" gsk_user "))
	assert.Equal(t, "gsk_metamind", cfg.ResolveAPIKey(""))
}

func TestLoadRejectsInvalid(t *testing.T) {
	isolate(t)
	t.Setenv("METAMIND_LLM_MAX_RETRIES", "-1")

	_, err := Load("")
	assert.ErrorContains(t, err, "max_retries")
}
