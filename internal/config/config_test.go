package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  url: postgres://localhost/miner
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Classifier.ModelName)
	assert.Equal(t, 3, cfg.Classifier.MaxRetries)
	assert.Equal(t, int64(30), cfg.Classifier.PollIntervalSeconds)
	assert.Equal(t, 50, cfg.Classifier.BatchSize)
	assert.Equal(t, "whatsapp_messages", cfg.Redis.Stream)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadConfigExpandsSecrets(t *testing.T) {
	t.Setenv("TEST_GROQ_KEY", "gsk-secret")
	t.Setenv("TEST_DB_URL", "postgres://real/db")

	path := writeConfigFile(t, `
database:
  url: ${TEST_DB_URL}
classifier:
  groq_api_key: ${TEST_GROQ_KEY}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "gsk-secret", cfg.Classifier.GroqAPIKey)
	assert.Equal(t, "postgres://real/db", cfg.Database.URL)
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("DATABASE_ENV", "prd")

	path := writeConfigFile(t, `
environment: dev
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "prd", cfg.Environment)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("does/not/exist.yml")
	assert.Error(t, err)
}
