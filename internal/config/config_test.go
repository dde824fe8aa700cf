package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
geminiApiKey: test-key
accounts:
  - "13800000001:gold:2099-12-31"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.APIPort)
	assert.Equal(t, "data/guest_ledger.json", cfg.LedgerPath)
	assert.Equal(t, "gemini-1.5-flash", cfg.Models.Daily)
	assert.Equal(t, "gemini-1.5-pro", cfg.Models.Pro)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Len(t, cfg.Accounts, 1)
}

func TestLoadConfigExplicitValues(t *testing.T) {
	path := writeConfig(t, `
apiPort: 9000
geminiApiKey: test-key
ledgerPath: /tmp/ledger.json
models:
  daily: gemini-2.0-flash
  pro: gemini-2.0-pro
database:
  type: postgres
  host: db.local
  port: "5432"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.APIPort)
	assert.Equal(t, "/tmp/ledger.json", cfg.LedgerPath)
	assert.Equal(t, "gemini-2.0-flash", cfg.Models.Daily)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "db.local", cfg.Database.Host)
}

func TestLoadConfigMissingSecretIsFatal(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	path := writeConfig(t, `
apiPort: 9000
`)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestLoadConfigSecretFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	path := writeConfig(t, `
apiPort: 9000
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.GeminiAPIKey)
}

func TestLoadConfigMissingFileUsesEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.GeminiAPIKey)
	assert.Equal(t, 8081, cfg.APIPort)
}
