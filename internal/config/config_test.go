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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9997", cfg.Server.URL)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  url: https://agent.example.com
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://agent.example.com", cfg.Server.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unspecified fields keep defaults.
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PAPERCHAT_SERVER_URL", "http://override:1234")
	t.Setenv("PAPERCHAT_LOG_LEVEL", "WARN")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://override:1234", cfg.Server.URL)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_ExpandsSecrets(t *testing.T) {
	t.Setenv("MY_NOTION_SECRET", "secret_abc")
	path := writeConfig(t, `
notion:
  integrationSecret: ${MY_NOTION_SECRET}
  databaseId: ${UNSET_VARIABLE_XYZ}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret_abc", cfg.Notion.IntegrationSecret)
	// Unset variables are left as-is.
	assert.Equal(t, "${UNSET_VARIABLE_XYZ}", cfg.Notion.DatabaseID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"bad url scheme", func(c *Config) { c.Server.URL = "ftp://x" }, "server.url"},
		{"unparsable url", func(c *Config) { c.Server.URL = "http://[::bad" }, "server.url"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.driver"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			issues := Validate(&cfg)
			require.Len(t, issues, 1)
			assert.Equal(t, tt.path, issues[0].Path)
		})
	}

	t.Run("valid", func(t *testing.T) {
		cfg := Defaults()
		assert.Empty(t, Validate(&cfg))
	})
}

func TestResolvePaths_HomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAPERCHAT_HOME", dir)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, dir, paths.Base)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), paths.Config)

	require.NoError(t, paths.EnsureDirs())
	assert.DirExists(t, paths.Data)

	cfg := Defaults()
	assert.Equal(t, filepath.Join(dir, "data", "paperchat.db"), paths.DatabasePath(cfg))
	cfg.Storage.Path = "/tmp/custom.db"
	assert.Equal(t, "/tmp/custom.db", paths.DatabasePath(cfg))
}
