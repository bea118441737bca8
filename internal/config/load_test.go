package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mfactl.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 100_000, cfg.KDFIterations)
	assert.Equal(t, 5*time.Second, cfg.Webhook.Timeout)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
master_key = "file-key-file-key-file-key-file-key"

[store]
driver = "sqlite"
dsn = "/tmp/mfa.db"

[webhook]
url = "https://hooks.example.com/mfa"
timeout = "2s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/mfa.db", cfg.Store.DSN)
	assert.Equal(t, 2*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, float64(10), cfg.Webhook.RatePerSecond)
	assert.Equal(t, "mfa", cfg.Store.Prefix)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
[store]
driver = "sqlite"
dsn = "/tmp/file.db"
`)
	t.Setenv("MFA_STORE_DSN", "/tmp/env.db")
	t.Setenv("MFA_KDF_ITERATIONS", "2000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Store.DSN)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 2000, cfg.KDFIterations)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, `mystery = 1`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config keys")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "redis without addr", mutate: func(c *Config) { c.Store.Driver = "redis" }, wantErr: "redis_addr"},
		{name: "sql without dsn", mutate: func(c *Config) { c.Store.Driver = "pgx" }, wantErr: "store.dsn"},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: "unknown store driver"},
		{name: "zero iterations", mutate: func(c *Config) { c.KDFIterations = 0 }, wantErr: "kdf_iterations"},
		{name: "webhook without rate", mutate: func(c *Config) {
			c.Webhook.URL = "https://x"
			c.Webhook.RatePerSecond = 0
		}, wantErr: "rate_per_second"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
