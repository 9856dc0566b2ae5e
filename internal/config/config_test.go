package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealgraph/internal/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, InfererNone, cfg.TagInferer)
	assert.Equal(t, 40, cfg.RateLimitBurst)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `{
		"DATABASE_URL": "postgres://file",
		"http_addr": ":9000",
		"log_level": "verbose",
		"rate_limit_rps": 5
	}`)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.DatabaseURL)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, 7, cfg.RateLimitBurst)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, logger.LevelVerbose, cfg.Level())
}

func TestLoadRejectsBadInput(t *testing.T) {
	_, err := Load(writeConfig(t, `{not json`))
	assert.Error(t, err)

	t.Setenv("RATE_LIMIT_RPS", "fast")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(c *Config) { c.DatabaseURL = "postgres://x" }, false},
		{"missing database", func(c *Config) {}, true},
		{"gemini without key", func(c *Config) {
			c.DatabaseURL = "postgres://x"
			c.TagInferer = InfererGemini
		}, true},
		{"unknown inferer", func(c *Config) {
			c.DatabaseURL = "postgres://x"
			c.TagInferer = "oracle"
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
