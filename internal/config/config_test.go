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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8084, cfg.Server.Port)
	assert.Equal(t, 0.01, cfg.Mining.MinSupport)
	assert.Equal(t, "confidence", cfg.Mining.Metric)
	assert.Equal(t, 0.6, cfg.Mining.MinThreshold)
	assert.Equal(t, 10, cfg.Mining.TopRules)
	assert.Equal(t, "iso-8859-1", cfg.Dataset.Encoding)
	assert.Equal(t, "localhost:8084", cfg.Address())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "basket.yaml")
	content := `
server:
  port: 9000
  read_timeout: 5s
dataset:
  path: retail.xlsx
  sheet: "Year 2010-2011"
mining:
  min_support: 0.02
  top_rules: 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("BASKET_MINING_MIN_SUPPORT", "0.05")
	t.Setenv("BASKET_LOGGER_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "retail.xlsx", cfg.Dataset.Path)
	assert.Equal(t, "Year 2010-2011", cfg.Dataset.Sheet)
	assert.Equal(t, 25, cfg.Mining.TopRules)
	assert.Equal(t, 0.05, cfg.Mining.MinSupport, "environment should override the file")
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout, "unset values keep their defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"empty dataset", func(c *Config) { c.Dataset.Path = "" }},
		{"bad encoding", func(c *Config) { c.Dataset.Encoding = "ebcdic" }},
		{"zero support", func(c *Config) { c.Mining.MinSupport = 0 }},
		{"support above one", func(c *Config) { c.Mining.MinSupport = 1.5 }},
		{"unknown metric", func(c *Config) { c.Mining.Metric = "gini" }},
		{"negative max len", func(c *Config) { c.Mining.MaxLen = -1 }},
		{"zero top rules", func(c *Config) { c.Mining.TopRules = 0 }},
		{"bad log level", func(c *Config) { c.Logger.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }},
		{"zero rps", func(c *Config) { c.Security.RateLimitRPS = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestValidate_Encodings(t *testing.T) {
	for _, name := range []string{"iso-8859-1", "latin1", "windows-1252", "cp1252", "utf-8", "utf8", "UTF-8", "CP1252"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Dataset.Encoding = name
			assert.NoError(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Dataset.Encoding = "ebcdic"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cp1252")
}
