package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolated(t *testing.T) LoadOptions {
	t.Helper()
	dir := t.TempDir()
	return LoadOptions{
		File:    writeFile(t, dir, "config.yaml", ""),
		EnvFile: filepath.Join(dir, "missing.env"),
		Environ: []string{},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(isolated(t))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Equal(t, 6*time.Second, cfg.DatasetInterval.Std())
	assert.Equal(t, 5*time.Second, cfg.InsightInterval.Std())
	assert.Zero(t, cfg.RequestTimeout.Std())
	assert.False(t, cfg.Sealed())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	opts := LoadOptions{
		File: writeFile(t, dir, "config.yaml", strings.Join([]string{
			"base_url: http://yaml.example:8000/",
			"dataset_interval: 10s",
			"log_level: info",
			"preview_addr: 127.0.0.1:9000",
		}, "\n")),
		EnvFile: writeFile(t, dir, ".env", strings.Join([]string{
			"INSIGHTS_LOG_LEVEL=debug",
			"INSIGHTS_INSIGHT_INTERVAL=2s",
			"INSIGHTS_PREVIEW_ADDR=127.0.0.1:9100",
		}, "\n")),
		Environ: []string{
			"INSIGHTS_PREVIEW_ADDR=127.0.0.1:9200",
			"INSIGHTS_BACKEND_BASE_URL=https://api.example.com",
			"HOME=/tmp",
		},
		Overrides: map[string]string{"dataset_interval": "1m", "log_mode": ""},
	}

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, time.Minute, cfg.DatasetInterval.Std())
	assert.Equal(t, 2*time.Second, cfg.InsightInterval.Std())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "dev", cfg.LogMode)
	assert.Equal(t, "127.0.0.1:9200", cfg.PreviewAddr)
}

func TestLoadTrimsBaseURL(t *testing.T) {
	opts := isolated(t)
	opts.Overrides = map[string]string{"base_url": " http://localhost:9000/ "}
	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"base url scheme":  {"base_url": "ftp://example.com"},
		"zero interval":    {"insight_interval": "0s"},
		"bad duration":     {"dataset_interval": "soon"},
		"log level":        {"log_level": "verbose"},
		"short hash key":   {"token_hash_key": "short"},
		"block without":    {"token_block_key": strings.Repeat("b", 16)},
		"block key length": {"token_hash_key": strings.Repeat("h", 32), "token_block_key": strings.Repeat("b", 20)},
		"unknown key":      {"colour": "blue"},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			opts := isolated(t)
			opts.Overrides = overrides
			_, err := Load(opts)
			require.Error(t, err)
		})
	}
}

func TestLoadSealingKeys(t *testing.T) {
	opts := isolated(t)
	opts.Environ = []string{
		"INSIGHTS_TOKEN_HASH_KEY=" + strings.Repeat("h", 32),
		"INSIGHTS_TOKEN_BLOCK_KEY=" + strings.Repeat("b", 32),
	}
	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.True(t, cfg.Sealed())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	opts := isolated(t)
	opts.File = filepath.Join(t.TempDir(), "nope.yaml")
	_, err := Load(opts)
	require.Error(t, err)
}

func TestLoadRejectsUnknownYAMLKey(t *testing.T) {
	opts := isolated(t)
	opts.File = writeFile(t, t.TempDir(), "config.yaml", "colour: blue\n")
	_, err := Load(opts)
	require.ErrorContains(t, err, "colour")
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)
	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out)
}
