package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/stepwise/internal/activity"
	"github.com/abhisek/stepwise/internal/guided"
)

// isolate runs the test from an empty directory with no provider keys in
// the environment so that stray .env or stepwise.yaml files are not read.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY", "STEPWISE_LLM_PROVIDER"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("db", "", "")
	fs.String("log-level", "info", "")
	fs.String("log-format", "text", "")
	fs.String("metrics-file", "", "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(testFlags(), "")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, guided.DefaultTTL, cfg.GuidedTTL)
	assert.Equal(t, activity.DefaultExchange, cfg.AMQPExchange)
	assert.Equal(t, "none", cfg.LLM.Provider)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2, cfg.LLM.Retry.MaxAttempts)
	assert.Empty(t, cfg.File)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	yaml := []byte(`
log-level: debug
redis-url: redis://localhost:6379/0
guided-ttl: 5m
llm:
  provider: openai
  openai:
    api_key: from-file
    model: gpt-test
`)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))
	t.Setenv("STEPWISE_LOG_LEVEL", "warn")
	t.Setenv("STEPWISE_LLM_OPENAI_API_KEY", "from-env")

	cfg, err := Load(testFlags(), path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 5*time.Minute, cfg.GuidedTTL)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "from-env", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "gpt-test", cfg.LLM.OpenAI.Model)
	require.NoError(t, cfg.Validate())
}

func TestLoadFlagWins(t *testing.T) {
	isolate(t)
	t.Setenv("STEPWISE_DB", "/from/env.db")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--db", "/from/flag.db", "--log-format", "json"}))

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.db", cfg.DB)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadSearchPathAndDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stepwise.yaml"), []byte("metrics-file: stepwise.prom\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ANTHROPIC_API_KEY=sk-from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ANTHROPIC_API_KEY") })

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "stepwise.prom", cfg.MetricsFile)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-from-dotenv", cfg.LLM.Anthropic.APIKey)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(nil, filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolate(t)
	base, err := Load(nil, "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
		{"zero ttl", func(c *Config) { c.GuidedTTL = 0 }},
		{"amqp without exchange", func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPExchange = "" }},
		{"provider without key", func(c *Config) { c.LLM.Provider = "gemini" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
