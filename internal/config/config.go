// Package config loads stepwise settings from flags, STEPWISE_* environment
// variables, an optional stepwise.yaml file and a .env file, in that order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abhisek/stepwise/internal/activity"
	"github.com/abhisek/stepwise/internal/guided"
	"github.com/abhisek/stepwise/internal/llm"
)

// EnvPrefix prefixes every environment variable stepwise reads.
const EnvPrefix = "STEPWISE"

// Config is the resolved runtime configuration.
type Config struct {
	DB          string `mapstructure:"db"`
	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	MetricsFile string `mapstructure:"metrics-file"`

	// Student is the default student id for session commands.
	Student string `mapstructure:"student"`

	// RulesFile replaces the embedded mistake-classification rules.
	RulesFile string `mapstructure:"rules-file"`
	// Moderation adds the LLM moderation gate after the rule gate.
	Moderation bool `mapstructure:"moderation"`

	RedisURL  string        `mapstructure:"redis-url"`
	GuidedTTL time.Duration `mapstructure:"guided-ttl"`

	AMQPURL      string `mapstructure:"amqp-url"`
	AMQPExchange string `mapstructure:"amqp-exchange"`

	LLM llm.Config `mapstructure:"llm"`

	// File is the config file that was read, empty if none.
	File string `mapstructure:"-"`
}

// Load resolves configuration. flags may be nil; explicitFile, when set,
// must exist.
func Load(flags *pflag.FlagSet, explicitFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	} else {
		v.SetConfigName("stepwise")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/stepwise")
		v.AddConfigPath("/etc/stepwise")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.LLM.Provider == "" {
		if found, ok := llm.DiscoverConfig(); ok {
			found.Retry, found.Timeout = cfg.LLM.Retry, cfg.LLM.Timeout
			cfg.LLM = found
		} else {
			cfg.LLM.Provider = "none"
		}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := llm.DefaultConfig()

	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("guided-ttl", guided.DefaultTTL)
	v.SetDefault("amqp-exchange", activity.DefaultExchange)
	v.SetDefault("moderation", false)
	for _, k := range []string{"db", "student", "metrics-file", "rules-file", "redis-url", "amqp-url"} {
		v.SetDefault(k, "")
	}

	// Every leaf needs a default so that AutomaticEnv can see it.
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", d.Anthropic.Model)
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.model", d.OpenAI.Model)
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", d.Gemini.Model)
	v.SetDefault("llm.openrouter.api_key", "")
	v.SetDefault("llm.openrouter.model", d.OpenRouter.Model)
	v.SetDefault("llm.openrouter.base_url", "")
	v.SetDefault("llm.retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", d.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", d.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", d.Retry.Multiplier)
	v.SetDefault("llm.timeout", d.Timeout)
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.GuidedTTL <= 0 {
		return fmt.Errorf("guided-ttl must be positive, got %s", c.GuidedTTL)
	}
	if c.AMQPURL != "" && c.AMQPExchange == "" {
		return errors.New("amqp-exchange is required when amqp-url is set")
	}
	return c.LLM.Validate()
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewLogger builds the process logger. Unknown values fall back to info
// and text.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
