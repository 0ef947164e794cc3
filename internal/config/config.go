// Package config loads MetaMind settings from defaults, an optional
// metamind.yaml, METAMIND_* environment variables and a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tordrt/metamind/internal/llm"
)

// KeyEnv is the environment variable holding the model API key.
const KeyEnv = "GROQ_API_KEY"

// Config holds every MetaMind setting.
type Config struct {
	// APIKey is the fallback key used when a caller supplies none.
	APIKey  string        `mapstructure:"api_key"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Extract ExtractConfig `mapstructure:"extract"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

// LLMConfig configures the model gateway.
type LLMConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	Temperature       float32       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// ChatConfig bounds the chat context.
type ChatConfig struct {
	HistoryBudget int `mapstructure:"history_budget"`
}

// ExtractConfig holds schema extraction defaults.
type ExtractConfig struct {
	SampleRows int `mapstructure:"sample_rows"`
}

// ServerConfig configures the JSON API.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// LogConfig selects the log mode (dev or prod) and level.
type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	def := llm.DefaultConfig()
	v.SetDefault("api_key", "")
	v.SetDefault("llm.base_url", def.BaseURL)
	v.SetDefault("llm.model", def.Model)
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.max_retries", def.MaxRetries)
	v.SetDefault("llm.initial_backoff", def.InitialBackoff)
	v.SetDefault("llm.max_backoff", def.MaxBackoff)
	v.SetDefault("llm.timeout", def.Timeout)
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("chat.history_budget", 6000)
	v.SetDefault("extract.sample_rows", 3)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_bytes", 32<<20)
	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "info")
}

// Load reads configuration. configFile may be empty, in which case an optional
// metamind.yaml in the working directory is used. A .env file in the working
// directory is loaded first and never overrides variables already set.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("METAMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("metamind")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv(KeyEnv))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.LLM.Model == "":
		return errors.New("llm.model is required")
	case c.LLM.MaxRetries < 0:
		return errors.New("llm.max_retries must not be negative")
	case c.LLM.Timeout <= 0:
		return errors.New("llm.timeout must be positive")
	case c.LLM.RequestsPerMinute < 0:
		return errors.New("llm.requests_per_minute must not be negative")
	case c.Chat.HistoryBudget < 0:
		return errors.New("chat.history_budget must not be negative")
	case c.Extract.SampleRows < 0:
		return errors.New("extract.sample_rows must not be negative")
	}
	return nil
}

// ClientConfig converts the llm section for llm.NewClient.
func (c *Config) ClientConfig() llm.Config {
	return llm.Config{
		BaseURL:           c.LLM.BaseURL,
		Model:             c.LLM.Model,
		Temperature:       c.LLM.Temperature,
		MaxTokens:         c.LLM.MaxTokens,
		MaxRetries:        c.LLM.MaxRetries,
		InitialBackoff:    c.LLM.InitialBackoff,
		MaxBackoff:        c.LLM.MaxBackoff,
		Timeout:           c.LLM.Timeout,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
	}
}

// ResolveAPIKey returns the caller's key, or the configured key when the caller
// supplied none.
func (c *Config) ResolveAPIKey(supplied string) string {
	if key := strings.TrimSpace(supplied); key != "" {
		return key
	}
	return c.APIKey
}
