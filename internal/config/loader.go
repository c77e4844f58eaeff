package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	// Remote provider selection: openai, groq, openrouter, ollama.
	Provider string `json:"provider" yaml:"provider" toml:"provider"`
	// BaseURL overrides the provider endpoint (OpenAI-compatible hosts).
	BaseURL string `json:"base_url" yaml:"base_url" toml:"base_url"`
	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never lives in the config file.
	APIKeyEnv string `json:"api_key_env" yaml:"api_key_env" toml:"api_key_env"`
	Model     string `json:"model" yaml:"model" toml:"model"`

	// Retry and timeout knobs.
	MaxAttempts           int  `json:"max_attempts" yaml:"max_attempts" toml:"max_attempts"`
	BackoffBaseMS         int  `json:"backoff_base_ms" yaml:"backoff_base_ms" toml:"backoff_base_ms"`
	BackoffMaxJitterMS    int  `json:"backoff_max_jitter_ms" yaml:"backoff_max_jitter_ms" toml:"backoff_max_jitter_ms"`
	DisableTransportRetry bool `json:"disable_transport_retry" yaml:"disable_transport_retry" toml:"disable_transport_retry"`
	RequestTimeoutMS      int  `json:"request_timeout_ms" yaml:"request_timeout_ms" toml:"request_timeout_ms"`

	// Response cache bound.
	CacheBound int `json:"cache_bound" yaml:"cache_bound" toml:"cache_bound"`

	// Background task record history.
	TaskHistory int `json:"task_history" yaml:"task_history" toml:"task_history"`

	// Indexer settings.
	IndexStore   string   `json:"index_store" yaml:"index_store" toml:"index_store"`
	IndexInclude []string `json:"index_include" yaml:"index_include" toml:"index_include"`
	IndexExclude []string `json:"index_exclude" yaml:"index_exclude" toml:"index_exclude"`

	// CORS (opt-in).
	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// APIKey resolves the configured API key from the environment.
func (c Config) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}
