// Package config loads plando configuration from YAML with environment
// overrides. Durations are stored as strings ("300s", "2m") and parsed
// on access so a hand-edited file stays readable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all plando configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM completion service (classification + generation)
	LLM LLMConfig `yaml:"llm"`

	// Session state store
	Session SessionConfig `yaml:"session"`

	// Dialogue orchestration
	Dialogue DialogueConfig `yaml:"dialogue"`

	// Intent catalog
	Catalog CatalogConfig `yaml:"catalog"`

	// Transcript persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the completion service used by the semantic
// classifier and the response generator.
type LLMConfig struct {
	Provider        string `yaml:"provider"` // openai, gemini
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	BaseURL         string `yaml:"base_url"`
	ClassifyTimeout string `yaml:"classify_timeout"`
	GenerateTimeout string `yaml:"generate_timeout"`
}

// SessionConfig configures the session state store.
type SessionConfig struct {
	// TTL is the sliding idle window after which a session is evicted.
	// 300s is a contract with the frontend; change it only together
	// with the frontend's assumptions.
	TTL           string `yaml:"ttl"`
	SweepInterval string `yaml:"sweep_interval"`
	Shards        int    `yaml:"shards"`
	HistorySize   int    `yaml:"history_size"`
}

// DialogueConfig configures the orchestration policies.
type DialogueConfig struct {
	// FallbackEscalateAt is the consecutive-fallback count that forces
	// the guided-help menu.
	FallbackEscalateAt int `yaml:"fallback_escalate_at"`

	// Semantic classification result cache
	CacheSize int    `yaml:"cache_size"`
	CacheTTL  string `yaml:"cache_ttl"`
}

// CatalogConfig configures intent catalog loading.
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// StoreConfig configures the transcript audit store.
type StoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "plando",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "gpt-4o-mini",
			ClassifyTimeout: "8s",
			GenerateTimeout: "20s",
		},

		Session: SessionConfig{
			TTL:           "300s",
			SweepInterval: "60s",
			Shards:        16,
			HistorySize:   8,
		},

		Dialogue: DialogueConfig{
			FallbackEscalateAt: 3,
			CacheSize:          256,
			CacheTTL:           "60s",
		},

		Catalog: CatalogConfig{
			Path:  "catalog.yaml",
			Watch: false,
		},

		Store: StoreConfig{
			Enabled:      false,
			DatabasePath: "data/plando.db",
		},

		Logging: LoggingConfig{
			Debug: false,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if key := os.Getenv("PLANDO_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("PLANDO_LLM_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if path := os.Getenv("PLANDO_CATALOG"); path != "" {
		c.Catalog.Path = path
	}
	if path := os.Getenv("PLANDO_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

// Validate checks invariants and fills zero values with defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()

	switch c.LLM.Provider {
	case "", "openai", "gemini":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	if c.Session.Shards <= 0 {
		c.Session.Shards = def.Session.Shards
	}
	if c.Session.HistorySize <= 0 {
		c.Session.HistorySize = def.Session.HistorySize
	}
	if c.Dialogue.FallbackEscalateAt <= 0 {
		c.Dialogue.FallbackEscalateAt = def.Dialogue.FallbackEscalateAt
	}
	if c.Dialogue.CacheSize <= 0 {
		c.Dialogue.CacheSize = def.Dialogue.CacheSize
	}

	for name, raw := range map[string]string{
		"session.ttl":            c.Session.TTL,
		"session.sweep_interval": c.Session.SweepInterval,
		"dialogue.cache_ttl":     c.Dialogue.CacheTTL,
		"llm.classify_timeout":   c.LLM.ClassifyTimeout,
		"llm.generate_timeout":   c.LLM.GenerateTimeout,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", name, raw)
		}
	}

	return nil
}

// GetSessionTTL returns the session TTL as a duration.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Session.TTL, 300*time.Second)
}

// GetSweepInterval returns the eviction sweep interval.
func (c *Config) GetSweepInterval() time.Duration {
	return parseDuration(c.Session.SweepInterval, 60*time.Second)
}

// GetClassifyTimeout returns the semantic classifier deadline.
func (c *Config) GetClassifyTimeout() time.Duration {
	return parseDuration(c.LLM.ClassifyTimeout, 8*time.Second)
}

// GetGenerateTimeout returns the text-generation deadline.
func (c *Config) GetGenerateTimeout() time.Duration {
	return parseDuration(c.LLM.GenerateTimeout, 20*time.Second)
}

// GetCacheTTL returns the semantic result cache TTL.
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Dialogue.CacheTTL, 60*time.Second)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
