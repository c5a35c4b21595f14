// Package config handles dirigent configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./dirigent.yaml, ~/.config/dirigent/config.yaml, /etc/dirigent/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"dirigent.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "dirigent", "config.yaml"))
	}

	paths = append(paths, "/etc/dirigent/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all dirigent configuration.
type Config struct {
	Listen        ListenConfig            `yaml:"listen"`
	Anthropic     AnthropicConfig         `yaml:"anthropic"`
	MQTT          MQTTConfig              `yaml:"mqtt"`
	Driver        DriverConfig            `yaml:"driver"`
	Pricing       map[string]PricingEntry `yaml:"pricing"`
	DirectivesDir string                  `yaml:"directives_dir"`
	DataDir       string                  `yaml:"data_dir"`
	LogLevel      string                  `yaml:"log_level"`
}

// ListenConfig defines the webhook API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// MaxTokens caps completion length per request.
	MaxTokens int `yaml:"max_tokens"`
	// ThinkingBudget enables extended thinking with the given token
	// budget. Zero disables thinking.
	ThinkingBudget int `yaml:"thinking_budget"`
}

// MQTTConfig defines the optional progress notifier broker connection.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // e.g. mqtt://broker.local:1883
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"` // default "dirigent"
}

// DriverConfig defines directive execution limits.
type DriverConfig struct {
	// MaxTurns is the default tool-call turn budget when neither the
	// directive nor the request specifies one.
	MaxTurns int `yaml:"max_turns"`
	// RetryAttempts is how many times a failed completion request is
	// retried before the run is aborted.
	RetryAttempts int `yaml:"retry_attempts"`
}

// PricingEntry defines per-model token pricing in USD per million tokens.
type PricingEntry struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// Load reads configuration from a YAML file. Environment variable
// references in the file (e.g. ${ANTHROPIC_API_KEY}) are expanded
// before parsing. Defaults are applied to unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if c.Anthropic.MaxTokens == 0 {
		c.Anthropic.MaxTokens = 16000
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "dirigent"
	}
	if c.Driver.MaxTurns == 0 {
		c.Driver.MaxTurns = 15
	}
	if c.Driver.RetryAttempts == 0 {
		c.Driver.RetryAttempts = 1
	}
	if c.DirectivesDir == "" {
		c.DirectivesDir = "directives"
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
}

// UsageDBPath returns the path of the run usage database.
func (c *Config) UsageDBPath() string {
	return filepath.Join(c.DataDir, "usage.db")
}
