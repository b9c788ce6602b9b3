// ABOUTME: Configuration loading and parsing for budchat
// ABOUTME: YAML files with environment variable expansion and validation

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the complete budchat configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Providers ProvidersConfig `yaml:"providers"`
	Chat      ChatConfig      `yaml:"chat"`
	Tools     ToolsConfig     `yaml:"tools"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProvidersConfig holds per-vendor credentials and endpoints.
type ProvidersConfig struct {
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// OpenAIConfig covers both the chat-completions and responses modes.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// AnthropicConfig holds Anthropic messages API configuration.
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ChatConfig holds per-turn defaults applied when a request omits them.
// Temperature is a pointer so that omitting the key leaves sampling to
// the vendor default rather than pinning it at zero.
type ChatConfig struct {
	DefaultModel    string   `yaml:"default_model"`
	SystemPrompt    string   `yaml:"system_prompt"`
	ReasoningEffort string   `yaml:"reasoning_effort"`
	Temperature     *float64 `yaml:"temperature"`
	MaxTokens       int      `yaml:"max_tokens"`
	MaxIterations   int      `yaml:"max_iterations"`
}

// ToolsConfig lists the tool servers to register at startup.
type ToolsConfig struct {
	Servers []ToolServerConfig `yaml:"servers"`
}

// ToolServerConfig identifies one external tool server.
type ToolServerConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Chat.DefaultModel == "" {
		return fmt.Errorf("chat.default_model is required")
	}
	if c.Chat.MaxIterations < 0 {
		return fmt.Errorf("chat.max_iterations must not be negative")
	}
	if t := c.Chat.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("chat.temperature must be between 0 and 2, got %g", *t)
	}
	if c.Chat.MaxTokens < 0 {
		return fmt.Errorf("chat.max_tokens must not be negative")
	}
	for i, srv := range c.Tools.Servers {
		if srv.Name == "" || srv.URL == "" {
			return fmt.Errorf("tools.servers[%d]: name and url are required", i)
		}
	}
	return nil
}
