// Package config provides configuration loading and management for turnmesh.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/turnmesh/engine"
	"github.com/hupe1980/turnmesh/logging"
)

// LLM providers understood by the CLI.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config represents the complete turnmesh configuration
type Config struct {
	Engine  engine.Config `yaml:"engine"`
	Remote  RemoteConfig  `yaml:"remote"`
	Safety  SafetyConfig  `yaml:"safety"`
	LLM     LLMConfig     `yaml:"llm"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// RemoteConfig configures remote annotators and generators
type RemoteConfig struct {
	// CacheTTL is how long successful remote responses are reused
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// CacheMaxEntries bounds the response cache (0 = unbounded)
	CacheMaxEntries int `yaml:"cache_max_entries"`
	// Annotators are posted the turn and their dependency values
	Annotators []AnnotatorConfig `yaml:"annotators,omitempty"`
	// Generators answer with a candidate
	Generators []GeneratorConfig `yaml:"generators,omitempty"`
}

// AnnotatorConfig describes one remote annotator
type AnnotatorConfig struct {
	Name         string        `yaml:"name"`
	URL          string        `yaml:"url"`
	Dependencies []string      `yaml:"dependencies,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	// ResultPath is a gjson path into the response (empty = whole body)
	ResultPath string `yaml:"result_path,omitempty"`
	// Default is used when the annotator fails or is late
	Default string `yaml:"default,omitempty"`
	// Slow annotators may be released before they finish
	Slow bool `yaml:"slow,omitempty"`
}

// GeneratorConfig describes one remote candidate generator
type GeneratorConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SafetyConfig configures the content-safety checker
type SafetyConfig struct {
	// Blocklist holds words and phrases that reject a candidate
	Blocklist []string `yaml:"blocklist,omitempty"`
}

// LLMConfig configures the model-backed generator
type LLMConfig struct {
	// Provider is one of none, openai, anthropic
	Provider string `yaml:"provider"`
	// Name is the producer name (default: llm)
	Name string `yaml:"name"`
	// Model overrides the provider's default model
	Model string `yaml:"model"`
	// Temperature controls randomness (0.0-2.0, default: 0.7)
	Temperature float64 `yaml:"temperature"`
	// MaxTokens bounds the completion length
	MaxTokens int64 `yaml:"max_tokens"`
	// Instruction is a text/template rendered per turn
	Instruction string `yaml:"instruction"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address of /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: engine.DefaultConfig(),
		Remote: RemoteConfig{
			CacheTTL:        5 * time.Minute,
			CacheMaxEntries: 10000,
		},
		LLM: LLMConfig{
			Provider:    ProviderNone,
			Name:        "llm",
			Temperature: 0.7,
			MaxTokens:   256,
		},
		Logging: LoggingConfig{
			Level:  logging.LogLevelInfo.String(),
			Format: "text",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	switch c.LLM.Provider {
	case ProviderNone, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("llm.provider must be one of none, openai, anthropic, got %q", c.LLM.Provider)
	}
	if c.LLM.Provider != ProviderNone && c.LLM.Name == "" {
		return fmt.Errorf("llm.name is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}

	seen := map[string]bool{}
	for i, a := range c.Remote.Annotators {
		if a.Name == "" || a.URL == "" {
			return fmt.Errorf("remote.annotators[%d]: name and url are required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("remote.annotators[%d]: duplicate name %q", i, a.Name)
		}
		seen[a.Name] = true
	}

	seen = map[string]bool{}
	for i, g := range c.Remote.Generators {
		if g.Name == "" || g.URL == "" {
			return fmt.Errorf("remote.generators[%d]: name and url are required", i)
		}
		if seen[g.Name] {
			return fmt.Errorf("remote.generators[%d]: duplicate name %q", i, g.Name)
		}
		seen[g.Name] = true
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// SlowAnnotators returns the names of annotators marked slow, merged with
// the engine's own list.
func (c *Config) SlowAnnotators() []string {
	slow := append([]string(nil), c.Engine.SlowAnnotators...)
	for _, a := range c.Remote.Annotators {
		if a.Slow {
			slow = append(slow, a.Name)
		}
	}
	return slow
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Engine
	e, o := &c.Engine, other.Engine
	mergeDuration(&e.TurnTimeout, o.TurnTimeout)
	mergeDuration(&e.AnnotationTimeout, o.AnnotationTimeout)
	mergeDuration(&e.ResponseTimeout, o.ResponseTimeout)
	mergeDuration(&e.PromptTimeout, o.PromptTimeout)
	mergeDuration(&e.StateUpdateTimeout, o.StateUpdateTimeout)
	if o.DisableTimeouts {
		e.DisableTimeouts = true
	}
	if o.RebootstrapMissing {
		e.RebootstrapMissing = true
	}
	mergeString(&e.ApologyText, o.ApologyText)
	mergeString(&e.FallbackProducer, o.FallbackProducer)
	mergeList(&e.Bootstrap, o.Bootstrap)
	mergeList(&e.Protected, o.Protected)
	mergeList(&e.ProtectedUnlessNoFollowUp, o.ProtectedUnlessNoFollowUp)
	mergeList(&e.SlowAnnotators, o.SlowAnnotators)
	mergeList(&e.SubmissionHints, o.SubmissionHints)

	// Remote
	mergeDuration(&c.Remote.CacheTTL, other.Remote.CacheTTL)
	if other.Remote.CacheMaxEntries != 0 {
		c.Remote.CacheMaxEntries = other.Remote.CacheMaxEntries
	}
	if len(other.Remote.Annotators) > 0 {
		c.Remote.Annotators = other.Remote.Annotators
	}
	if len(other.Remote.Generators) > 0 {
		c.Remote.Generators = other.Remote.Generators
	}

	// Safety
	mergeList(&c.Safety.Blocklist, other.Safety.Blocklist)

	// LLM
	mergeString(&c.LLM.Provider, other.LLM.Provider)
	mergeString(&c.LLM.Name, other.LLM.Name)
	mergeString(&c.LLM.Model, other.LLM.Model)
	mergeString(&c.LLM.Instruction, other.LLM.Instruction)
	if other.LLM.Temperature != 0 {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.MaxTokens != 0 {
		c.LLM.MaxTokens = other.LLM.MaxTokens
	}

	// Metrics
	mergeString(&c.Metrics.Addr, other.Metrics.Addr)

	// Logging
	mergeString(&c.Logging.Level, other.Logging.Level)
	mergeString(&c.Logging.Format, other.Logging.Format)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func mergeList(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = append([]string(nil), v...)
	}
}
