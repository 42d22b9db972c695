// Package config loads and validates the pipeline configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Spelling SpellingConfig `yaml:"spelling"`
	Grammar  GrammarConfig  `yaml:"grammar"`
	TTS      TTSConfig      `yaml:"tts"`
	Model    ModelConfig    `yaml:"model"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	RunLog   RunLogConfig   `yaml:"runlog"`
}

// PipelineConfig controls chain assembly and failure handling
type PipelineConfig struct {
	// FailurePolicy is "skip" (default) or "abort". Abort is also forced by
	// the --fail-fast CLI flag.
	FailurePolicy string `yaml:"failure_policy"`
}

// SpellingConfig configures the rule-based spelling stage
type SpellingConfig struct {
	Enabled bool `yaml:"enabled"`
	// ExtraWords maps additional misspellings to their corrections,
	// merged over the built-in table.
	ExtraWords map[string]string `yaml:"extra_words,omitempty"`
}

// GrammarConfig configures the LanguageTool-backed grammar stage
type GrammarConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Language string `yaml:"language"`
	// Timeout is a Go duration string, e.g. "30s".
	Timeout string `yaml:"timeout"`
}

// TTSConfig configures the speech-synthesis normalization stage
type TTSConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ModelConfig configures the model-backed correction stage
type ModelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Name     string `yaml:"name"`
	// Temperature is the sampling temperature; 0 keeps correction deterministic.
	Temperature float64 `yaml:"temperature"`
	// Mode selects how the model stage combines with the rule-based stages:
	// replace, hybrid, or supplement.
	Mode        string `yaml:"mode"`
	Concurrency int    `yaml:"concurrency"`
	// Timeout is a Go duration string, e.g. "2m".
	Timeout string `yaml:"timeout"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the optional Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// RunLogConfig controls the SQLite run-history store
type RunLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Model integration modes
const (
	ModeReplace    = "replace"
	ModeHybrid     = "hybrid"
	ModeSupplement = "supplement"
)

// NormalizeFailurePolicy maps raw input to a supported policy, defaulting to skip.
func NormalizeFailurePolicy(raw string) string {
	if raw == "abort" {
		return "abort"
	}
	return "skip"
}

// NormalizeModelMode maps raw input to a supported model mode, defaulting to replace.
func NormalizeModelMode(raw string) string {
	switch raw {
	case ModeHybrid, ModeSupplement:
		return raw
	default:
		return ModeReplace
	}
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{FailurePolicy: "skip"},
		Spelling: SpellingConfig{Enabled: true},
		Grammar: GrammarConfig{
			Enabled:  true,
			Endpoint: "http://localhost:8010",
			Language: "en-US",
			Timeout:  "30s",
		},
		TTS: TTSConfig{Enabled: true},
		Model: ModelConfig{
			Endpoint:    "http://localhost:11434",
			Name:        "grmr-v3",
			Temperature: 0,
			Mode:        ModeReplace,
			Concurrency: 2,
			Timeout:     "2m",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Listen: ":9090"},
		RunLog:  RunLogConfig{Path: "satcn-runs.db"},
	}
}

// Load loads configuration from the specified file. A missing file yields
// the defaults; a present but malformed file is an error.
func Load(configPath string) (*Config, error) {
	// Load .env if present so ${VAR} expansion below can see it.
	_ = godotenv.Load()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	config := Default()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Pipeline.FailurePolicy = NormalizeFailurePolicy(config.Pipeline.FailurePolicy)
	config.Model.Mode = NormalizeModelMode(config.Model.Mode)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Grammar.Enabled && c.Grammar.Endpoint == "" {
		return fmt.Errorf("grammar stage enabled but no endpoint configured")
	}
	if c.Model.Enabled && c.Model.Endpoint == "" {
		return fmt.Errorf("model stage enabled but no endpoint configured")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model temperature %v out of range [0, 2]", c.Model.Temperature)
	}
	if c.Model.Concurrency < 0 {
		return fmt.Errorf("model concurrency must not be negative")
	}
	if c.Grammar.Timeout != "" {
		if _, err := time.ParseDuration(c.Grammar.Timeout); err != nil {
			return fmt.Errorf("invalid grammar timeout: %w", err)
		}
	}
	if c.Model.Timeout != "" {
		if _, err := time.ParseDuration(c.Model.Timeout); err != nil {
			return fmt.Errorf("invalid model timeout: %w", err)
		}
	}
	return nil
}

// TimeoutDuration returns the parsed request timeout with a 30s fallback.
func (g GrammarConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(g.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// TimeoutDuration returns the parsed per-block timeout with a 2m fallback.
func (m ModelConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(m.Timeout); err == nil && d > 0 {
		return d
	}
	return 2 * time.Minute
}

// Init creates a new configuration file with the default content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
