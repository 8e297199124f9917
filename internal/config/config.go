package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file Ghost looks for at the
// project root.
const FileName = "ghost.yaml"

// Config is the full ghost.yaml configuration.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	AI      AIConfig      `yaml:"ai"`
	Scanner ScannerConfig `yaml:"scanner"`
	Tests   TestConfig    `yaml:"tests"`
	Watcher WatcherConfig `yaml:"watcher"`
}

// ProjectConfig identifies the project under watch.
type ProjectConfig struct {
	Name     string `yaml:"name"`
	Language string `yaml:"language"`
}

// AIConfig configures the completion provider.
type AIConfig struct {
	// Provider selects the client: anthropic, openai, groq, openrouter,
	// lmstudio, ollama, or custom (any OpenAI-compatible endpoint).
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	// APIKey overrides the provider's environment variable lookup.
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// RateLimitRPM derives the minimum spacing between completion calls
	// (interval = 60s / RateLimitRPM).
	RateLimitRPM int     `yaml:"rate_limit_rpm"`
	Temperature  float64 `yaml:"temperature"`
	MaxRetries   int     `yaml:"max_retries"`
}

// ScannerConfig configures the context scanner and the watcher's
// ignore rules.
type ScannerConfig struct {
	IgnoreDirs  []string `yaml:"ignore_dirs"`
	IgnoreFiles []string `yaml:"ignore_files"`
}

// TestConfig configures test generation and healing.
type TestConfig struct {
	Framework       string `yaml:"framework"`
	OutputDir       string `yaml:"output_dir"`
	AutoHeal        bool   `yaml:"auto_heal"`
	MaxHealAttempts int    `yaml:"max_heal_attempts"`
	UseJudge        bool   `yaml:"use_judge"`
}

// WatcherConfig configures change coalescing.
type WatcherConfig struct {
	DebounceSeconds int `yaml:"debounce_seconds"`
}

// Default returns the configuration Ghost writes during `ghost init`.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Name:     "my-app",
			Language: "python",
		},
		AI: AIConfig{
			Provider:     "ollama",
			Model:        "llama3.2",
			RateLimitRPM: 30,
			Temperature:  0.1,
			MaxRetries:   5,
		},
		Scanner: ScannerConfig{
			IgnoreDirs: []string{
				".venv", "venv", "node_modules", ".git", "__pycache__",
				"dist", "build", ".ghost", "tests", ".tox", ".pytest_cache",
			},
			IgnoreFiles: []string{"setup.py", "conftest.py", "__init__.py"},
		},
		Tests: TestConfig{
			Framework:       "pytest",
			OutputDir:       "tests",
			AutoHeal:        true,
			MaxHealAttempts: 3,
			UseJudge:        true,
		},
		Watcher: WatcherConfig{
			DebounceSeconds: 15,
		},
	}
}

// Load reads ghost.yaml from projectRoot. Missing file returns defaults so
// a bare `ghost watch` still works; a malformed file is an error.
func Load(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, FileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to projectRoot/ghost.yaml.
func (c *Config) Save(projectRoot string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	path := filepath.Join(projectRoot, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields the orchestration core depends on.
func (c *Config) Validate() error {
	if c.AI.RateLimitRPM < 1 {
		return fmt.Errorf("ai.rate_limit_rpm must be at least 1, got %d", c.AI.RateLimitRPM)
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("ai.max_retries must not be negative, got %d", c.AI.MaxRetries)
	}
	if c.Tests.MaxHealAttempts < 1 {
		return fmt.Errorf("tests.max_heal_attempts must be at least 1, got %d", c.Tests.MaxHealAttempts)
	}
	if c.Watcher.DebounceSeconds < 0 {
		return fmt.Errorf("watcher.debounce_seconds must not be negative, got %d", c.Watcher.DebounceSeconds)
	}
	if c.Tests.OutputDir == "" {
		return fmt.Errorf("tests.output_dir must not be empty")
	}
	if filepath.IsAbs(c.Tests.OutputDir) || strings.Contains(c.Tests.OutputDir, "..") {
		return fmt.Errorf("tests.output_dir must be a relative path inside the project, got %q", c.Tests.OutputDir)
	}
	return nil
}

// RateInterval returns the minimum spacing between completion calls.
func (c *Config) RateInterval() time.Duration {
	rpm := c.AI.RateLimitRPM
	if rpm < 1 {
		rpm = 1
	}
	return time.Duration(float64(time.Minute) / float64(rpm))
}

// Debounce returns the watcher coalescing window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watcher.DebounceSeconds) * time.Second
}

// ResolveAPIKey returns the API key for the configured provider, preferring
// the explicit config value over the conventional environment variable.
func (c *Config) ResolveAPIKey() string {
	if c.AI.APIKey != "" {
		return c.AI.APIKey
	}

	var envVar string
	switch strings.ToLower(c.AI.Provider) {
	case "anthropic":
		envVar = "ANTHROPIC_API_KEY"
	case "openai":
		envVar = "OPENAI_API_KEY"
	case "groq":
		envVar = "GROQ_API_KEY"
	case "openrouter":
		envVar = "OPENROUTER_API_KEY"
	default:
		// Local endpoints (ollama, lmstudio) typically need no key, but
		// honor a generic override when present.
		envVar = "GHOST_API_KEY"
	}

	return os.Getenv(envVar)
}
