// Package config handles configuration loading and management for the
// pipeline CLI. It supports XDG config paths, project-level overrides, and
// environment variables, the same layering the teacher's config package
// used, trimmed to the sections the pipeline core actually reads.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for the pipeline CLI.
type Config struct {
	Anthropic   AnthropicConfig   `mapstructure:"anthropic"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Timeouts    TimeoutsConfig    `mapstructure:"timeouts"`
	Git         GitConfig         `mapstructure:"git"`
	Review      ReviewConfig      `mapstructure:"review"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// ConcurrencyConfig bounds the pipeline's worker pools (spec §5).
type ConcurrencyConfig struct {
	MaxEngineers int `mapstructure:"max_engineers"`
	MaxReviewers int `mapstructure:"max_reviewers"`
}

// TimeoutsConfig holds per-invocation Agent Executor bounds.
type TimeoutsConfig struct {
	MaxTurns int `mapstructure:"max_turns"`
}

// GitConfig holds base-repository Git settings.
type GitConfig struct {
	BaseBranch string `mapstructure:"base_branch"`
	UseRemote  bool   `mapstructure:"use_remote"`
}

// ReviewConfig holds Review Workflow policy settings.
type ReviewConfig struct {
	MaxRetries     int    `mapstructure:"max_retries"`
	DefaultVerdict string `mapstructure:"default_verdict"`
	// ProtectedPatterns are glob paths (supporting "**") that trigger one
	// mandatory extra review pass even after an APPROVED verdict. Empty
	// disables the escalation heuristic entirely.
	ProtectedPatterns []string `mapstructure:"protected_patterns"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.kugutsu.yaml in current directory or parent)
// 3. User config (~/.config/kugutsu/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")
	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("concurrency.max_engineers", cfg.Concurrency.MaxEngineers)
	v.Set("concurrency.max_reviewers", cfg.Concurrency.MaxReviewers)
	v.Set("timeouts.max_turns", cfg.Timeouts.MaxTurns)
	v.Set("git.base_branch", cfg.Git.BaseBranch)
	v.Set("git.use_remote", cfg.Git.UseRemote)
	v.Set("review.max_retries", cfg.Review.MaxRetries)
	v.Set("review.default_verdict", cfg.Review.DefaultVerdict)
	v.Set("review.protected_patterns", cfg.Review.ProtectedPatterns)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if present.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Concurrency: ConcurrencyConfig{MaxEngineers: 3, MaxReviewers: 2},
		Timeouts:    TimeoutsConfig{MaxTurns: 20},
		Git:         GitConfig{BaseBranch: "main"},
		Review:      ReviewConfig{MaxRetries: 5, DefaultVerdict: "APPROVED"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("concurrency.max_engineers", 3)
	v.SetDefault("concurrency.max_reviewers", 2)
	v.SetDefault("timeouts.max_turns", 20)
	v.SetDefault("git.base_branch", "main")
	v.SetDefault("git.use_remote", false)
	v.SetDefault("review.max_retries", 5)
	v.SetDefault("review.default_verdict", "APPROVED")
}

func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "kugutsu")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "kugutsu")
	}
	return filepath.Join(home, ".config", "kugutsu")
}

// findProjectConfig searches for .kugutsu.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".kugutsu.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
