package main

import (
	"os"
	"testing"

	"github.com/kugutsu/pipeline/internal/config"
)

func TestResolveAPIKey(t *testing.T) {
	originalKey := os.Getenv("ANTHROPIC_API_KEY")
	defer os.Setenv("ANTHROPIC_API_KEY", originalKey)

	t.Run("from environment variable", func(t *testing.T) {
		os.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")
		defer os.Unsetenv("ANTHROPIC_API_KEY")

		key, err := resolveAPIKey(&config.Config{})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-test-key" {
			t.Errorf("resolveAPIKey() = %q, want %q", key, "sk-ant-test-key")
		}
	})

	t.Run("from config", func(t *testing.T) {
		os.Unsetenv("ANTHROPIC_API_KEY")

		cfg := &config.Config{Anthropic: config.AnthropicConfig{APIKey: "sk-ant-config-key"}}
		key, err := resolveAPIKey(cfg)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-config-key" {
			t.Errorf("resolveAPIKey() = %q, want %q", key, "sk-ant-config-key")
		}
	})

	t.Run("unexpanded placeholder is rejected", func(t *testing.T) {
		os.Unsetenv("ANTHROPIC_API_KEY")

		cfg := &config.Config{Anthropic: config.AnthropicConfig{APIKey: "${ANTHROPIC_API_KEY}"}}
		if _, err := resolveAPIKey(cfg); err == nil {
			t.Error("resolveAPIKey() with unexpanded placeholder: want error, got nil")
		}
	})

	t.Run("no key configured", func(t *testing.T) {
		os.Unsetenv("ANTHROPIC_API_KEY")

		if _, err := resolveAPIKey(&config.Config{}); err == nil {
			t.Error("resolveAPIKey() with no key: want error, got nil")
		}
	})
}

func TestRun_RejectsWrongArgCount(t *testing.T) {
	if code := run([]string{}); code != 1 {
		t.Errorf("run([]) = %d, want 1 (cobra arg validation error)", code)
	}
	if code := run([]string{"a", "b"}); code != 1 {
		t.Errorf("run(two args) = %d, want 1", code)
	}
}

func TestRun_RejectsOutOfRangeMaxEngineers(t *testing.T) {
	flagMaxEngineers, flagMaxTurns, flagBaseBranch, flagUseRemote, flagCleanup = 0, 0, "", false, false
	code := run([]string{"--max-engineers", "101", "do something"})
	if code != 2 {
		t.Errorf("run(--max-engineers 101 ...) = %d, want 2 (setup error)", code)
	}
}

func TestRun_RejectsOutOfRangeMaxTurns(t *testing.T) {
	flagMaxEngineers, flagMaxTurns, flagBaseBranch, flagUseRemote, flagCleanup = 0, 0, "", false, false
	code := run([]string{"--max-turns", "51", "do something"})
	if code != 2 {
		t.Errorf("run(--max-turns 51 ...) = %d, want 2 (setup error)", code)
	}
}
