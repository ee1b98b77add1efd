package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Concurrency.MaxEngineers != 3 {
		t.Errorf("expected default max_engineers 3, got %d", cfg.Concurrency.MaxEngineers)
	}
	if cfg.Concurrency.MaxReviewers != 2 {
		t.Errorf("expected default max_reviewers 2, got %d", cfg.Concurrency.MaxReviewers)
	}
	if cfg.Timeouts.MaxTurns != 20 {
		t.Errorf("expected default max_turns 20, got %d", cfg.Timeouts.MaxTurns)
	}
	if cfg.Git.BaseBranch != "main" {
		t.Errorf("expected default base branch 'main', got %q", cfg.Git.BaseBranch)
	}
	if cfg.Review.MaxRetries != 5 {
		t.Errorf("expected default review max_retries 5, got %d", cfg.Review.MaxRetries)
	}
	if cfg.Review.DefaultVerdict != "APPROVED" {
		t.Errorf("expected default verdict APPROVED, got %q", cfg.Review.DefaultVerdict)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  model: claude-sonnet-4-5
concurrency:
  max_engineers: 8
  max_reviewers: 4
timeouts:
  max_turns: 30
git:
  base_branch: develop
  use_remote: true
review:
  max_retries: 3
  default_verdict: COMMENTED
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Concurrency.MaxEngineers != 8 {
		t.Errorf("expected max_engineers 8, got %d", cfg.Concurrency.MaxEngineers)
	}
	if cfg.Timeouts.MaxTurns != 30 {
		t.Errorf("expected max_turns 30, got %d", cfg.Timeouts.MaxTurns)
	}
	if cfg.Git.BaseBranch != "develop" {
		t.Errorf("expected base branch 'develop', got %q", cfg.Git.BaseBranch)
	}
	if !cfg.Git.UseRemote {
		t.Error("expected use_remote to be true")
	}
	if cfg.Review.MaxRetries != 3 {
		t.Errorf("expected review max_retries 3, got %d", cfg.Review.MaxRetries)
	}
}

func TestExpandEnv(t *testing.T) {
	os.Setenv("TEST_VAR", "expanded-value")
	defer os.Unsetenv("TEST_VAR")

	if got := expandEnv("${TEST_VAR}"); got != "expanded-value" {
		t.Errorf("expandEnv(${TEST_VAR}) = %q, want expanded-value", got)
	}
	if got := expandEnv("prefix-${TEST_VAR}-suffix"); got != "prefix-expanded-value-suffix" {
		t.Errorf("expandEnv(...) = %q, want prefix-expanded-value-suffix", got)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	want := "/custom/config/kugutsu"
	if dir != want {
		t.Errorf("getUserConfigDir() = %q, want %q", dir, want)
	}
}

func TestFindProjectConfig_NoneFound(t *testing.T) {
	tmpDir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	if got := findProjectConfig(); got != "" {
		t.Errorf("findProjectConfig() = %q, want empty in a directory with no .kugutsu.yaml", got)
	}
}
