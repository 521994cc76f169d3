package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ReadError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("Load: expected error")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Fatalf("error: got %q", err)
	}
}

func TestLoad_ParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte(":"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load: expected error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Fatalf("error: got %q", err)
	}
}

func TestLoad_DefaultsAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(`
evaluation:
  rollout_timeout: 2m
storage:
  type: memory
`)), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("RICE_EVAL_PYTHON", "python3")
	t.Setenv("RICE_EVAL_SCRIPTS_DIR", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatalf("Load: nil cfg")
	}
	if got := cfg.Evaluation.Episodes; got != DefaultEpisodes {
		t.Fatalf("Episodes: got %d want %d", got, DefaultEpisodes)
	}
	if got := cfg.Evaluation.Seed; got != DefaultSeed {
		t.Fatalf("Seed: got %d want %d", got, DefaultSeed)
	}
	if got := cfg.Evaluation.Python; got != "python3" {
		t.Fatalf("Python: got %q want %q", got, "python3")
	}
	if got := cfg.Evaluation.ScriptsDir; got != "scripts" {
		t.Fatalf("ScriptsDir: got %q want %q", got, "scripts")
	}
	if got := cfg.Evaluation.RolloutTimeout; got != 2*time.Minute {
		t.Fatalf("RolloutTimeout: got %v want %v", got, 2*time.Minute)
	}
	if got := cfg.Storage.Type; got != "memory" {
		t.Fatalf("Storage.Type: got %q want %q", got, "memory")
	}
	if got := cfg.Server.Addr; got != ":8080" {
		t.Fatalf("Server.Addr: got %q want %q", got, ":8080")
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("RICE_EVAL_PYTHON", "")
	t.Setenv("RICE_EVAL_SCRIPTS_DIR", "custom/scripts")

	cfg := Default()
	if cfg == nil {
		t.Fatalf("Default: nil cfg")
	}
	if got := cfg.Evaluation.Python; got != "python" {
		t.Fatalf("Python: got %q want %q", got, "python")
	}
	if got := cfg.Evaluation.ScriptsDir; got != "custom/scripts" {
		t.Fatalf("ScriptsDir: got %q want %q", got, "custom/scripts")
	}
	if got := cfg.Evaluation.Episodes; got != DefaultEpisodes {
		t.Fatalf("Episodes: got %d want %d", got, DefaultEpisodes)
	}
}
