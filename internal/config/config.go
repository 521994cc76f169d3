package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

// Evaluation defaults mirror the competition rules: a fixed seed and a
// fixed number of rollout episodes per submission.
const (
	DefaultEpisodes = 5
	DefaultSeed     = 123456
)

type Config struct {
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
}

type EvaluationConfig struct {
	Episodes       int           `yaml:"episodes,omitempty"`
	Seed           int64         `yaml:"seed,omitempty"`
	Python         string        `yaml:"python,omitempty"`
	ScriptsDir     string        `yaml:"scripts_dir,omitempty"`
	RolloutTimeout time.Duration `yaml:"rollout_timeout,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no config file exists. The
// evaluate command must keep working on a bare checkout.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Evaluation.Episodes <= 0 {
		cfg.Evaluation.Episodes = DefaultEpisodes
	}
	if cfg.Evaluation.Seed == 0 {
		cfg.Evaluation.Seed = DefaultSeed
	}
	if strings.TrimSpace(cfg.Evaluation.Python) == "" {
		cfg.Evaluation.Python = "python"
	}
	if strings.TrimSpace(cfg.Evaluation.ScriptsDir) == "" {
		cfg.Evaluation.ScriptsDir = "scripts"
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("RICE_EVAL_PYTHON")); v != "" {
		cfg.Evaluation.Python = v
	}
	if v := strings.TrimSpace(os.Getenv("RICE_EVAL_SCRIPTS_DIR")); v != "" {
		cfg.Evaluation.ScriptsDir = v
	}
}
