// Package unittest runs the competition's submission unit tests as a
// pre-flight gate before any trainer is constructed.
package unittest

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/stellarlinkco/rice-eval/internal/config"
)

const script = "run_unittests.py"

type Runner struct {
	Python string
	Script string
}

func NewRunner(cfg *config.Config) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("unittest: nil config")
	}
	return &Runner{
		Python: cfg.Evaluation.Python,
		Script: filepath.Join(cfg.Evaluation.ScriptsDir, script),
	}, nil
}

// Run executes the unit-test script against a results directory. Any
// non-zero exit is an error carrying the tail of the combined output.
func (r *Runner) Run(ctx context.Context, resultsDir string) error {
	if r == nil {
		return errors.New("unittest: nil runner")
	}
	if ctx == nil {
		return errors.New("unittest: nil context")
	}
	python := strings.TrimSpace(r.Python)
	if python == "" {
		return errors.New("unittest: missing python binary")
	}

	cmd := exec.CommandContext(ctx, python, r.Script, "--results_dir", resultsDir)
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return fmt.Errorf("unittest: timed out: %w", ctx.Err())
	}
	if err != nil {
		return fmt.Errorf("unittest: %s failed: %s", script, tail(out, 4096))
	}
	return nil
}

func tail(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if max <= 0 || len(s) <= max {
		return s
	}
	return "..." + strings.TrimSpace(s[len(s)-max:])
}
