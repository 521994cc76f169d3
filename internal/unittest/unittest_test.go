package unittest

import (
	"context"
	"strings"
	"testing"

	"github.com/stellarlinkco/rice-eval/internal/config"
)

func TestNewRunner(t *testing.T) {
	if _, err := NewRunner(nil); err == nil {
		t.Fatalf("NewRunner: expected error for nil config")
	}

	cfg := config.Default()
	r, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if !strings.HasSuffix(r.Script, "run_unittests.py") {
		t.Fatalf("Script: got %q", r.Script)
	}
}

func TestRun_ZeroExit(t *testing.T) {
	// "true" ignores its arguments and exits 0, standing in for a passing
	// test script.
	r := &Runner{Python: "true", Script: "run_unittests.py"}
	if err := r.Run(context.Background(), t.TempDir()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r := &Runner{Python: "false", Script: "run_unittests.py"}
	err := r.Run(context.Background(), t.TempDir())
	if err == nil {
		t.Fatalf("Run: expected error")
	}
	if !strings.Contains(err.Error(), "unittest: run_unittests.py failed") {
		t.Fatalf("error: got %q", err)
	}
}

func TestRun_MissingPython(t *testing.T) {
	r := &Runner{Python: "  ", Script: "run_unittests.py"}
	if err := r.Run(context.Background(), t.TempDir()); err == nil {
		t.Fatalf("Run: expected error")
	}
}
