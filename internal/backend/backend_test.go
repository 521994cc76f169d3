package backend

import (
	"context"
	"strings"
	"testing"
)

func TestParseFramework(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Framework
	}{
		{"warpdrive", WarpDrive},
		{" WarpDrive ", WarpDrive},
		{"rllib", RLlib},
		{"RLlib", RLlib},
	} {
		got, err := ParseFramework(tc.in)
		if err != nil {
			t.Fatalf("ParseFramework(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseFramework(%q): got %q want %q", tc.in, got, tc.want)
		}
	}

	if _, err := ParseFramework("tensorflow"); err == nil {
		t.Fatalf("ParseFramework: expected error for unknown framework")
	}
}

func TestFrameworkFiles(t *testing.T) {
	if got := WarpDrive.MarkerFile(); got != ".warpdrive" {
		t.Fatalf("MarkerFile: got %q want %q", got, ".warpdrive")
	}
	if got := RLlib.ConfigFile(); got != "rice_rllib.yaml" {
		t.Fatalf("ConfigFile: got %q want %q", got, "rice_rllib.yaml")
	}
	if got := len(WarpDrive.RequiredFiles()); got != 5 {
		t.Fatalf("WarpDrive RequiredFiles: got %d want %d", got, 5)
	}
	if got := len(RLlib.RequiredFiles()); got != 3 {
		t.Fatalf("RLlib RequiredFiles: got %d want %d", got, 3)
	}
	if got := WarpDrive.RequiredFiles()[0]; got != "rice.py" {
		t.Fatalf("RequiredFiles[0]: got %q want %q", got, "rice.py")
	}
}

func TestArrayReductions(t *testing.T) {
	a := Array{
		{1, 2},
		{3, 4},
		{5, 6},
	}

	if got := a.Sum(); got != 21 {
		t.Fatalf("Sum: got %v want %v", got, 21.0)
	}

	first, err := a.First(0)
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if first != 1 {
		t.Fatalf("First(0): got %v want %v", first, 1.0)
	}

	last, err := a.Last(0)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if last != 5 {
		t.Fatalf("Last(0): got %v want %v", last, 5.0)
	}

	if _, err := a.First(7); err == nil {
		t.Fatalf("First: expected out-of-range error")
	}
	if _, err := Array(nil).Last(0); err == nil {
		t.Fatalf("Last: expected empty-array error")
	}
}

type fakeBackend struct{ framework Framework }

func (f *fakeBackend) Framework() Framework { return f.framework }
func (f *fakeBackend) CreateTrainer(ctx context.Context, runConfig map[string]any, seed int64) (Trainer, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeBackend{framework: RLlib})

	if _, ok := r.Get(WarpDrive); ok {
		t.Fatalf("Get: unexpected warpdrive backend")
	}
	b, ok := r.Get(RLlib)
	if !ok {
		t.Fatalf("Get: missing rllib backend")
	}
	if got := b.Framework(); got != RLlib {
		t.Fatalf("Framework: got %q want %q", got, RLlib)
	}
}

func TestValidateStatesPayload(t *testing.T) {
	valid := []byte(`{"ok":true,"states":{"global_temperature":[[1.0,2.0],[3.0,4.0]]}}`)
	if err := validateStatesPayload(valid); err != nil {
		t.Fatalf("validateStatesPayload: %v", err)
	}

	for name, payload := range map[string]string{
		"missing states":  `{"ok":true}`,
		"empty feature":   `{"ok":true,"states":{"x":[]}}`,
		"non-numeric row": `{"ok":true,"states":{"x":[["a"]]}}`,
		"flat array":      `{"ok":true,"states":{"x":[1,2,3]}}`,
	} {
		err := validateStatesPayload([]byte(payload))
		if err == nil {
			t.Fatalf("validateStatesPayload(%s): expected error", name)
		}
		if !strings.Contains(err.Error(), "states payload") {
			t.Fatalf("validateStatesPayload(%s): got %q", name, err)
		}
	}
}
