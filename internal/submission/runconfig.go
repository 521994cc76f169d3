package submission

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stellarlinkco/rice-eval/internal/backend"
	"gopkg.in/yaml.v3"
)

// ErrRunConfigMissing marks a submission without its rice_<framework>.yaml.
var ErrRunConfigMissing = errors.New("submission: run configuration missing")

// LoadRunConfig reads the framework's run configuration from the results
// directory. The mapping is passed through to the trainer untouched; its
// schema belongs to the framework.
func LoadRunConfig(resultsDir string, f backend.Framework) (map[string]any, error) {
	path := filepath.Join(resultsDir, f.ConfigFile())

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunConfigMissing, path)
		}
		return nil, fmt.Errorf("submission: read run config %q: %w", path, err)
	}

	var cfg map[string]any
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("submission: parse run config %q: %w", path, err)
	}
	return cfg, nil
}
