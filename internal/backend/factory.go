package backend

import (
	"errors"
	"path/filepath"

	"github.com/stellarlinkco/rice-eval/internal/config"
)

const (
	warpDriveScript = "train_with_warp_drive.py"
	rllibScript     = "train_with_rllib.py"
)

func NewWarpDriveBackend(python string, scriptsDir string) Backend {
	return newBridgeBackend(WarpDrive, python, filepath.Join(scriptsDir, warpDriveScript))
}

func NewRLlibBackend(python string, scriptsDir string) Backend {
	return newBridgeBackend(RLlib, python, filepath.Join(scriptsDir, rllibScript))
}

func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("backend: nil config")
	}

	r := NewRegistry()
	r.Register(NewWarpDriveBackend(cfg.Evaluation.Python, cfg.Evaluation.ScriptsDir))
	r.Register(NewRLlibBackend(cfg.Evaluation.Python, cfg.Evaluation.ScriptsDir))
	return r, nil
}
