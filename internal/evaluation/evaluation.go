// Package evaluation sequences the submission pipeline: validate the
// results directory, gate on the submission unit tests, restore the
// trainer, and aggregate rollout metrics. Each stage failure
// short-circuits the rest and is reported as a fixed comment; no stage
// error escapes to the caller.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/stellarlinkco/rice-eval/internal/backend"
	"github.com/stellarlinkco/rice-eval/internal/config"
	"github.com/stellarlinkco/rice-eval/internal/rollout"
	"github.com/stellarlinkco/rice-eval/internal/submission"
	"github.com/stellarlinkco/rice-eval/internal/unittest"
)

// Stage names the pipeline step a result came from.
type Stage string

const (
	StageValidate    Stage = "validate"
	StageUnitTests   Stage = "unit_tests"
	StageRunConfig   Stage = "run_config"
	StageTrainer     Stage = "trainer"
	StageCheckpoints Stage = "checkpoints"
	StageRollout     Stage = "rollout"
	StageDone        Stage = "done"
)

// Result is the terminal outcome of one evaluation. Framework is empty
// when no marker file identified a backend. Metrics is empty unless the
// whole pipeline succeeded.
type Result struct {
	Framework backend.Framework `json:"framework,omitempty"`
	Stage     Stage             `json:"stage"`
	Success   bool              `json:"success"`
	Metrics   *rollout.Report   `json:"metrics"`
	Comment   string            `json:"comment"`
}

// Gate is the pre-flight unit-test runner.
type Gate interface {
	Run(ctx context.Context, resultsDir string) error
}

type Evaluator struct {
	cfg      *config.Config
	registry *backend.Registry
	gate     Gate
}

func New(cfg *config.Config, registry *backend.Registry, gate Gate) (*Evaluator, error) {
	if cfg == nil {
		return nil, errors.New("evaluation: nil config")
	}
	if registry == nil {
		return nil, errors.New("evaluation: nil backend registry")
	}
	if gate == nil {
		return nil, errors.New("evaluation: nil gate")
	}
	return &Evaluator{cfg: cfg, registry: registry, gate: gate}, nil
}

// FromConfig wires the bridge backends and the unit-test runner.
func FromConfig(cfg *config.Config) (*Evaluator, error) {
	registry, err := backend.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	gate, err := unittest.NewRunner(cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg, registry, gate)
}

// Evaluate runs the full pipeline against a results directory. It always
// returns a well-formed result; underlying errors are logged, then
// replaced by the stage's fixed comment.
func (e *Evaluator) Evaluate(ctx context.Context, resultsDir string) Result {
	if e == nil || e.cfg == nil {
		return fail("", StageValidate, "Missing identifier file!")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	v, err := submission.Validate(resultsDir)
	if err != nil {
		log.Printf("evaluation: validate %s: %v", resultsDir, err)
		return fail("", StageValidate, "Could not read the results directory.")
	}
	if !v.OK {
		return fail(v.Framework, StageValidate, v.Comment)
	}
	framework := v.Framework

	if err := e.gate.Run(ctx, resultsDir); err != nil {
		log.Printf("evaluation: unit tests for %s: %v", resultsDir, err)
		return fail(framework, StageUnitTests, "Unit tests were not successful.")
	}

	runConfig, err := submission.LoadRunConfig(resultsDir, framework)
	if err != nil {
		log.Printf("evaluation: run config for %s: %v", resultsDir, err)
		if errors.Is(err, submission.ErrRunConfigMissing) {
			return fail(framework, StageRunConfig,
				fmt.Sprintf("The run configuration is missing in %s.", resultsDir))
		}
		return fail(framework, StageRunConfig, "Could not create trainer with the run_config provided.")
	}

	b, ok := e.registry.Get(framework)
	if !ok {
		log.Printf("evaluation: no backend registered for %q", framework)
		return fail(framework, StageTrainer, "Could not create trainer with the run_config provided.")
	}

	trainer, err := b.CreateTrainer(ctx, runConfig, e.cfg.Evaluation.Seed)
	if err != nil {
		log.Printf("evaluation: create trainer: %v", err)
		return fail(framework, StageTrainer, "Could not create trainer with the run_config provided.")
	}

	if err := trainer.LoadCheckpoints(ctx, resultsDir); err != nil {
		log.Printf("evaluation: load checkpoints: %v", err)
		_ = trainer.Close()
		return fail(framework, StageCheckpoints, "Could not load model checkpoints.")
	}

	rolloutCtx := ctx
	if e.cfg.Evaluation.RolloutTimeout > 0 {
		var cancel context.CancelFunc
		rolloutCtx, cancel = context.WithTimeout(ctx, e.cfg.Evaluation.RolloutTimeout)
		defer cancel()
	}

	report, err := rollout.Compute(rolloutCtx, trainer, e.cfg.Evaluation.Episodes)
	if err != nil {
		log.Printf("evaluation: rollout: %v", err)
		_ = trainer.Close()
		return fail(framework, StageRollout, "Could not obtain an episode rollout!")
	}

	// WarpDrive holds device memory; its trainer gets an explicit
	// graceful shutdown once metrics are in. A close failure at this
	// point does not invalidate the metrics.
	if framework == backend.WarpDrive {
		if err := trainer.Close(); err != nil {
			log.Printf("evaluation: close trainer: %v", err)
		}
	} else {
		_ = trainer.Close()
	}

	return Result{
		Framework: framework,
		Stage:     StageDone,
		Success:   true,
		Metrics:   report,
		Comment:   "Successful submission",
	}
}

func fail(framework backend.Framework, stage Stage, comment string) Result {
	return Result{
		Framework: framework,
		Stage:     stage,
		Success:   false,
		Metrics:   &rollout.Report{},
		Comment:   comment,
	}
}
