package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/rice-eval/internal/evaluation"
	"github.com/stellarlinkco/rice-eval/internal/store"
	"github.com/stellarlinkco/rice-eval/internal/submission"
)

var errEvaluationFailed = errors.New("rice-eval: evaluation failed")

type evaluateOptions struct {
	resultsDir string
	output     string
	noSave     bool
}

func newEvaluateCmd(st *cliState) *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a submission end to end",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadCLIConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.resultsDir, "results_dir", "r", ".", "results directory or .zip archive to evaluate")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json|github")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "skip saving the result to the store")

	return cmd
}

func runEvaluate(cmd *cobra.Command, st *cliState, opts *evaluateOptions) error {
	if st == nil {
		return fmt.Errorf("evaluate: nil state")
	}
	if opts == nil {
		return fmt.Errorf("evaluate: nil options")
	}
	if st.cfg == nil {
		return fmt.Errorf("evaluate: missing config (internal error)")
	}

	output, err := resolveOutputFormat(opts.output)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	resultsDir := strings.TrimSpace(opts.resultsDir)
	if resultsDir == "" {
		return fmt.Errorf("evaluate: missing --results_dir")
	}

	if strings.HasSuffix(strings.ToLower(resultsDir), ".zip") {
		unpacked, err := submission.Unpack(resultsDir)
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
		defer os.RemoveAll(unpacked)
		resultsDir = unpacked
	}

	ev, err := evaluation.FromConfig(st.cfg)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startedAt := time.Now().UTC()
	result := ev.Evaluate(ctx, resultsDir)

	_, _ = fmt.Fprint(cmd.OutOrStdout(), FormatResult(&result, output))

	if !opts.noSave {
		if err := saveResult(cmd.Context(), st, opts.resultsDir, &result, startedAt); err != nil {
			return err
		}
	}

	if !result.Success {
		return errEvaluationFailed
	}
	return nil
}

func saveResult(ctx context.Context, st *cliState, resultsDir string, result *evaluation.Result, startedAt time.Time) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("evaluate: missing config (internal error)")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return fmt.Errorf("evaluate: open store: %w", err)
	}
	defer stor.Close()

	var writer store.Writer = stor

	rec := &store.Record{
		ID:         store.NewID(),
		CreatedAt:  startedAt,
		ResultsDir: resultsDir,
		Framework:  result.Framework,
		Stage:      result.Stage,
		Success:    result.Success,
		Comment:    result.Comment,
		Metrics:    result.Metrics,
	}
	if err := writer.SaveEvaluation(ctx, rec); err != nil {
		return fmt.Errorf("evaluate: save result: %w", err)
	}
	return nil
}
