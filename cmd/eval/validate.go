package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/rice-eval/internal/submission"
)

type validateOptions struct {
	resultsDir string
}

func newValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a results directory without running the trainer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.resultsDir, "results_dir", "r", ".", "results directory or .zip archive to validate")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *validateOptions) error {
	if opts == nil {
		return fmt.Errorf("validate: nil options")
	}

	resultsDir := strings.TrimSpace(opts.resultsDir)
	if resultsDir == "" {
		return fmt.Errorf("validate: missing --results_dir")
	}

	if strings.HasSuffix(strings.ToLower(resultsDir), ".zip") {
		unpacked, err := submission.Unpack(resultsDir)
		if err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		defer os.RemoveAll(unpacked)
		resultsDir = unpacked
	}

	v, err := submission.Validate(resultsDir)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	out := cmd.OutOrStdout()
	if v.Framework != "" {
		_, _ = fmt.Fprintf(out, "Framework: %s\n", v.Framework)
	}
	_, _ = fmt.Fprintf(out, "Status: %s\n", coloredStatus(v.OK))
	_, _ = fmt.Fprintf(out, "Comment: %s\n", v.Comment)

	if !v.OK {
		return errEvaluationFailed
	}
	return nil
}
