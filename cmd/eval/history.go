package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/rice-eval/internal/backend"
	"github.com/stellarlinkco/rice-eval/internal/store"
)

type historyOptions struct {
	framework string
	limit     int
	since     string
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show evaluation history",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadCLIConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.framework, "framework", "", "framework to filter: warpdrive|rllib")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max evaluations to list")
	cmd.Flags().StringVar(&opts.since, "since", "", "only evaluations since date (YYYY-MM-DD or RFC3339)")

	cmd.AddCommand(newHistoryShowCmd(st))
	return cmd
}

func newHistoryShowCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <evaluation-id>",
		Short: "Show details for an evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, st, args[0])
		},
	}
}

func runHistoryList(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}

	since, err := parseSince(opts.since)
	if err != nil {
		return err
	}

	filter := store.Filter{
		Since: since,
		Limit: opts.limit,
	}
	if f := strings.TrimSpace(opts.framework); f != "" {
		fw, err := backend.ParseFramework(f)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		filter.Framework = fw
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var reader store.Reader = stor

	records, err := reader.ListEvaluations(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No evaluations found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tFRAMEWORK\tSTAGE\tRESULT\tCOMMENT")
	for _, r := range records {
		framework := string(r.Framework)
		if framework == "" {
			framework = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			formatTime(r.CreatedAt),
			framework,
			r.Stage,
			statusLabel(r.Success),
			r.Comment,
		)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, st *cliState, id string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("history: missing evaluation id")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var reader store.Reader = stor

	rec, err := reader.GetEvaluation(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("history: evaluation %q not found", id)
		}
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Evaluation: %s\n", rec.ID)
	_, _ = fmt.Fprintf(out, "Created: %s\n", formatTime(rec.CreatedAt))
	_, _ = fmt.Fprintf(out, "Results dir: %s\n", rec.ResultsDir)
	framework := string(rec.Framework)
	if framework == "" {
		framework = "-"
	}
	_, _ = fmt.Fprintf(out, "Framework: %s\n", framework)
	_, _ = fmt.Fprintf(out, "Stage: %s\n", rec.Stage)
	_, _ = fmt.Fprintf(out, "Result: %s\n", statusLabel(rec.Success))
	_, _ = fmt.Fprintf(out, "Comment: %s\n", rec.Comment)

	if rec.Metrics == nil || rec.Metrics.Len() == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, formatMetricsTable(rec.Metrics))
	return nil
}

func parseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("history: invalid --since %q (expected YYYY-MM-DD or RFC3339)", s)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}

func statusLabel(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}
