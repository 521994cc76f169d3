package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/rice-eval/internal/rollout"
	"github.com/stellarlinkco/rice-eval/internal/store"
)

type leaderboardOptions struct {
	metric string
	limit  int
}

func newLeaderboardCmd(st *cliState) *cobra.Command {
	var opts leaderboardOptions

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank successful evaluations by a metric",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadCLIConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.metric, "metric", "Total Episode Reward", "metric label to rank by")
	cmd.Flags().IntVar(&opts.limit, "limit", 10, "max entries to list")

	return cmd
}

func runLeaderboard(cmd *cobra.Command, st *cliState, opts *leaderboardOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("leaderboard: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("leaderboard: nil options")
	}

	metric := strings.TrimSpace(opts.metric)
	if metric == "" {
		return fmt.Errorf("leaderboard: missing --metric")
	}
	if !knownMetricLabel(metric) {
		return fmt.Errorf("leaderboard: unknown metric %q", metric)
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var ranker store.Ranker = stor

	records, err := ranker.Leaderboard(cmd.Context(), metric, opts.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No successful evaluations found.")
		return nil
	}

	_, _ = fmt.Fprintf(out, "Metric: %s\n", metric)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tCREATED\tFRAMEWORK\tVALUE")
	for i, r := range records {
		value := "-"
		if r.Metrics != nil {
			if v, ok := r.Metrics.Get(metric); ok {
				value = fmt.Sprintf("%v", v)
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			i+1, r.ID, formatTime(r.CreatedAt), r.Framework, value)
	}
	return tw.Flush()
}

func knownMetricLabel(label string) bool {
	for _, m := range rollout.Metrics() {
		if m.Label == label {
			return true
		}
	}
	return false
}
