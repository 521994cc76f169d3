package rollout

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellarlinkco/rice-eval/internal/backend"
)

// Compute rolls out the given number of episodes and aggregates the
// registered metrics: each feature is reduced to a scalar per episode,
// averaged across episodes, then rounded to the metric's precision.
// Any failure aborts the whole computation; partial reports are never
// returned.
func Compute(ctx context.Context, trainer backend.Trainer, episodes int) (*Report, error) {
	if ctx == nil {
		return nil, errors.New("rollout: nil context")
	}
	if trainer == nil {
		return nil, errors.New("rollout: nil trainer")
	}
	if episodes <= 0 {
		return nil, fmt.Errorf("rollout: episodes must be > 0 (got %d)", episodes)
	}

	features := Features()
	states := make([]backend.EpisodeState, episodes)
	for i := 0; i < episodes; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("rollout: episode %d: %w", i, err)
		}
		st, err := trainer.FetchEpisodeStates(ctx, features)
		if err != nil {
			return nil, fmt.Errorf("rollout: episode %d: %w", i, err)
		}
		states[i] = st
	}

	report := &Report{}
	for _, m := range Metrics() {
		var sum float64
		for i := 0; i < episodes; i++ {
			arr, ok := states[i][m.Feature]
			if !ok {
				return nil, fmt.Errorf("rollout: episode %d: feature %q missing", i, m.Feature)
			}
			v, err := m.Reduce(arr)
			if err != nil {
				return nil, fmt.Errorf("rollout: feature %q: %w", m.Feature, err)
			}
			sum += v
		}
		mean := sum / float64(episodes)
		report.add(m.Label, Format(mean, m.Decimals))
	}
	return report, nil
}
