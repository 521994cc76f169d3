package api

import (
	"context"

	"github.com/stellarlinkco/rice-eval/internal/evaluation"
	"github.com/stellarlinkco/rice-eval/internal/store"
)

type fakeStore struct {
	SaveEvaluationFunc  func(ctx context.Context, rec *store.Record) error
	GetEvaluationFunc   func(ctx context.Context, id string) (*store.Record, error)
	ListEvaluationsFunc func(ctx context.Context, filter store.Filter) ([]*store.Record, error)
	LeaderboardFunc     func(ctx context.Context, metricLabel string, limit int) ([]*store.Record, error)
	CloseFunc           func() error
}

func (s *fakeStore) SaveEvaluation(ctx context.Context, rec *store.Record) error {
	if s.SaveEvaluationFunc != nil {
		return s.SaveEvaluationFunc(ctx, rec)
	}
	return nil
}

func (s *fakeStore) GetEvaluation(ctx context.Context, id string) (*store.Record, error) {
	if s.GetEvaluationFunc != nil {
		return s.GetEvaluationFunc(ctx, id)
	}
	return nil, nil
}

func (s *fakeStore) ListEvaluations(ctx context.Context, filter store.Filter) ([]*store.Record, error) {
	if s.ListEvaluationsFunc != nil {
		return s.ListEvaluationsFunc(ctx, filter)
	}
	return nil, nil
}

func (s *fakeStore) Leaderboard(ctx context.Context, metricLabel string, limit int) ([]*store.Record, error) {
	if s.LeaderboardFunc != nil {
		return s.LeaderboardFunc(ctx, metricLabel, limit)
	}
	return nil, nil
}

func (s *fakeStore) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}

type fakeRunner struct {
	EvaluateFunc func(ctx context.Context, resultsDir string) evaluation.Result
}

func (r *fakeRunner) Evaluate(ctx context.Context, resultsDir string) evaluation.Result {
	if r.EvaluateFunc != nil {
		return r.EvaluateFunc(ctx, resultsDir)
	}
	return evaluation.Result{Stage: evaluation.StageDone, Success: true, Comment: "Successful submission"}
}
