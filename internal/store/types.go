package store

import (
	"context"
	"time"

	"github.com/stellarlinkco/rice-eval/internal/backend"
	"github.com/stellarlinkco/rice-eval/internal/evaluation"
	"github.com/stellarlinkco/rice-eval/internal/rollout"
)

// Writer defines persistence for evaluation outcomes.
type Writer interface {
	SaveEvaluation(ctx context.Context, rec *Record) error
}

// Reader defines read access to stored evaluations.
type Reader interface {
	GetEvaluation(ctx context.Context, id string) (*Record, error)
	ListEvaluations(ctx context.Context, filter Filter) ([]*Record, error)
}

// Ranker defines the leaderboard query over successful evaluations.
type Ranker interface {
	Leaderboard(ctx context.Context, metricLabel string, limit int) ([]*Record, error)
}

// Store defines persistence for evaluation results.
type Store interface {
	Writer
	Reader
	Ranker
	Close() error
}

// Record stores one evaluation outcome.
type Record struct {
	ID         string
	CreatedAt  time.Time
	ResultsDir string
	Framework  backend.Framework
	Stage      evaluation.Stage
	Success    bool
	Comment    string
	Metrics    *rollout.Report
}

// Filter narrows evaluation listings.
type Filter struct {
	Framework backend.Framework
	Since     time.Time
	Limit     int
}
