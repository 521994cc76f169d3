package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/rice-eval/internal/backend"
	"github.com/stellarlinkco/rice-eval/internal/evaluation"
	"github.com/stellarlinkco/rice-eval/internal/rollout"
)

const defaultListLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertStmt *sql.Stmt
	getStmt    *sql.Stmt
	rankedStmt *sql.Stmt
}

// NewID returns a fresh evaluation record ID.
func NewID() string {
	return "eval_" + uuid.NewString()
}

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := st.prepareStatements(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS evaluations (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			results_dir TEXT NOT NULL,
			framework TEXT NOT NULL,
			stage TEXT NOT NULL,
			success INTEGER NOT NULL,
			comment TEXT NOT NULL,
			metrics_json BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_framework ON evaluations(framework)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertStmt,
			query: `
				INSERT INTO evaluations (
					id, created_at, results_dir, framework, stage, success, comment, metrics_json
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert evaluation: %w",
		},
		{
			dst: &s.getStmt,
			query: `
				SELECT id, created_at, results_dir, framework, stage, success, comment, metrics_json
				FROM evaluations WHERE id = ?
			`,
			errFmt: "store: prepare get evaluation: %w",
		},
		{
			dst: &s.rankedStmt,
			query: `
				SELECT id, created_at, results_dir, framework, stage, success, comment, metrics_json
				FROM evaluations
				WHERE success = 1
				ORDER BY created_at DESC
			`,
			errFmt: "store: prepare ranked evaluations: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	for _, stmt := range []*sql.Stmt{s.insertStmt, s.getStmt, s.rankedStmt} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveEvaluation persists one evaluation outcome.
func (s *SQLiteStore) SaveEvaluation(ctx context.Context, rec *Record) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if rec == nil {
		return errors.New("store: nil record")
	}

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return errors.New("store: empty evaluation id")
	}
	if rec.CreatedAt.IsZero() {
		return errors.New("store: missing created_at")
	}

	metrics := rec.Metrics
	if metrics == nil {
		metrics = &rollout.Report{}
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("store: marshal metrics: %w", err)
	}

	success := 0
	if rec.Success {
		success = 1
	}

	stmt := s.insertStmt
	_, err = stmt.ExecContext(
		ctx,
		id,
		rec.CreatedAt.UTC().UnixMilli(),
		rec.ResultsDir,
		string(rec.Framework),
		string(rec.Stage),
		success,
		rec.Comment,
		metricsJSON,
	)
	if err != nil {
		return fmt.Errorf("store: insert evaluation: %w", err)
	}
	return nil
}

// GetEvaluation fetches an evaluation by ID.
func (s *SQLiteStore) GetEvaluation(ctx context.Context, id string) (*Record, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty evaluation id")
	}

	row := s.getStmt.QueryRowContext(ctx, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("store: evaluation %q: %w", id, err)
		}
		return nil, err
	}
	return rec, nil
}

// ListEvaluations lists evaluations, newest first.
func (s *SQLiteStore) ListEvaluations(ctx context.Context, filter Filter) ([]*Record, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, created_at, results_dir, framework, stage, success, comment, metrics_json
		FROM evaluations
	`
	var conds []string
	var args []any
	if f := strings.TrimSpace(string(filter.Framework)); f != "" {
		conds = append(conds, "framework = ?")
		args = append(args, f)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list evaluations: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list evaluations: %w", err)
	}
	return out, nil
}

// Leaderboard ranks successful evaluations by a metric label, highest
// value first. Metrics live in JSON, so ranking happens after the scan.
func (s *SQLiteStore) Leaderboard(ctx context.Context, metricLabel string, limit int) ([]*Record, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	metricLabel = strings.TrimSpace(metricLabel)
	if metricLabel == "" {
		return nil, errors.New("store: empty metric label")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.rankedStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: leaderboard query: %w", err)
	}
	defer rows.Close()

	type ranked struct {
		rec   *Record
		value float64
	}
	var entries []ranked
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		v, ok := metricValue(rec.Metrics, metricLabel)
		if !ok {
			continue
		}
		entries = append(entries, ranked{rec: rec, value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: leaderboard query: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].value > entries[j].value })
	if len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]*Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.rec)
	}
	return out, nil
}

func metricValue(r *rollout.Report, label string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	for _, e := range r.Entries() {
		if e.Label == label {
			return e.Number(), true
		}
	}
	return 0, false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec         Record
		createdAt   int64
		framework   string
		stage       string
		success     int
		metricsJSON []byte
	)
	if err := row.Scan(&rec.ID, &createdAt, &rec.ResultsDir, &framework, &stage, &success, &rec.Comment, &metricsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan evaluation: %w", err)
	}

	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.Framework = backend.Framework(framework)
	rec.Stage = evaluation.Stage(stage)
	rec.Success = success != 0

	var metrics rollout.Report
	if err := json.Unmarshal(metricsJSON, &metrics); err != nil {
		return nil, fmt.Errorf("store: decode metrics: %w", err)
	}
	rec.Metrics = &metrics
	return &rec, nil
}
