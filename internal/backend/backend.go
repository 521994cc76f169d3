package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Framework identifies the training framework used to produce a submission.
type Framework string

const (
	WarpDrive Framework = "warpdrive"
	RLlib     Framework = "rllib"
)

// Frameworks returns the supported frameworks in marker-check order:
// the WarpDrive marker takes precedence when both are present.
func Frameworks() []Framework {
	return []Framework{WarpDrive, RLlib}
}

func ParseFramework(s string) (Framework, error) {
	switch Framework(strings.ToLower(strings.TrimSpace(s))) {
	case WarpDrive:
		return WarpDrive, nil
	case RLlib:
		return RLlib, nil
	default:
		return "", fmt.Errorf("backend: unknown framework %q", s)
	}
}

// MarkerFile returns the sentinel file whose presence in a results
// directory selects this framework.
func (f Framework) MarkerFile() string {
	return "." + string(f)
}

// ConfigFile returns the run-configuration file name for this framework.
func (f Framework) ConfigFile() string {
	return fmt.Sprintf("rice_%s.yaml", f)
}

// RequiredFiles returns the companion files a submission must contain,
// in the order they are checked.
func (f Framework) RequiredFiles() []string {
	switch f {
	case WarpDrive:
		return []string{"rice.py", "rice_helpers.py", "rice_cuda.py", "rice_step.cu", "rice_warpdrive.yaml"}
	case RLlib:
		return []string{"rice.py", "rice_helpers.py", "rice_rllib.yaml"}
	default:
		return nil
	}
}

// Array is one recorded feature across an episode: rows are time steps,
// columns are regions (or strata for the global features).
type Array [][]float64

// EpisodeState maps a feature name to its recorded array for one episode.
type EpisodeState map[string]Array

var errEmptyArray = errors.New("backend: empty array")

// Sum reduces the array over all time steps and regions.
func (a Array) Sum() float64 {
	var total float64
	for _, row := range a {
		for _, v := range row {
			total += v
		}
	}
	return total
}

// First returns the value of column col at the first time step.
func (a Array) First(col int) (float64, error) {
	if len(a) == 0 {
		return 0, errEmptyArray
	}
	if col < 0 || col >= len(a[0]) {
		return 0, fmt.Errorf("backend: column %d out of range (width %d)", col, len(a[0]))
	}
	return a[0][col], nil
}

// Last returns the value of column col at the final time step.
func (a Array) Last(col int) (float64, error) {
	if len(a) == 0 {
		return 0, errEmptyArray
	}
	row := a[len(a)-1]
	if col < 0 || col >= len(row) {
		return 0, fmt.Errorf("backend: column %d out of range (width %d)", col, len(row))
	}
	return row[col], nil
}

// Trainer is a trained policy restored from a submission, exclusively
// owned by the evaluation that created it.
type Trainer interface {
	LoadCheckpoints(ctx context.Context, resultsDir string) error
	FetchEpisodeStates(ctx context.Context, features []string) (EpisodeState, error)
	Close() error
}

// Backend supplies the three operations a training framework must expose
// to the harness.
type Backend interface {
	Framework() Framework
	CreateTrainer(ctx context.Context, runConfig map[string]any, seed int64) (Trainer, error)
}

// Registry stores backends by framework.
type Registry struct {
	backends map[Framework]Backend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[Framework]Backend)}
}

func (r *Registry) Register(b Backend) {
	if r == nil {
		panic("backend: register on nil registry")
	}
	if b == nil {
		panic("backend: register nil backend")
	}
	if r.backends == nil {
		r.backends = make(map[Framework]Backend)
	}
	r.backends[b.Framework()] = b
}

func (r *Registry) Get(f Framework) (Backend, bool) {
	if r == nil || r.backends == nil {
		return nil, false
	}
	b, ok := r.backends[f]
	return b, ok
}
