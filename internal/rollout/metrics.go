package rollout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/stellarlinkco/rice-eval/internal/backend"
)

// Metric describes one reported quantity: the raw feature recorded during
// rollout, its display label, the rounding precision (0 decimals yields an
// integer), and how the per-episode array reduces to a scalar.
type Metric struct {
	Feature  string
	Label    string
	Decimals int
	Reduce   func(backend.Array) (float64, error)
}

func sumAll(a backend.Array) (float64, error) {
	// The bridge schema rejects empty state matrices before they reach a
	// reduction, so an empty array here means a hand-built trainer fed us
	// a truncated episode.
	if len(a) == 0 {
		return 0, fmt.Errorf("rollout: empty array")
	}
	return a.Sum(), nil
}

// riseCol0 is the rise over the episode in the first column (the upper
// temperature stratum).
func riseCol0(a backend.Array) (float64, error) {
	first, err := a.First(0)
	if err != nil {
		return 0, err
	}
	last, err := a.Last(0)
	if err != nil {
		return 0, err
	}
	return last - first, nil
}

func lastCol0(a backend.Array) (float64, error) {
	return a.Last(0)
}

// Metrics returns the registered metrics in reporting order.
func Metrics() []Metric {
	return []Metric{
		{Feature: "reward_all_regions", Label: "Total Episode Reward", Decimals: 2, Reduce: sumAll},
		{Feature: "global_temperature", Label: "Global Temperature Rise", Decimals: 2, Reduce: riseCol0},
		{Feature: "global_carbon_mass", Label: "Global Carbon Mass", Decimals: 0, Reduce: lastCol0},
		{Feature: "capital_all_regions", Label: "Total Capital", Decimals: 0, Reduce: sumAll},
		{Feature: "production_all_regions", Label: "Total Production", Decimals: 0, Reduce: sumAll},
		{Feature: "gross_output_all_regions", Label: "Total Gross Output", Decimals: 0, Reduce: sumAll},
		{Feature: "investment_all_regions", Label: "Total Investment", Decimals: 0, Reduce: sumAll},
		{Feature: "abatement_cost_all_regions", Label: "Total Abatement Cost", Decimals: 2, Reduce: sumAll},
	}
}

// Features returns the raw feature names to request from the trainer, in
// registry order.
func Features() []string {
	metrics := Metrics()
	out := make([]string, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, m.Feature)
	}
	return out
}

// Format rounds a value to the metric's precision, rounding halves to the
// nearest even digit. Zero decimal places yields an integer value, anything
// else a rounded float.
func Format(v float64, decimals int) any {
	if decimals <= 0 {
		return int64(math.RoundToEven(v))
	}
	shift := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*shift) / shift
}

// Entry is one formatted metric in a report.
type Entry struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Number returns the entry's value as a float64 for ranking and
// comparison.
func (e Entry) Number() float64 {
	switch v := e.Value.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

// Report holds formatted metrics in registry order. The zero value is an
// empty report.
type Report struct {
	entries []Entry
}

func (r *Report) add(label string, value any) {
	r.entries = append(r.entries, Entry{Label: label, Value: value})
}

func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

func (r *Report) Entries() []Entry {
	if r == nil {
		return nil
	}
	return r.entries
}

func (r *Report) Get(label string) (any, bool) {
	if r == nil {
		return nil, false
	}
	for _, e := range r.entries {
		if e.Label == label {
			return e.Value, true
		}
	}
	return nil, false
}

// MarshalJSON keeps registry order by encoding the report as a list of
// label/value pairs.
func (r *Report) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	if r.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.entries)
}

func (r *Report) UnmarshalJSON(b []byte) error {
	if r == nil {
		return fmt.Errorf("rollout: unmarshal into nil report")
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var entries []Entry
	if err := dec.Decode(&entries); err != nil {
		return fmt.Errorf("rollout: decode report: %w", err)
	}
	for i, e := range entries {
		if n, ok := e.Value.(json.Number); ok {
			if iv, err := n.Int64(); err == nil {
				entries[i].Value = iv
				continue
			}
			if fv, err := n.Float64(); err == nil {
				entries[i].Value = fv
			}
		}
	}
	r.entries = entries
	return nil
}
