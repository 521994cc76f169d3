package submission

import (
	"fmt"
	"os"

	"github.com/stellarlinkco/rice-eval/internal/backend"
)

const validComment = "Valid submission"

// Validation reports what the directory check found. Framework is empty
// when no marker file was present.
type Validation struct {
	Framework backend.Framework
	OK        bool
	Comment   string
}

// Validate inspects a results directory for a framework marker file and
// that framework's required companion files. Checks stop at the first
// missing file.
func Validate(resultsDir string) (Validation, error) {
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return Validation{}, fmt.Errorf("submission: read dir %q: %w", resultsDir, err)
	}

	files := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		files[e.Name()] = struct{}{}
	}

	for _, f := range backend.Frameworks() {
		if _, ok := files[f.MarkerFile()]; !ok {
			continue
		}
		for _, name := range f.RequiredFiles() {
			if _, ok := files[name]; !ok {
				return Validation{
					Framework: f,
					OK:        false,
					Comment:   fmt.Sprintf("%s is not present in the results directory!", name),
				}, nil
			}
		}
		return Validation{Framework: f, OK: true, Comment: validComment}, nil
	}

	return Validation{OK: false, Comment: "Missing identifier file!"}, nil
}
