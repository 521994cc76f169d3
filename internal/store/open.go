package store

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/rice-eval/internal/config"
)

// DefaultSQLitePath is where evaluation history lives when the
// configuration does not say otherwise.
const DefaultSQLitePath = "data/rice-eval.db"

// Open builds a Store from configuration.
func Open(cfg *config.Config) (Store, error) {
	storageType := "sqlite"
	path := DefaultSQLitePath
	if cfg != nil {
		if t := strings.TrimSpace(cfg.Storage.Type); t != "" {
			storageType = t
		}
		if p := strings.TrimSpace(cfg.Storage.Path); p != "" {
			path = p
		}
	}

	switch storageType {
	case "sqlite":
		return NewSQLiteStore(path)
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("store: unknown storage type %q", storageType)
	}
}
