package articles

import (
	"context"
	"fmt"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
)

// Config selects the relational backend.
type Config struct {
	Driver string `yaml:"driver"` // postgres or sqlite
	DSN    string `yaml:"dsn"`
}

// Open returns the Store for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "postgres", "pgx":
		return OpenPostgres(ctx, cfg.DSN)
	case "sqlite", "":
		path := cfg.DSN
		if path == "" {
			path = "lexrag.db"
		}
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("articles: driver %q: %w", cfg.Driver, domain.ErrConfiguration)
	}
}
