package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/cibrule/internal/core/config"
	"github.com/solatis/cibrule/internal/core/db"
)

// openDatabase opens the journal database and loads named queries.
// When requireSchema is set, pending migrations are an error.
func openDatabase(ctx context.Context, cfg *config.Config, requireSchema bool) (*sqlx.DB, *db.Queries, error) {
	if cfg.Journal.DBURL == "" {
		return nil, nil, fmt.Errorf("--db-url required")
	}
	database, err := db.Open(ctx, cfg.Journal.DBURL)
	if err != nil {
		return nil, nil, err
	}

	if requireSchema {
		statuses, err := db.MigrateStatus(ctx, database)
		if err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
		}
		for _, s := range statuses {
			if !s.Applied {
				database.Close()
				return nil, nil, fmt.Errorf("migration %s not applied - run 'cibrule migrate up' first", s.ID)
			}
		}
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}
