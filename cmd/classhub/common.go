package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/classhub/classhub/internal/backend"
	"github.com/classhub/classhub/internal/backend/postgres"
	"github.com/classhub/classhub/internal/backend/rest"
	"github.com/classhub/classhub/internal/normalize"
	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/entity"
)

// defaultConfigPath is where every subcommand looks for configuration
// unless --config overrides it.
const defaultConfigPath = "classhub.yaml"

// openStore builds the canonical store over the configured backend.
// The returned close function releases the database handle when the
// Postgres backend is active.
func openStore(cfg *config.Config, role entity.Role) (*normalize.Store, func() error, error) {
	var client backend.Client
	closeFn := func() error { return nil }

	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		client = postgres.NewClient(db)
		closeFn = db.Close
	case config.BackendREST:
		client = rest.NewClient(cfg.REST.BaseURL,
			rest.WithAPIKey(cfg.REST.APIKey),
			rest.WithRole(role))
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	store, err := normalize.NewStore(cfg.Backend, client)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}

func kindFromFlag(s string) (entity.Kind, error) {
	k := entity.Kind(s)
	for _, known := range entity.Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q (want students, announcements or documents)", s)
}
