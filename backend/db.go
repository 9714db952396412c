package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mivchk/splus-bot/backend/store"
)

var devDSN = map[string]string{
	"postgres": "user=admin password=password dbname=splusdb sslmode=disable",
	"sqlite":   "file:splus.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
}

// openStore connects to the configured database and applies migrations.
func openStore(ctx context.Context, cfg Config, log zerolog.Logger) (*store.Store, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = devDSN[cfg.DBDriver]
		log.Warn().Str("driver", cfg.DBDriver).Msg("DATABASE_URL not set, using default connection string")
	}

	st, err := store.Open(ctx, cfg.DBDriver, dsn)
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("database connection established")
	return st, nil
}
