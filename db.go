package main

import (
	"context"
	"fmt"

	"github.com/arnnvv/peeple/logging"
	"github.com/arnnvv/peeple/match"
	"github.com/arnnvv/peeple/match/memstore"
	"github.com/arnnvv/peeple/match/pgstore"
	"github.com/arnnvv/peeple/seed"
)

// openStore builds the configured match.Store. The returned func releases it.
func openStore(ctx context.Context, cfg *Config) (match.Store, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		logging.Warn().Msg("using the in-memory store; data is lost on restart")
		store := memstore.New()
		if n := cfg.Store.SeedUsers; n > 0 {
			opts := seed.DefaultOptions()
			opts.Count = n
			st, err := seed.Run(ctx, store, match.NewEngine(store), opts)
			if err != nil {
				return nil, nil, fmt.Errorf("seed memory store: %w", err)
			}
			logging.Info().Int("users", st.Users).Int("likes", st.Likes).Int("passes", st.Passes).
				Int("matches", st.Matches).Msg("memory store seeded")
		}
		return store, func() {}, nil
	case "postgres":
		db, err := pgstore.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, nil, err
		}
		logging.Info().Msg("database connection established")
		if cfg.Database.Migrate {
			if err := pgstore.Migrate(cfg.Database.URL); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
			logging.Info().Msg("database migrations applied")
		}
		return pgstore.New(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
