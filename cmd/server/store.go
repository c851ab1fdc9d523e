package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hongminglow/cardsavvy-be/internal/config"
	"github.com/hongminglow/cardsavvy-be/internal/retry"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
	"github.com/hongminglow/cardsavvy-be/internal/storage/postgres"
	"github.com/hongminglow/cardsavvy-be/internal/storage/seed"
	"github.com/hongminglow/cardsavvy-be/internal/storage/sqlite"
)

// openStore picks the backend from DATABASE_URL, applies the schema and
// seeds the curated catalog.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	if cfg.UsesPostgres() {
		backoff := retry.DefaultConfig()
		backoff.MaxRetries = cfg.DBConnectRetries
		store, err = postgres.New(ctx, cfg.DatabaseURL, backoff, log.Named("postgres"))
	} else {
		store, err = sqlite.New(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	inserted, err := seed.Apply(ctx, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	log.Info("database ready",
		zap.Bool("postgres", cfg.UsesPostgres()),
		zap.Int("seeded_cards", inserted),
	)
	return store, nil
}
