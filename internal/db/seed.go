package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/omchandarana/geogate/internal/config"
	"github.com/omchandarana/geogate/internal/security"
)

// EnsureSeedUser creates the configured bootstrap user if it does not exist.
// A no-op unless both SEED_EMAIL and SEED_PASSWORD are set.
func EnsureSeedUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.SeedEmail == "" || cfg.SeedPassword == "" {
		return nil
	}

	var dummy int64

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.SeedEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.SeedPassword, cfg.BcryptCost)

	if err != nil {
		return err
	}

	_, err = pool.Exec(
		ctx,
		`INSERT INTO users (email, password_hash)
         VALUES ($1, $2)
         ON CONFLICT (email) DO NOTHING`,
		cfg.SeedEmail,
		hash,
	)

	return err
}
