package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hongminglow/cardsavvy-be/internal/models"
	"github.com/hongminglow/cardsavvy-be/internal/retry"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

const uniqueViolation = "23505"

// Store provides Postgres-backed persistence for users and the card catalog.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, retrying with backoff until the server
// answers, and runs migrations.
func New(ctx context.Context, databaseURL string, backoff retry.Config, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	err = retry.Do(ctx, backoff, func() error { return pool.Ping(ctx) }, func(attempt int, err error) {
		if log != nil {
			log.Warn("database not ready, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS card_catalog (
			id TEXT PRIMARY KEY,
			card_name TEXT NOT NULL,
			issuer TEXT NOT NULL,
			network TEXT,
			reward_rules_json TEXT NOT NULL,
			source TEXT NOT NULL,
			verification_status TEXT NOT NULL,
			evidence_json TEXT,
			created_by_user_id TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS card_catalog_name_issuer_unique_idx ON card_catalog (lower(card_name), lower(issuer));`,
		`CREATE INDEX IF NOT EXISTS card_catalog_status_idx ON card_catalog (verification_status, updated_at DESC);`,
		`CREATE TABLE IF NOT EXISTS user_cards (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			card_catalog_id TEXT NOT NULL,
			nickname TEXT,
			last_four TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (user_id, card_catalog_id)
		);`,
		`CREATE TABLE IF NOT EXISTS lookup_audit (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			query_card_name TEXT NOT NULL,
			query_issuer TEXT,
			status TEXT NOT NULL,
			payload_json TEXT,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS lookup_audit_user_idx ON lookup_audit (user_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, created_at;
	`
	row := s.pool.QueryRow(ctx, query, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return created, nil
}

// FindByEmail fetches a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
	SELECT id, email, password_hash, created_at
	FROM users
	WHERE email = lower($1);
	`
	return scanUser(s.pool.QueryRow(ctx, query, email))
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
