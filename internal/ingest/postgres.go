package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time interface checks.
var (
	_ Store  = (*PostgresStore)(nil)
	_ Record = (*postgresRecord)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS voice_ingest (
    id           UUID         PRIMARY KEY,
    user_hash    TEXT         NOT NULL,
    language     TEXT         NOT NULL,
    transcript   TEXT,
    opened_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    finalized_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_voice_ingest_user ON voice_ingest (user_hash, language);

CREATE TABLE IF NOT EXISTS voice_optin (
    user_hash  TEXT         PRIMARY KEY,
    opted_in   BOOLEAN      NOT NULL,
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// PostgresStore is the pgx-backed archival store. All operations are safe
// for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an existing connection pool and
// ensures the voice_ingest table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ingest: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Open inserts a new ingest row keyed by the hashed user ID and language.
func (s *PostgresStore) Open(ctx context.Context, userID, language string) (Record, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO voice_ingest (id, user_hash, language) VALUES ($1, $2, $3)`,
		id, HashUserID(userID), language,
	)
	if err != nil {
		return nil, fmt.Errorf("ingest: open record: %w", err)
	}
	return &postgresRecord{pool: s.pool, id: id}, nil
}

// SetOptIn records whether the user consented to voice archival. Keyed by
// the hashed user ID like everything else in this store.
func (s *PostgresStore) SetOptIn(ctx context.Context, userID string, optIn bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO voice_optin (user_hash, opted_in) VALUES ($1, $2)
		ON CONFLICT (user_hash) DO UPDATE SET opted_in = $2, updated_at = now()`,
		HashUserID(userID), optIn,
	)
	if err != nil {
		return fmt.Errorf("ingest: set opt-in: %w", err)
	}
	return nil
}

// OptedIn reports whether the user consented to voice archival. Users never
// seen before default to false.
func (s *PostgresStore) OptedIn(ctx context.Context, userID string) (bool, error) {
	var optedIn bool
	err := s.pool.QueryRow(ctx,
		`SELECT opted_in FROM voice_optin WHERE user_hash = $1`,
		HashUserID(userID),
	).Scan(&optedIn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("ingest: query opt-in: %w", err)
	}
	return optedIn, nil
}

type postgresRecord struct {
	pool *pgxpool.Pool
	id   uuid.UUID
}

func (r *postgresRecord) Finalize(ctx context.Context, transcript string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE voice_ingest SET transcript = $2, finalized_at = now() WHERE id = $1`,
		r.id, transcript,
	)
	if err != nil {
		return fmt.Errorf("ingest: finalize record %s: %w", r.id, err)
	}
	return nil
}

func (r *postgresRecord) Discard(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM voice_ingest WHERE id = $1`, r.id)
	if err != nil {
		return fmt.Errorf("ingest: discard record %s: %w", r.id, err)
	}
	return nil
}
