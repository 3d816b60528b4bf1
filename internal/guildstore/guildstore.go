// Package guildstore persists per-guild configuration: the transcript
// verbosity flag and the premium tier that caps how many speakers may be
// transcribed concurrently.
package guildstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Settings is one guild's transcription configuration.
type Settings struct {
	// Verbose enables confidence-annotated transcripts.
	Verbose bool

	// PremiumTier determines the concurrent-transcriber cap; see
	// [MaxTranscribers].
	PremiumTier uint8
}

// MaxTranscribers returns the maximum number of concurrently transcribed
// speakers for a premium tier: five for the free tier, five more per paid
// tier, capped by the recency window used to queue waiting speakers.
func MaxTranscribers(tier uint8) int {
	n := 5 + 5*int(tier)
	if n > 25 {
		n = 25
	}
	return n
}

const schema = `
CREATE TABLE IF NOT EXISTS guilds (
    guild_id      TEXT     PRIMARY KEY,
    be_verbose    BOOLEAN  NOT NULL DEFAULT false,
    premium_tier  SMALLINT NOT NULL DEFAULT 0
);
`

// Store is the pgx-backed guild settings store. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store over an existing connection pool and ensures the
// guilds table exists.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("guildstore: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Settings loads the settings row for guildID. Guilds without a row get the
// defaults (not verbose, free tier).
func (s *Store) Settings(ctx context.Context, guildID string) (Settings, error) {
	var out Settings
	err := s.pool.QueryRow(ctx,
		`SELECT be_verbose, premium_tier FROM guilds WHERE guild_id = $1`,
		guildID,
	).Scan(&out.Verbose, &out.PremiumTier)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("guildstore: load %q: %w", guildID, err)
	}
	return out, nil
}

// SetVerbose upserts the verbosity flag for guildID.
func (s *Store) SetVerbose(ctx context.Context, guildID string, verbose bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO guilds (guild_id, be_verbose) VALUES ($1, $2)
		 ON CONFLICT (guild_id) DO UPDATE SET be_verbose = EXCLUDED.be_verbose`,
		guildID, verbose,
	)
	if err != nil {
		return fmt.Errorf("guildstore: set verbose for %q: %w", guildID, err)
	}
	return nil
}

// SetPremiumTier upserts the premium tier for guildID.
func (s *Store) SetPremiumTier(ctx context.Context, guildID string, tier uint8) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO guilds (guild_id, premium_tier) VALUES ($1, $2)
		 ON CONFLICT (guild_id) DO UPDATE SET premium_tier = EXCLUDED.premium_tier`,
		guildID, tier,
	)
	if err != nil {
		return fmt.Errorf("guildstore: set premium tier for %q: %w", guildID, err)
	}
	return nil
}
