package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed ingest ledger.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS locomo_ingest_sessions (
	conversation_id TEXT PRIMARY KEY,
	sample_id       TEXT NOT NULL,
	agent_id        UUID NOT NULL,
	session_index   INTEGER NOT NULL,
	date_label      TEXT NOT NULL DEFAULT '',
	session_date    TEXT NOT NULL DEFAULT '',
	exchanges       INTEGER NOT NULL,
	turns_ingested  INTEGER NOT NULL,
	ingested_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS locomo_ingest_sessions_sample_idx ON locomo_ingest_sessions (sample_id, session_index);
`

// EnsureSchema creates the ledger table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
