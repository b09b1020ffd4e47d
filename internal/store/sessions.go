package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/locomo-ingest/internal/ingest"
)

// SessionRow is one ledger entry.
type SessionRow struct {
	ConversationID string
	SampleID       string
	AgentID        uuid.UUID
	SessionIndex   int
	DateLabel      string
	SessionDate    string
	Exchanges      int
	TurnsIngested  int
	IngestedAt     time.Time
}

// RecordSession upserts an ingested session. Re-ingesting a conversation overwrites its counts.
func (s *Store) RecordSession(ctx context.Context, res ingest.SessionResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO locomo_ingest_sessions (conversation_id, sample_id, agent_id, session_index, date_label, session_date, exchanges, turns_ingested, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (conversation_id)
		DO UPDATE SET
			exchanges = $7,
			turns_ingested = $8,
			ingested_at = now()`,
		res.ConversationID, res.SampleID, res.AgentID, res.SessionIndex, res.DateLabel, res.SessionDate, res.Exchanges, res.TurnsIngested,
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// ListSessions returns the ledger rows for a sample in session order.
// An empty sampleID lists every sample.
func (s *Store) ListSessions(ctx context.Context, sampleID string) ([]SessionRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id, sample_id, agent_id, session_index, date_label, session_date, exchanges, turns_ingested, ingested_at
		FROM locomo_ingest_sessions
		WHERE $1 = '' OR sample_id = $1
		ORDER BY sample_id, session_index`, sampleID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SessionRow, error) {
		var r SessionRow
		err := row.Scan(&r.ConversationID, &r.SampleID, &r.AgentID, &r.SessionIndex, &r.DateLabel, &r.SessionDate, &r.Exchanges, &r.TurnsIngested, &r.IngestedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return out, nil
}

// DeleteSample removes a sample's rows, for re-ingesting it from scratch.
func (s *Store) DeleteSample(ctx context.Context, sampleID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM locomo_ingest_sessions WHERE sample_id = $1`, sampleID)
	if err != nil {
		return 0, fmt.Errorf("delete sample: %w", err)
	}
	return tag.RowsAffected(), nil
}
