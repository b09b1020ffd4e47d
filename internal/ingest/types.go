package ingest

import "github.com/google/uuid"

// SessionResult describes one session handed to the memory endpoint.
type SessionResult struct {
	SampleID       string    `json:"sample_id"`
	AgentID        uuid.UUID `json:"agent_id"`
	ConversationID string    `json:"conversation_id"`
	SessionKey     string    `json:"session_key"`
	SessionIndex   int       `json:"session_index"`
	DateLabel      string    `json:"date_label"`
	SessionDate    string    `json:"session_date"`
	Exchanges      int       `json:"exchanges"`
	TurnsIngested  int       `json:"turns_ingested"`
	DryRun         bool      `json:"dry_run,omitempty"`
}

// SampleTotal is the per-sample line of a Summary.
type SampleTotal struct {
	SampleID      string    `json:"sample_id"`
	AgentID       uuid.UUID `json:"agent_id"`
	Sessions      int       `json:"sessions"`
	TurnsIngested int       `json:"turns_ingested"`
}

// Summary is what a run returns in place of process-wide counters.
type Summary struct {
	Samples         []SampleTotal `json:"samples"`
	SessionsSent    int           `json:"sessions_sent"`
	SessionsSkipped int           `json:"sessions_skipped"`
	TurnsIngested   int           `json:"turns_ingested"`
	DryRun          bool          `json:"dry_run,omitempty"`
}
