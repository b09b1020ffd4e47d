package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultStatePath is where resumable progress is kept unless overridden.
const DefaultStatePath = "~/.locomo-ingest/state.json"

// State tracks which conversations have been ingested, for resumable runs.
type State struct {
	StartedAt       time.Time `json:"started_at"`
	LastProcessedAt time.Time `json:"last_processed_at"`
	BaseURL         string    `json:"base_url"`
	Conversations   []string  `json:"conversations"`
	TurnsIngested   int       `json:"turns_ingested"`

	path string
	seen map[string]bool
}

// LoadState loads the state file at path, or starts a new one if it does not exist.
func LoadState(path string) (*State, error) {
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{
				StartedAt: time.Now().UTC(),
				path:      p,
				seen:      make(map[string]bool),
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	s.seen = make(map[string]bool, len(s.Conversations))
	for _, c := range s.Conversations {
		s.seen[c] = true
	}
	return &s, nil
}

// Path is the resolved location of the state file.
func (s *State) Path() string {
	return s.path
}

// Save persists the state to disk.
func (s *State) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// IsIngested reports whether a conversation was already sent in an earlier run.
func (s *State) IsIngested(conversationID string) bool {
	return s.seen[conversationID]
}

// MarkIngested records a conversation as sent.
func (s *State) MarkIngested(conversationID string, turns int) {
	if s.seen[conversationID] {
		return
	}
	s.seen[conversationID] = true
	s.Conversations = append(s.Conversations, conversationID)
	s.TurnsIngested += turns
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
