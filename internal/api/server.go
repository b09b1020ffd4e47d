package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/locomo-ingest/internal/memory"
)

// Server is a stand-in for the memory service's ingest endpoint. It accepts and counts
// payloads so an ingestion run can be exercised without a real memory backend.
type Server struct {
	router *chi.Mux
	port   int
	logger *slog.Logger

	mu     sync.Mutex
	agents map[string]*AgentStats
}

// AgentStats is what the stub remembers per agent.
type AgentStats struct {
	AgentID       string   `json:"agent_id"`
	Conversations []string `json:"conversations"`
	TurnsIngested int      `json:"turns_ingested"`
}

type ingestReply struct {
	AgentID        string `json:"agent_id"`
	ConversationID string `json:"conversation_id"`
	TurnsIngested  int    `json:"turns_ingested"`
}

func NewServer(port int, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		logger: logger,
		agents: make(map[string]*AgentStats),
	}

	router.Get("/health", s.health)
	router.Route("/memory", func(r chi.Router) {
		r.Post("/ingest", s.ingest)
		r.Get("/agents/{agentID}", s.agent)
	})

	return s
}

// Handler exposes the router, for mounting under httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("stub memory server starting", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	var req memory.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if err := validateIngest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	stats, ok := s.agents[req.AgentID]
	if !ok {
		stats = &AgentStats{AgentID: req.AgentID}
		s.agents[req.AgentID] = stats
	}
	stats.Conversations = append(stats.Conversations, req.ConversationID)
	stats.TurnsIngested += len(req.Turns)
	s.mu.Unlock()

	s.logger.Info("ingested conversation",
		"agent_id", req.AgentID,
		"conversation_id", req.ConversationID,
		"turns", len(req.Turns),
		"session_date", req.SessionDate,
	)

	writeJSON(w, http.StatusOK, ingestReply{
		AgentID:        req.AgentID,
		ConversationID: req.ConversationID,
		TurnsIngested:  len(req.Turns),
	})
}

func (s *Server) agent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	s.mu.Lock()
	stats, ok := s.agents[agentID]
	var out AgentStats
	if ok {
		out = *stats
		out.Conversations = append([]string(nil), stats.Conversations...)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func validateIngest(req memory.IngestRequest) error {
	if _, err := uuid.Parse(req.AgentID); err != nil {
		return fmt.Errorf("agent_id must be a UUID: %v", err)
	}
	if req.ConversationID == "" {
		return errors.New("conversation_id is required")
	}
	if len(req.Turns) == 0 {
		return errors.New("turns must not be empty")
	}
	for i, t := range req.Turns {
		if t.User == "" {
			return fmt.Errorf("turns[%d].user must not be empty", i)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
