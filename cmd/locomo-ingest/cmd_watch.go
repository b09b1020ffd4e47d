package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/locomo-ingest/internal/config"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/hermes"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/ingest"
)

func newWatchCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow ingest events published on NATS",
		Long: `Print one line per session ingested and per completed run, as published by
ingest runs that have NATS_URL set. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.NatsURL == "" {
				return errors.New("NATS_URL is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			nc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
			if err != nil {
				return err
			}
			defer nc.Close()

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			handler := func(subject string, data []byte) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintln(out, formatEvent(subject, data))
			}

			for _, subject := range []string{hermes.SubjectSessionIngested, hermes.SubjectIngestCompleted} {
				if err := nc.Subscribe(subject, handler); err != nil {
					return err
				}
			}

			<-ctx.Done()
			return nil
		},
	}
}

// formatEvent renders an ingest event. Unknown subjects or payloads are printed raw.
func formatEvent(subject string, data []byte) string {
	switch subject {
	case hermes.SubjectSessionIngested:
		var res ingest.SessionResult
		if err := json.Unmarshal(data, &res); err == nil {
			return fmt.Sprintf("%s (agent %s, %s): %d turns ingested",
				res.ConversationID, res.AgentID, res.SessionDate, res.TurnsIngested)
		}
	case hermes.SubjectIngestCompleted:
		var s ingest.Summary
		if err := json.Unmarshal(data, &s); err == nil {
			return fmt.Sprintf("run complete: %d samples, %d sessions, %d turns ingested",
				len(s.Samples), s.SessionsSent, s.TurnsIngested)
		}
	}
	return fmt.Sprintf("%s: %s", subject, data)
}
