package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/locomo-ingest/internal/api"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/config"
)

func newStubCmd(cfg config.Config) *cobra.Command {
	port := cfg.StubPort

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve a stand-in /memory/ingest endpoint for local runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return api.NewServer(port, slog.Default()).Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", port, "Port to listen on")

	return cmd
}
