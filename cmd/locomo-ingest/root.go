package main

import (
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/locomo-ingest/internal/config"
)

func newRootCmd(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "locomo-ingest",
		Short: "Ingest LoCoMo benchmark conversations into a memory service",
		Long: `locomo-ingest reads the LoCoMo multi-session corpus, pairs speaker turns into
user/assistant exchanges and posts each session to {base-url}/memory/ingest
under a deterministic per-sample agent ID.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	logLevel := cfg.LogLevel
	root.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log level (debug, info, warn, error)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setupLogging(logLevel)
	}

	root.AddCommand(newIngestCmd(cfg))
	root.AddCommand(newIDsCmd(cfg))
	root.AddCommand(newStubCmd(cfg))
	root.AddCommand(newLedgerCmd(cfg))
	root.AddCommand(newWatchCmd(cfg))

	return root
}
