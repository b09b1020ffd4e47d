package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/locomo-ingest/internal/config"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/store"
)

func newLedgerCmd(cfg config.Config) *cobra.Command {
	var sampleID string
	var remove bool

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show or clear ingested sessions recorded in Postgres",
		Long: `Show the sessions recorded in the Postgres ledger (requires DATABASE_URL).

Examples:
  locomo-ingest ledger
  locomo-ingest ledger --sample conv-26
  locomo-ingest ledger --sample conv-26 --delete`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			if remove && sampleID == "" {
				return errors.New("--delete needs --sample")
			}

			ctx := cmd.Context()
			db, err := store.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.EnsureSchema(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if remove {
				n, err := db.DeleteSample(ctx, sampleID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %d sessions for %s\n", n, sampleID)
				return nil
			}

			rows, err := db.ListSessions(ctx, sampleID)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No sessions recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CONVERSATION\tAGENT\tDATE\tTURNS\tINGESTED AT")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ConversationID, r.AgentID, r.SessionDate, r.TurnsIngested, r.IngestedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&sampleID, "sample", "", "Only show this sample")
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete the ledger rows for --sample")

	return cmd
}
