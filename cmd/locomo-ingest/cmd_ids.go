package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/locomo-ingest/internal/config"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/ingest"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/locomo"
)

func newIDsCmd(cfg config.Config) *cobra.Command {
	data := cfg.DataPath
	samples := cfg.MaxSamples

	cmd := &cobra.Command{
		Use:   "ids",
		Short: "Print the sample ID to agent ID mapping without ingesting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			corpus, err := locomo.LoadCorpus(data)
			if err != nil {
				if errors.Is(err, locomo.ErrCorpusNotFound) {
					fmt.Fprintf(out, "Error: %s not found\n", data)
					return nil
				}
				return err
			}
			if samples > 0 && len(corpus) > samples {
				corpus = corpus[:samples]
			}

			ingest.PrintAgentIDs(out, corpus, "%s: %s\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", data, "Path to locomo10.json")
	cmd.Flags().IntVar(&samples, "samples", samples, "Limit number of samples (0 = all)")

	return cmd
}
