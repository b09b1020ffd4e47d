package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/locomo-ingest/internal/config"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/hermes"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/ingest"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/locomo"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/memory"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/slack"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/store"
)

type ingestFlags struct {
	data      string
	baseURL   string
	samples   int
	delay     time.Duration
	timeout   time.Duration
	dryRun    bool
	resume    bool
	statePath string
	noState   bool
}

func newIngestCmd(cfg config.Config) *cobra.Command {
	flags := ingestFlags{
		data:      cfg.DataPath,
		baseURL:   cfg.BaseURL,
		samples:   cfg.MaxSamples,
		delay:     cfg.Delay,
		timeout:   cfg.MemoryTimeout,
		statePath: cfg.StatePath,
	}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Post every LoCoMo session to the memory ingest endpoint",
		Long: `Ingest each sample's sessions in ascending session order.

Examples:
  locomo-ingest ingest --data locomo10.json --base-url http://localhost:1337
  locomo-ingest ingest --samples 2 --delay 3s
  locomo-ingest ingest --resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, cfg, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.data, "data", flags.data, "Path to locomo10.json")
	f.StringVar(&flags.baseURL, "base-url", flags.baseURL, "Memory server base URL")
	f.IntVar(&flags.samples, "samples", flags.samples, "Limit number of samples to ingest (0 = all)")
	f.DurationVar(&flags.delay, "delay", flags.delay, "Pause between sessions to let the memory server process asynchronously")
	f.DurationVar(&flags.timeout, "timeout", flags.timeout, "Timeout for each ingest request")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Build payloads without sending them")
	f.BoolVar(&flags.resume, "resume", false, "Skip sessions recorded in the state file")
	f.StringVar(&flags.statePath, "state", flags.statePath, "Path to the resume state file")
	f.BoolVar(&flags.noState, "no-state", false, "Do not read or write the state file")

	return cmd
}

func runIngest(cmd *cobra.Command, cfg config.Config, flags ingestFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	out := cmd.OutOrStdout()

	if flags.samples < 0 {
		return fmt.Errorf("samples must not be negative, got %d", flags.samples)
	}

	statePath := flags.statePath
	if flags.noState {
		statePath = ""
	}
	if flags.resume && statePath == "" {
		return errors.New("--resume needs a state file")
	}

	// The corpus is loaded and validated before any sink is dialed.
	samples, err := locomo.LoadCorpus(flags.data)
	if err != nil {
		if errors.Is(err, locomo.ErrCorpusNotFound) {
			fmt.Fprintf(out, "Error: %s not found\n", flags.data)
			return nil
		}
		return err
	}

	sinks, closeSinks := openSinks(ctx, cfg, flags.dryRun, logger)
	defer closeSinks()

	runner := ingest.NewRunner(ingest.Config{
		DataPath:   flags.data,
		BaseURL:    flags.baseURL,
		MaxSamples: flags.samples,
		Delay:      flags.delay,
		DryRun:     flags.dryRun,
		Resume:     flags.resume,
		StatePath:  statePath,
	}, memory.NewClient(flags.baseURL, flags.timeout), sinks, out, logger)

	_, err = runner.RunSamples(ctx, samples)
	return err
}

// openSinks connects whichever optional outputs are configured. A sink that cannot be reached
// is left out with a warning.
func openSinks(ctx context.Context, cfg config.Config, dryRun bool, logger *slog.Logger) (ingest.Sinks, func()) {
	var sinks ingest.Sinks
	var closers []func()

	if dryRun {
		return sinks, func() {}
	}

	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("ledger unavailable, continuing without it", "error", err)
		} else if err := db.EnsureSchema(ctx); err != nil {
			logger.Warn("ledger schema failed, continuing without it", "error", err)
			db.Close()
		} else {
			sinks.Ledger = db
			closers = append(closers, db.Close)
			logger.Info("ledger connected")
		}
	}

	if cfg.NatsURL != "" {
		nc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			logger.Warn("NATS unavailable, continuing without events", "error", err)
		} else {
			sinks.Events = nc
			closers = append(closers, nc.Close)
			logger.Info("NATS connected", "url", cfg.NatsURL)
		}
	}

	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		sinks.Notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)
		logger.Info("slack poster ready", "channel", cfg.SlackChannel)
	}

	return sinks, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}
