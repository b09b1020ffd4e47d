package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/locomo-ingest/internal/hermes"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/locomo"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/memory"
)

// Config holds the ingest command configuration.
type Config struct {
	DataPath   string
	BaseURL    string
	MaxSamples int           // 0 means all samples
	Delay      time.Duration // pause between consecutive sessions
	DryRun     bool          // build payloads but do not send them
	Resume     bool          // skip conversations listed in the state file
	StatePath  string        // empty disables the state file
}

// Ingester sends one session to the memory service.
type Ingester interface {
	Ingest(ctx context.Context, req memory.IngestRequest) (*memory.IngestResponse, error)
}

// Ledger records ingested sessions somewhere durable.
type Ledger interface {
	RecordSession(ctx context.Context, res SessionResult) error
}

// Publisher emits ingest events.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier posts the final run summary.
type Notifier interface {
	PostMessage(ctx context.Context, text string) error
}

// Sinks are optional side outputs of a run. Nil fields are skipped.
type Sinks struct {
	Ledger   Ledger
	Events   Publisher
	Notifier Notifier
}

// Runner drives one ingestion run: one sample at a time, one session at a time.
type Runner struct {
	cfg    Config
	client Ingester
	sinks  Sinks
	out    io.Writer
	logger *slog.Logger
}

// NewRunner creates an ingestion runner. Progress text goes to out; structured logs to logger.
func NewRunner(cfg Config, client Ingester, sinks Sinks, out io.Writer, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		client: client,
		sinks:  sinks,
		out:    out,
		logger: logger,
	}
}

// Run loads the corpus at DataPath and ingests it. See RunSamples.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	samples, err := locomo.LoadCorpus(r.cfg.DataPath)
	if err != nil {
		return nil, err
	}
	return r.RunSamples(ctx, samples)
}

// RunSamples ingests an already loaded corpus. The first transport error or non-2xx reply
// stops the run; the partial summary is returned alongside the error.
func (r *Runner) RunSamples(ctx context.Context, samples []locomo.Sample) (*Summary, error) {
	var err error
	if r.cfg.MaxSamples > 0 && len(samples) > r.cfg.MaxSamples {
		samples = samples[:r.cfg.MaxSamples]
	}

	var state *State
	if r.cfg.StatePath != "" && !r.cfg.DryRun {
		state, err = LoadState(r.cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
		state.BaseURL = r.cfg.BaseURL
	}

	summary := &Summary{DryRun: r.cfg.DryRun}

	fmt.Fprintf(r.out, "Ingesting %d samples into memory at %s\n\n", len(samples), r.cfg.BaseURL)
	fmt.Fprintln(r.out, "Agent ID mapping:")
	PrintAgentIDs(r.out, samples, "  %s -> %s\n")
	fmt.Fprintln(r.out)

	r.logger.Info("ingest starting",
		"samples", len(samples),
		"base_url", r.cfg.BaseURL,
		"delay", r.cfg.Delay,
		"dry_run", r.cfg.DryRun,
		"resume", r.cfg.Resume,
	)

	sent := 0
	for i, sample := range samples {
		agentID := locomo.AgentID(sample.SampleID)
		fmt.Fprintf(r.out, "[%d/%d] Sample %s (agent: %s)\n", i+1, len(samples), sample.SampleID, agentID)

		total := SampleTotal{SampleID: sample.SampleID, AgentID: agentID}
		keepPartial := func() {
			if total.Sessions > 0 {
				summary.Samples = append(summary.Samples, total)
			}
		}

		for _, sess := range sample.Sessions {
			convID := locomo.ConversationID(sample.SampleID, sess.Number)

			if r.cfg.Resume && state != nil && state.IsIngested(convID) {
				r.logger.Info("skipping ingested session", "conversation_id", convID)
				fmt.Fprintf(r.out, "  %s: already ingested, skipped\n", sess.Key)
				summary.SessionsSkipped++
				continue
			}

			if sent > 0 && r.cfg.Delay > 0 && !r.cfg.DryRun {
				select {
				case <-ctx.Done():
					keepPartial()
					r.interrupted(state)
					return summary, ctx.Err()
				case <-time.After(r.cfg.Delay):
				}
			}
			if err := ctx.Err(); err != nil {
				keepPartial()
				r.interrupted(state)
				return summary, err
			}

			res, err := r.ingestSession(ctx, sample.SampleID, sess)
			if err != nil {
				r.logger.Error("ingest failed", "conversation_id", convID, "error", err)
				keepPartial()
				r.saveState(state)
				return summary, fmt.Errorf("ingest %s: %w", convID, err)
			}
			sent++

			fmt.Fprintf(r.out, "  %s (%s -> %s): %d turns ingested\n",
				sess.Key, displayLabel(sess.DateLabel), res.SessionDate, res.TurnsIngested)

			total.Sessions++
			total.TurnsIngested += res.TurnsIngested
			summary.SessionsSent++
			summary.TurnsIngested += res.TurnsIngested

			if !r.cfg.DryRun {
				r.record(ctx, state, res)
			}
		}

		summary.Samples = append(summary.Samples, total)
		fmt.Fprintf(r.out, "  Total: %d turns\n\n", total.TurnsIngested)
	}

	r.saveState(state)

	fmt.Fprintf(r.out, "Done! Ingested %d turns across %d samples.\n", summary.TurnsIngested, len(samples))
	if r.cfg.DryRun {
		fmt.Fprintln(r.out, "Mode: DRY RUN (nothing sent)")
	}
	if summary.SessionsSkipped > 0 {
		fmt.Fprintf(r.out, "Skipped %d already-ingested sessions.\n", summary.SessionsSkipped)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Agent IDs for evaluation:")
	PrintAgentIDs(r.out, samples, "  %s: %s\n")

	r.logger.Info("ingest complete",
		"samples", len(samples),
		"sessions_sent", summary.SessionsSent,
		"sessions_skipped", summary.SessionsSkipped,
		"turns_ingested", summary.TurnsIngested,
		"dry_run", r.cfg.DryRun,
	)

	r.finish(ctx, summary)
	return summary, nil
}

func (r *Runner) ingestSession(ctx context.Context, sampleID string, sess locomo.Session) (SessionResult, error) {
	agentID := locomo.AgentID(sampleID)
	exchanges := locomo.NormalizeSession(sess.Turns, sess.DateLabel)

	res := SessionResult{
		SampleID:       sampleID,
		AgentID:        agentID,
		ConversationID: locomo.ConversationID(sampleID, sess.Number),
		SessionKey:     sess.Key,
		SessionIndex:   sess.Index,
		DateLabel:      sess.DateLabel,
		SessionDate:    locomo.NormalizeDate(displayLabel(sess.DateLabel)),
		Exchanges:      len(exchanges),
		DryRun:         r.cfg.DryRun,
	}

	if r.cfg.DryRun {
		r.logger.Debug("dry run, not sending", "conversation_id", res.ConversationID, "exchanges", len(exchanges))
		return res, nil
	}

	resp, err := r.client.Ingest(ctx, memory.IngestRequest{
		AgentID:        agentID.String(),
		ConversationID: res.ConversationID,
		Turns:          exchanges,
		SessionDate:    res.SessionDate,
	})
	if err != nil {
		return res, err
	}
	res.TurnsIngested = resp.TurnsIngested

	r.logger.Info("session ingested",
		"conversation_id", res.ConversationID,
		"exchanges", res.Exchanges,
		"turns_ingested", res.TurnsIngested,
	)
	return res, nil
}

// record feeds a successful session to the state file and the optional sinks.
// Sink failures are logged; they never stop the run.
func (r *Runner) record(ctx context.Context, state *State, res SessionResult) {
	if state != nil {
		state.MarkIngested(res.ConversationID, res.TurnsIngested)
		r.saveState(state)
	}
	if r.sinks.Ledger != nil {
		if err := r.sinks.Ledger.RecordSession(ctx, res); err != nil {
			r.logger.Warn("failed to record session in ledger", "conversation_id", res.ConversationID, "error", err)
		}
	}
	if r.sinks.Events != nil {
		if err := r.sinks.Events.Publish(hermes.SubjectSessionIngested, res); err != nil {
			r.logger.Warn("failed to publish session event", "conversation_id", res.ConversationID, "error", err)
		}
	}
}

func (r *Runner) finish(ctx context.Context, summary *Summary) {
	if r.sinks.Events != nil && !summary.DryRun {
		if err := r.sinks.Events.Publish(hermes.SubjectIngestCompleted, summary); err != nil {
			r.logger.Warn("failed to publish completion event", "error", err)
		}
	}

	text := FormatSummary(summary)
	if r.sinks.Notifier == nil {
		r.logger.Info("ingest summary (no Slack configured)", "summary", text)
		return
	}
	if err := r.sinks.Notifier.PostMessage(ctx, text); err != nil {
		r.logger.Warn("failed to post summary to Slack, logging instead", "error", err, "summary", text)
	}
}

func (r *Runner) interrupted(state *State) {
	r.logger.Info("ingest interrupted, saving state")
	r.saveState(state)
}

func (r *Runner) saveState(state *State) {
	if state == nil {
		return
	}
	if err := state.Save(); err != nil {
		r.logger.Warn("failed to save state", "path", state.Path(), "error", err)
	}
}

// PrintAgentIDs writes one line per sample using format, which receives the sample ID and agent ID.
func PrintAgentIDs(w io.Writer, samples []locomo.Sample, format string) {
	for _, s := range samples {
		fmt.Fprintf(w, format, s.SampleID, locomo.AgentID(s.SampleID))
	}
}

// FormatSummary renders a run summary as Slack mrkdwn.
func FormatSummary(s *Summary) string {
	var sb strings.Builder
	sb.WriteString("*LoCoMo Ingest Summary*\n")
	if s.DryRun {
		sb.WriteString("_dry run, nothing sent_\n")
	}
	fmt.Fprintf(&sb, "%d samples, %d sessions, %d turns ingested", len(s.Samples), s.SessionsSent, s.TurnsIngested)
	if s.SessionsSkipped > 0 {
		fmt.Fprintf(&sb, " (%d sessions skipped)", s.SessionsSkipped)
	}
	sb.WriteString("\n")
	for _, t := range s.Samples {
		fmt.Fprintf(&sb, "  - %s [%s]: %d sessions, %d turns\n", t.SampleID, t.AgentID, t.Sessions, t.TurnsIngested)
	}
	return sb.String()
}

func displayLabel(label string) string {
	if label == "" {
		return locomo.UnknownDate
	}
	return label
}
