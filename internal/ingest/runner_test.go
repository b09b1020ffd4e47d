package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MikeSquared-Agency/locomo-ingest/internal/api"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/hermes"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/locomo"
	"github.com/MikeSquared-Agency/locomo-ingest/internal/memory"
)

const testCorpus = `[
  {
    "sample_id": "conv-26",
    "conversation": {
      "speaker_a": "Caroline",
      "speaker_b": "Melanie",
      "session_2_date_time": "1:14 pm on 25 May, 2023",
      "session_2": [{"speaker": "Melanie", "text": "Hey Caroline!"}],
      "session_10_date_time": "8:56 pm on 20 July, 2023",
      "session_10": [],
      "session_1_date_time": "1:56 pm on 8 May, 2023",
      "session_1": [
        {"speaker": "Caroline", "text": "Hey Mel!"},
        {"speaker": "Melanie", "text": "Hi!"}
      ]
    }
  },
  {
    "sample_id": "conv-30",
    "conversation": {
      "session_1": [{"speaker": "Jon", "text": "Hello"}]
    }
  }
]`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locomo10.json")
	if err := os.WriteFile(path, []byte(testCorpus), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return path
}

// recordingIngester captures requests and replies with the number of exchanges.
type recordingIngester struct {
	requests []memory.IngestRequest
	failAt   int // 1-based call that fails; 0 never fails
	onCall   func(n int)
}

func (f *recordingIngester) Ingest(_ context.Context, req memory.IngestRequest) (*memory.IngestResponse, error) {
	f.requests = append(f.requests, req)
	n := len(f.requests)
	if f.onCall != nil {
		f.onCall(n)
	}
	if f.failAt == n {
		return nil, &memory.StatusError{StatusCode: http.StatusInternalServerError, Body: "boom"}
	}
	return &memory.IngestResponse{TurnsIngested: len(req.Turns)}, nil
}

type fakeLedger struct {
	recorded []string
	err      error
}

func (l *fakeLedger) RecordSession(_ context.Context, res SessionResult) error {
	l.recorded = append(l.recorded, res.ConversationID)
	return l.err
}

type fakePublisher struct {
	subjects []string
}

func (p *fakePublisher) Publish(subject string, _ any) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

type fakeNotifier struct {
	texts []string
}

func (n *fakeNotifier) PostMessage(_ context.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

func TestRun_AgainstStubServer(t *testing.T) {
	stub := api.NewServer(0, discardLogger())
	server := httptest.NewServer(stub.Handler())
	defer server.Close()

	var out bytes.Buffer
	cfg := Config{DataPath: writeCorpus(t), BaseURL: server.URL}
	r := NewRunner(cfg, memory.NewClient(server.URL, time.Second), Sinks{}, &out, discardLogger())

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.SessionsSent != 4 {
		t.Errorf("expected 4 sessions, got %d", summary.SessionsSent)
	}
	// conv-26: 2 + 2 + 1 exchanges, conv-30: 2 exchanges.
	if summary.TurnsIngested != 7 {
		t.Errorf("expected 7 turns, got %d", summary.TurnsIngested)
	}
	wantTotals := []SampleTotal{
		{SampleID: "conv-26", AgentID: locomo.AgentID("conv-26"), Sessions: 3, TurnsIngested: 5},
		{SampleID: "conv-30", AgentID: locomo.AgentID("conv-30"), Sessions: 1, TurnsIngested: 2},
	}
	if diff := cmp.Diff(wantTotals, summary.Samples); diff != "" {
		t.Errorf("sample totals mismatch (-want +got):\n%s", diff)
	}

	resp, err := http.Get(server.URL + "/memory/agents/" + locomo.AgentID("conv-26").String())
	if err != nil {
		t.Fatalf("get agent stats: %v", err)
	}
	defer resp.Body.Close()
	var stats api.AgentStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode agent stats: %v", err)
	}
	wantConvs := []string{"conv-26_session_1", "conv-26_session_2", "conv-26_session_10"}
	if diff := cmp.Diff(wantConvs, stats.Conversations); diff != "" {
		t.Errorf("conversation order mismatch (-want +got):\n%s", diff)
	}

	text := out.String()
	checks := []string{
		"Ingesting 2 samples into memory at " + server.URL,
		"conv-26 -> 40eff335-642f-549c-b423-cc21fa973675",
		"[1/2] Sample conv-26 (agent: 40eff335-642f-549c-b423-cc21fa973675)",
		"session_1 (1:56 pm on 8 May, 2023 -> 2023-05-08): 2 turns ingested",
		"session_1 (unknown date -> unknown date): 2 turns ingested",
		"Total: 5 turns",
		"Done! Ingested 7 turns across 2 samples.",
		"conv-30: 37bf327f-0125-54a7-b972-3f960a14e232",
	}
	for _, check := range checks {
		if !strings.Contains(text, check) {
			t.Errorf("expected output to contain %q\n%s", check, text)
		}
	}
}

func TestRun_PayloadShape(t *testing.T) {
	ing := &recordingIngester{}
	cfg := Config{DataPath: writeCorpus(t), BaseURL: "http://memory", MaxSamples: 1}
	r := NewRunner(cfg, ing, Sinks{}, io.Discard, discardLogger())

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ing.requests) != 3 {
		t.Fatalf("expected 3 requests for one sample, got %d", len(ing.requests))
	}

	first := ing.requests[0]
	if first.AgentID != "40eff335-642f-549c-b423-cc21fa973675" {
		t.Errorf("unexpected agent id %q", first.AgentID)
	}
	if first.ConversationID != "conv-26_session_1" {
		t.Errorf("unexpected conversation id %q", first.ConversationID)
	}
	if first.SessionDate != "2023-05-08" {
		t.Errorf("unexpected session date %q", first.SessionDate)
	}
	want := []locomo.Exchange{
		{User: "[Conversation date: 1:56 pm on 8 May, 2023]", Assistant: "(acknowledged)"},
		{User: "Caroline: Hey Mel!", Assistant: "Melanie: Hi!"},
	}
	if diff := cmp.Diff(want, first.Turns); diff != "" {
		t.Errorf("turns mismatch (-want +got):\n%s", diff)
	}

	if got := ing.requests[2].ConversationID; got != "conv-26_session_10" {
		t.Errorf("expected session_10 last, got %q", got)
	}
}

func TestRun_DryRunSendsNothing(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	ledger := &fakeLedger{}
	var out bytes.Buffer
	cfg := Config{DataPath: writeCorpus(t), BaseURL: server.URL, DryRun: true, StatePath: filepath.Join(t.TempDir(), "state.json")}
	r := NewRunner(cfg, memory.NewClient(server.URL, time.Second), Sinks{Ledger: ledger}, &out, discardLogger())

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no requests, got %d", calls.Load())
	}
	if summary.SessionsSent != 4 || summary.TurnsIngested != 0 {
		t.Errorf("unexpected dry-run summary %+v", summary)
	}
	if len(ledger.recorded) != 0 {
		t.Errorf("expected nothing recorded, got %v", ledger.recorded)
	}
	if _, err := os.Stat(cfg.StatePath); !os.IsNotExist(err) {
		t.Errorf("expected no state file in dry run, got %v", err)
	}
	if !strings.Contains(out.String(), "DRY RUN") {
		t.Errorf("expected dry run marker in output")
	}
}

func TestRun_FailureStopsRun(t *testing.T) {
	ing := &recordingIngester{failAt: 2}
	cfg := Config{DataPath: writeCorpus(t), BaseURL: "http://memory"}
	r := NewRunner(cfg, ing, Sinks{}, io.Discard, discardLogger())

	summary, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *memory.StatusError
	if !errors.As(err, &statusErr) {
		t.Errorf("expected StatusError in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "conv-26_session_2") {
		t.Errorf("expected conversation id in error, got %v", err)
	}
	if len(ing.requests) != 2 {
		t.Errorf("expected run to stop after 2 requests, got %d", len(ing.requests))
	}
	if summary.SessionsSent != 1 {
		t.Errorf("expected 1 session sent before failure, got %d", summary.SessionsSent)
	}
	want := []SampleTotal{{SampleID: "conv-26", AgentID: locomo.AgentID("conv-26"), Sessions: 1, TurnsIngested: 2}}
	if diff := cmp.Diff(want, summary.Samples); diff != "" {
		t.Errorf("partial sample totals mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSamples_PaddedSessionKeys(t *testing.T) {
	samples, err := locomo.ParseCorpus([]byte(`[{"sample_id": "conv-1", "conversation": {
		"session_1": [{"speaker": "A", "text": "plain"}],
		"session_01": [{"speaker": "A", "text": "padded"}]
	}}]`))
	if err != nil {
		t.Fatalf("parse corpus: %v", err)
	}

	ing := &recordingIngester{}
	cfg := Config{BaseURL: "http://memory", Resume: true, StatePath: filepath.Join(t.TempDir(), "state.json")}
	if _, err := NewRunner(cfg, ing, Sinks{}, io.Discard, discardLogger()).RunSamples(context.Background(), samples); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []string
	for _, req := range ing.requests {
		ids = append(ids, req.ConversationID)
	}
	if diff := cmp.Diff([]string{"conv-1_session_01", "conv-1_session_1"}, ids); diff != "" {
		t.Errorf("conversation ids mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_MissingCorpus(t *testing.T) {
	ing := &recordingIngester{}
	cfg := Config{DataPath: filepath.Join(t.TempDir(), "missing.json")}
	r := NewRunner(cfg, ing, Sinks{}, io.Discard, discardLogger())

	_, err := r.Run(context.Background())
	if !errors.Is(err, locomo.ErrCorpusNotFound) {
		t.Fatalf("expected ErrCorpusNotFound, got %v", err)
	}
	if len(ing.requests) != 0 {
		t.Errorf("expected no requests, got %d", len(ing.requests))
	}
}

func TestRun_ResumeSkipsIngested(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	corpus := writeCorpus(t)

	first := &recordingIngester{failAt: 3}
	cfg := Config{DataPath: corpus, BaseURL: "http://memory", StatePath: statePath}
	if _, err := NewRunner(cfg, first, Sinks{}, io.Discard, discardLogger()).Run(context.Background()); err == nil {
		t.Fatal("expected first run to fail")
	}

	second := &recordingIngester{}
	cfg.Resume = true
	summary, err := NewRunner(cfg, second, Sinks{}, io.Discard, discardLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.SessionsSkipped != 2 {
		t.Errorf("expected 2 skipped sessions, got %d", summary.SessionsSkipped)
	}

	var got []string
	for _, req := range second.requests {
		got = append(got, req.ConversationID)
	}
	want := []string{"conv-26_session_10", "conv-30_session_1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resumed requests mismatch (-want +got):\n%s", diff)
	}

	state, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if len(state.Conversations) != 4 {
		t.Errorf("expected 4 conversations in state, got %d", len(state.Conversations))
	}
}

func TestRun_CancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ing := &recordingIngester{onCall: func(int) { cancel() }}
	cfg := Config{DataPath: writeCorpus(t), BaseURL: "http://memory", Delay: time.Hour}
	r := NewRunner(cfg, ing, Sinks{}, io.Discard, discardLogger())

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop on cancellation")
	}
	if len(ing.requests) != 1 {
		t.Errorf("expected 1 request before cancellation, got %d", len(ing.requests))
	}
}

func TestRun_Sinks(t *testing.T) {
	ing := &recordingIngester{}
	ledger := &fakeLedger{err: errors.New("db down")}
	pub := &fakePublisher{}
	notifier := &fakeNotifier{}

	cfg := Config{DataPath: writeCorpus(t), BaseURL: "http://memory"}
	sinks := Sinks{Ledger: ledger, Events: pub, Notifier: notifier}
	summary, err := NewRunner(cfg, ing, sinks, io.Discard, discardLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("ledger failures must not stop the run: %v", err)
	}
	if summary.SessionsSent != 4 {
		t.Errorf("expected 4 sessions, got %d", summary.SessionsSent)
	}
	if len(ledger.recorded) != 4 {
		t.Errorf("expected 4 ledger writes, got %d", len(ledger.recorded))
	}

	wantSubjects := []string{
		hermes.SubjectSessionIngested, hermes.SubjectSessionIngested,
		hermes.SubjectSessionIngested, hermes.SubjectSessionIngested,
		hermes.SubjectIngestCompleted,
	}
	if diff := cmp.Diff(wantSubjects, pub.subjects); diff != "" {
		t.Errorf("published subjects mismatch (-want +got):\n%s", diff)
	}
	if len(notifier.texts) != 1 || !strings.Contains(notifier.texts[0], "7 turns ingested") {
		t.Errorf("unexpected notifier texts %v", notifier.texts)
	}
}

func TestFormatSummary(t *testing.T) {
	s := &Summary{
		Samples: []SampleTotal{
			{SampleID: "conv-26", AgentID: locomo.AgentID("conv-26"), Sessions: 19, TurnsIngested: 300},
		},
		SessionsSent:    19,
		SessionsSkipped: 2,
		TurnsIngested:   300,
	}

	text := FormatSummary(s)
	checks := []string{
		"LoCoMo Ingest Summary",
		"1 samples, 19 sessions, 300 turns ingested",
		"(2 sessions skipped)",
		"conv-26 [40eff335-642f-549c-b423-cc21fa973675]: 19 sessions, 300 turns",
	}
	for _, check := range checks {
		if !strings.Contains(text, check) {
			t.Errorf("expected summary to contain %q, got:\n%s", check, text)
		}
	}
}

func TestPrintAgentIDs(t *testing.T) {
	var buf bytes.Buffer
	samples := []locomo.Sample{{SampleID: "conv-26"}, {SampleID: "conv-30"}}
	PrintAgentIDs(&buf, samples, "%s=%s\n")

	want := "conv-26=40eff335-642f-549c-b423-cc21fa973675\nconv-30=37bf327f-0125-54a7-b972-3f960a14e232\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}
