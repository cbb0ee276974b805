package transcribe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voxkey/internal/domain"
)

type fakeEngine struct {
	text  string
	err   error
	block chan struct{}
}

func (e *fakeEngine) Transcribe(_ context.Context, _ []float32, _ string) (string, error) {
	if e.block != nil {
		<-e.block
	}
	return e.text, e.err
}

type fakeCleaner struct {
	enabled bool
	cleaned string
	ctx     domain.ContextType
	err     error
}

func (c *fakeCleaner) Enabled() bool { return c.enabled }

func (c *fakeCleaner) ProcessAsync(raw string, onDone func(string, domain.ContextType), onFail func(error)) {
	if c.err != nil {
		onFail(c.err)
		return
	}
	onDone(c.cleaned, c.ctx)
}

type eventLog struct {
	mu              sync.Mutex
	started         int
	finished        int
	cleanupStarted  int
	cleanupFinished int
	progress        []string
	errors          []string
	results         []domain.TranscriptionResult
	done            chan struct{}
}

func newEventLog() *eventLog {
	return &eventLog{done: make(chan struct{}, 4)}
}

func (e *eventLog) TranscriptionStarted() {
	e.mu.Lock()
	e.started++
	e.mu.Unlock()
}

func (e *eventLog) TranscriptionProgress(text string, _ float64) {
	e.mu.Lock()
	e.progress = append(e.progress, text)
	e.mu.Unlock()
}

func (e *eventLog) FinalResult(r domain.TranscriptionResult) {
	e.mu.Lock()
	e.results = append(e.results, r)
	e.mu.Unlock()
}

func (e *eventLog) TranscriptionError(msg string) {
	e.mu.Lock()
	e.errors = append(e.errors, msg)
	e.mu.Unlock()
}

func (e *eventLog) TranscriptionFinished() {
	e.mu.Lock()
	e.finished++
	e.mu.Unlock()
	e.done <- struct{}{}
}

func (e *eventLog) CleanupStarted() {
	e.mu.Lock()
	e.cleanupStarted++
	e.mu.Unlock()
}

func (e *eventLog) CleanupFinished(string) {
	e.mu.Lock()
	e.cleanupFinished++
	e.mu.Unlock()
}

func (e *eventLog) wait(t *testing.T) {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(2 * time.Second):
		t.Fatal("no finished event")
	}
}

func TestRejectsConcurrentSubmissions(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{text: "hello", block: make(chan struct{})}
	events := newEventLog()
	tr := New(engine, nil, events, "en", zerolog.Nop())

	if !tr.Submit([]float32{0.1}) {
		t.Fatal("first submission must be accepted")
	}
	if tr.Submit([]float32{0.2}) {
		t.Fatal("second submission must be rejected while busy")
	}

	close(engine.block)
	events.wait(t)

	if !tr.Submit([]float32{0.3}) {
		t.Fatal("submission after finish must be accepted")
	}
	events.wait(t)

	events.mu.Lock()
	defer events.mu.Unlock()
	if events.started != 2 {
		t.Fatalf("expected 2 started events, got %d", events.started)
	}
	if events.finished != 2 {
		t.Fatalf("expected 2 finished events, got %d", events.finished)
	}
}

func TestCleanupDisabledEmitsRawWithUnknownContext(t *testing.T) {
	t.Parallel()

	events := newEventLog()
	tr := New(&fakeEngine{text: "raw words"}, &fakeCleaner{enabled: false}, events, "en", zerolog.Nop())

	tr.Submit([]float32{0.1})
	events.wait(t)

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(events.results))
	}
	r := events.results[0]
	if r.Text != "raw words" || r.Context != domain.ContextUnknown {
		t.Fatalf("unexpected result %+v", r)
	}
	if len(events.progress) != 0 {
		t.Fatalf("no progress expected without cleanup, got %v", events.progress)
	}
}

func TestCleanupSuccessEmitsCleanedWithContext(t *testing.T) {
	t.Parallel()

	events := newEventLog()
	cleaner := &fakeCleaner{enabled: true, cleaned: "Polished.", ctx: domain.ContextSlack}
	tr := New(&fakeEngine{text: "raw"}, cleaner, events, "en", zerolog.Nop())

	tr.Submit([]float32{0.1})
	events.wait(t)

	events.mu.Lock()
	defer events.mu.Unlock()
	r := events.results[0]
	if r.Text != "Polished." || r.Context != domain.ContextSlack {
		t.Fatalf("unexpected result %+v", r)
	}
	if events.cleanupStarted != 1 || events.cleanupFinished != 1 {
		t.Fatalf("expected cleanup start/finish events, got %d/%d",
			events.cleanupStarted, events.cleanupFinished)
	}
	if len(events.progress) != 1 || events.progress[0] != "raw" {
		t.Fatalf("expected the raw transcript as progress, got %v", events.progress)
	}
}

func TestCleanupFailureFallsBackToRawText(t *testing.T) {
	t.Parallel()

	events := newEventLog()
	cleaner := &fakeCleaner{enabled: true, err: errors.New("api down")}
	tr := New(&fakeEngine{text: "the raw utterance"}, cleaner, events, "en", zerolog.Nop())

	tr.Submit([]float32{0.1})
	events.wait(t)

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.results) != 1 {
		t.Fatalf("expected fallback result, got %d results", len(events.results))
	}
	r := events.results[0]
	if r.Text != "the raw utterance" {
		t.Fatalf("expected raw text fallback, got %q", r.Text)
	}
	if r.Context != domain.ContextUnknown {
		t.Fatalf("fallback context must be unknown, got %v", r.Context)
	}
	if events.finished != 1 {
		t.Fatalf("expected exactly one finished event, got %d", events.finished)
	}
	if events.cleanupFinished != 0 {
		t.Fatal("cleanup finished must not fire on the fallback path")
	}
}

func TestEmptyTranscriptionEmitsErrorNotResult(t *testing.T) {
	t.Parallel()

	events := newEventLog()
	tr := New(&fakeEngine{text: ""}, nil, events, "en", zerolog.Nop())

	tr.Submit([]float32{0.1})
	events.wait(t)

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.results) != 0 {
		t.Fatalf("no result expected for empty transcript, got %v", events.results)
	}
	if len(events.errors) != 1 || !strings.Contains(events.errors[0], "No speech") {
		t.Fatalf("expected no-speech error, got %v", events.errors)
	}
	if events.finished != 1 {
		t.Fatalf("expected finished event even on error path, got %d", events.finished)
	}
}

func TestEngineFailureEmitsErrorAndFinishes(t *testing.T) {
	t.Parallel()

	events := newEventLog()
	tr := New(&fakeEngine{err: errors.New("server unreachable")}, nil, events, "en", zerolog.Nop())

	tr.Submit([]float32{0.1})
	events.wait(t)

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.errors) != 1 || !strings.Contains(events.errors[0], "server unreachable") {
		t.Fatalf("expected engine error event, got %v", events.errors)
	}
	if events.finished != 1 {
		t.Fatalf("expected exactly one finished event, got %d", events.finished)
	}
	if tr.Busy() {
		t.Fatal("transcriber must not stay busy after failure")
	}
}
