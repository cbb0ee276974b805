package main

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voxkey/internal/bootstrap"
	"voxkey/internal/devices"
	"voxkey/internal/domain"
	"voxkey/internal/session"
	"voxkey/internal/transcribe"
)

type fakeSoundGateway struct {
	mu            sync.Mutex
	defaultSource string
	defaultSink   string
}

func (g *fakeSoundGateway) System() string                         { return "pulseaudio" }
func (g *fakeSoundGateway) Sinks() ([]domain.AudioDevice, error)   { return nil, nil }
func (g *fakeSoundGateway) Sources() ([]domain.AudioDevice, error) { return nil, nil }

func (g *fakeSoundGateway) DefaultSink() (string, error)   { return g.defaultSink, nil }
func (g *fakeSoundGateway) DefaultSource() (string, error) { return g.defaultSource, nil }

func (g *fakeSoundGateway) SetDefaultSink(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaultSink = name
	return nil
}

func (g *fakeSoundGateway) SetDefaultSource(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaultSource = name
	return nil
}

func (g *fakeSoundGateway) MoveSinkInputs(string) error                     { return nil }
func (g *fakeSoundGateway) SuspendSource(string, bool) error                { return nil }
func (g *fakeSoundGateway) SourceActive(string) (bool, error)               { return true, nil }
func (g *fakeSoundGateway) BluetoothCards() ([]domain.BluetoothCard, error) { return nil, nil }
func (g *fakeSoundGateway) SetCardProfile(string, string) error             { return nil }
func (g *fakeSoundGateway) CardDescription(string) (string, error)          { return "", nil }

type fakeAppRecorder struct {
	recording atomic.Bool
	buffer    []float32
}

func (r *fakeAppRecorder) Start() error {
	r.recording.Store(true)
	return nil
}

func (r *fakeAppRecorder) Stop() []float32 {
	r.recording.Store(false)
	return r.buffer
}

func (r *fakeAppRecorder) IsRecording() bool { return r.recording.Load() }

type fakeAppEngine struct{ text string }

func (e *fakeAppEngine) Transcribe(_ context.Context, _ []float32, _ string) (string, error) {
	return e.text, nil
}

type fakeAppHistory struct {
	mu      sync.Mutex
	entries []string
}

func (h *fakeAppHistory) AddEntry(text string, _ int, _ domain.RecordingMode) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, text)
	return "id", nil
}

func (h *fakeAppHistory) Recent(int) ([]domain.HistoryEntry, error) { return nil, nil }

type fakeAppPaster struct {
	mu         sync.Mutex
	remembered int
	pasted     []string
	contexts   []domain.ContextType
	done       chan struct{}
}

func (p *fakeAppPaster) RememberActiveWindow() {
	p.mu.Lock()
	p.remembered++
	p.mu.Unlock()
}

func (p *fakeAppPaster) Paste(_ context.Context, text string, ctx domain.ContextType) error {
	p.mu.Lock()
	p.pasted = append(p.pasted, text)
	p.contexts = append(p.contexts, ctx)
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

type fakeAppNotifier struct{}

func (fakeAppNotifier) Notify(string, string) {}

func newPipelineApp(t *testing.T, transcript string) (*App, *fakeAppPaster, *fakeAppHistory) {
	t.Helper()
	log := zerolog.Nop()
	app := NewApp(log)

	gw := &fakeSoundGateway{defaultSource: "mic", defaultSink: "out"}
	recorder := &fakeAppRecorder{buffer: []float32{0.1, 0.2}}
	paster := &fakeAppPaster{done: make(chan struct{}, 1)}
	history := &fakeAppHistory{}
	notifier := fakeAppNotifier{}

	dm := devices.NewManager(gw, log)
	sess := session.New(recorder, 50*time.Millisecond, log)
	transcriber := transcribe.New(&fakeAppEngine{text: transcript}, nil, app, "en", log)

	app.services = bootstrap.Services{
		Gateway:     gw,
		Devices:     dm,
		Session:     sess,
		Transcriber: transcriber,
		History:     history,
		Paster:      paster,
		Notifier:    notifier,
	}
	app.sink = &loggingSink{log: log, notifier: notifier}
	return app, paster, history
}

func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	app, paster, history := newPipelineApp(t, "hello world")

	app.onStartRecording()
	time.Sleep(100 * time.Millisecond)
	app.onStopRecording()

	select {
	case <-paster.done:
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline did not reach paste")
	}

	paster.mu.Lock()
	defer paster.mu.Unlock()
	if paster.remembered != 1 {
		t.Fatalf("expected window remembered once, got %d", paster.remembered)
	}
	if len(paster.pasted) != 1 || paster.pasted[0] != "hello world" {
		t.Fatalf("unexpected paste %v", paster.pasted)
	}
	if paster.contexts[0] != domain.ContextUnknown {
		t.Fatalf("expected unknown context without cleanup, got %v", paster.contexts[0])
	}

	history.mu.Lock()
	defer history.mu.Unlock()
	if len(history.entries) != 1 || history.entries[0] != "hello world" {
		t.Fatalf("unexpected history %v", history.entries)
	}
}

func TestPipelineIgnoresDoubleStart(t *testing.T) {
	t.Parallel()

	app, paster, _ := newPipelineApp(t, "text")

	app.onStartRecording()
	app.onStartRecording()
	time.Sleep(100 * time.Millisecond)
	app.onStopRecording()

	select {
	case <-paster.done:
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline did not finish")
	}

	paster.mu.Lock()
	defer paster.mu.Unlock()
	if paster.remembered != 1 {
		t.Fatalf("second start must be ignored, remembered %d times", paster.remembered)
	}
	if len(paster.pasted) != 1 {
		t.Fatalf("expected a single paste, got %d", len(paster.pasted))
	}
}

func TestPipelineStatusTransitions(t *testing.T) {
	t.Parallel()

	app, paster, _ := newPipelineApp(t, "text")

	if got := app.Status(); got.State != domain.SessionStateIdle {
		t.Fatalf("expected idle before start, got %v", got.State)
	}

	app.onStartRecording()
	time.Sleep(30 * time.Millisecond)
	if got := app.Status(); got.State != domain.SessionStateRecording {
		t.Fatalf("expected recording, got %v", got.State)
	}

	app.onStopRecording()
	<-paster.done
	time.Sleep(50 * time.Millisecond)
	if got := app.Status(); got.State != domain.SessionStateIdle {
		t.Fatalf("expected idle after pipeline, got %v", got.State)
	}
}
