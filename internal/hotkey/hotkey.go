package hotkey

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"voxkey/internal/domain"
	"voxkey/internal/ports"
)

// Factory builds a hotkey backend. The X11 global-hotkey backend is
// supplied through one of these from a build-tagged file in the main
// package, keeping its display-server dependency out of default builds.
type Factory func(zerolog.Logger) (ports.HotkeySource, error)

// Detect probes the available hotkey backends at startup. The DBus
// source (desktop-extension signals) is preferred because it works
// under Wayland; fallback, when non-nil, provides the process-global
// hotkey listener. Failure of both is fatal to the caller, since
// without any hotkey mechanism the application cannot be triggered at
// all.
func Detect(log zerolog.Logger, fallback Factory) (ports.HotkeySource, error) {
	src, dbusErr := NewDBusSource(log)
	if dbusErr == nil {
		log.Info().Msg("using dbus hotkey source")
		return src, nil
	}
	log.Warn().Err(dbusErr).Msg("dbus hotkey source unavailable, trying global hotkey")
	return fallbackSource(log, fallback, dbusErr)
}

func fallbackSource(log zerolog.Logger, fallback Factory, dbusErr error) (ports.HotkeySource, error) {
	if fallback == nil {
		return nil, fmt.Errorf("no hotkey backend available: dbus: %v; global hotkeys not built in", dbusErr)
	}
	src, err := fallback(log)
	if err != nil {
		return nil, fmt.Errorf("no hotkey backend available: dbus: %v; global: %v", dbusErr, err)
	}
	log.Info().Msg("using global hotkey source")
	return src, nil
}

// callbacks holds the three observer hooks shared by both backends.
type callbacks struct {
	mu      sync.Mutex
	onStart func()
	onStop  func()
	onMode  func(domain.RecordingMode)
}

func (c *callbacks) SetOnStartRecording(fn func()) {
	c.mu.Lock()
	c.onStart = fn
	c.mu.Unlock()
}

func (c *callbacks) SetOnStopRecording(fn func()) {
	c.mu.Lock()
	c.onStop = fn
	c.mu.Unlock()
}

func (c *callbacks) SetOnModeChange(fn func(domain.RecordingMode)) {
	c.mu.Lock()
	c.onMode = fn
	c.mu.Unlock()
}

func (c *callbacks) start() {
	c.mu.Lock()
	fn := c.onStart
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *callbacks) stop() {
	c.mu.Lock()
	fn := c.onStop
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *callbacks) modeChanged(mode domain.RecordingMode) {
	c.mu.Lock()
	fn := c.onMode
	c.mu.Unlock()
	if fn != nil {
		fn(mode)
	}
}

// toggleState is the press-once-to-start, press-again-to-stop state
// machine used by the DBus backend. A toggle start always enters
// hands-free mode; the stop returns to idle.
type toggleState struct {
	mu        sync.Mutex
	recording bool
	mode      domain.RecordingMode

	callbacks *callbacks
}

func newToggleState(cb *callbacks) *toggleState {
	return &toggleState{mode: domain.ModeIdle, callbacks: cb}
}

func (t *toggleState) Toggle() {
	t.mu.Lock()
	t.recording = !t.recording
	if t.recording {
		t.mode = domain.ModeHandsFree
	} else {
		t.mode = domain.ModeIdle
	}
	recording := t.recording
	mode := t.mode
	t.mu.Unlock()

	if recording {
		t.callbacks.start()
	} else {
		t.callbacks.stop()
	}
	t.callbacks.modeChanged(mode)
}

func (t *toggleState) Mode() domain.RecordingMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

func (t *toggleState) Recording() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recording
}
