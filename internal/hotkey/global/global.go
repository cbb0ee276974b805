// Package global registers process-wide hotkeys directly with the X
// display server. The underlying library opens the display connection
// when this package is loaded, so it is only linked into builds that
// opt in; headless environments use the DBus backend instead.
package global

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	gohotkey "golang.design/x/hotkey"

	"voxkey/internal/domain"
	"voxkey/internal/ports"
)

// Source drives recording from two global key bindings. Hold-to-talk:
// recording runs while Alt+Space is held. Hands-free: Ctrl+Alt+Space
// toggles.
type Source struct {
	log zerolog.Logger

	hold   *gohotkey.Hotkey
	toggle *gohotkey.Hotkey

	mu        sync.Mutex
	mode      domain.RecordingMode
	recording bool
	onStart   func()
	onStop    func()
	onMode    func(domain.RecordingMode)

	stopOnce sync.Once
	done     chan struct{}
}

var _ ports.HotkeySource = (*Source)(nil)

func New(log zerolog.Logger) (*Source, error) {
	hold := gohotkey.New([]gohotkey.Modifier{gohotkey.Mod1}, gohotkey.KeySpace)
	if err := hold.Register(); err != nil {
		return nil, fmt.Errorf("could not register hold-to-talk hotkey: %w", err)
	}

	toggle := gohotkey.New([]gohotkey.Modifier{gohotkey.ModCtrl, gohotkey.Mod1}, gohotkey.KeySpace)
	if err := toggle.Register(); err != nil {
		_ = hold.Unregister()
		return nil, fmt.Errorf("could not register hands-free hotkey: %w", err)
	}

	return &Source{
		log:    log.With().Str("component", "global-hotkey").Logger(),
		hold:   hold,
		toggle: toggle,
		mode:   domain.ModeIdle,
		done:   make(chan struct{}),
	}, nil
}

func (g *Source) Start() error {
	go g.listen()
	g.log.Info().Msg("global hotkeys registered")
	return nil
}

func (g *Source) listen() {
	for {
		select {
		case <-g.hold.Keydown():
			g.holdPressed()
		case <-g.hold.Keyup():
			g.holdReleased()
		case <-g.toggle.Keydown():
			g.toggleHandsFree()
		case <-g.done:
			return
		}
	}
}

func (g *Source) holdPressed() {
	g.mu.Lock()
	if g.recording {
		g.mu.Unlock()
		return
	}
	g.recording = true
	g.mode = domain.ModeHoldToTalk
	g.mu.Unlock()

	g.emitStart()
	g.emitMode(domain.ModeHoldToTalk)
}

func (g *Source) holdReleased() {
	g.mu.Lock()
	// A keyup while in hands-free mode belongs to the toggle combo,
	// not to a hold session.
	if !g.recording || g.mode != domain.ModeHoldToTalk {
		g.mu.Unlock()
		return
	}
	g.recording = false
	g.mode = domain.ModeIdle
	g.mu.Unlock()

	g.emitStop()
	g.emitMode(domain.ModeIdle)
}

func (g *Source) toggleHandsFree() {
	g.mu.Lock()
	if g.recording && g.mode != domain.ModeHandsFree {
		g.mu.Unlock()
		return
	}
	g.recording = !g.recording
	if g.recording {
		g.mode = domain.ModeHandsFree
	} else {
		g.mode = domain.ModeIdle
	}
	recording := g.recording
	mode := g.mode
	g.mu.Unlock()

	if recording {
		g.emitStart()
	} else {
		g.emitStop()
	}
	g.emitMode(mode)
}

func (g *Source) emitStart() {
	g.mu.Lock()
	fn := g.onStart
	g.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (g *Source) emitStop() {
	g.mu.Lock()
	fn := g.onStop
	g.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (g *Source) emitMode(mode domain.RecordingMode) {
	g.mu.Lock()
	fn := g.onMode
	g.mu.Unlock()
	if fn != nil {
		fn(mode)
	}
}

func (g *Source) Stop() {
	g.stopOnce.Do(func() {
		close(g.done)
		_ = g.hold.Unregister()
		_ = g.toggle.Unregister()
	})
}

func (g *Source) CurrentMode() domain.RecordingMode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

func (g *Source) SetOnStartRecording(fn func()) {
	g.mu.Lock()
	g.onStart = fn
	g.mu.Unlock()
}

func (g *Source) SetOnStopRecording(fn func()) {
	g.mu.Lock()
	g.onStop = fn
	g.mu.Unlock()
}

func (g *Source) SetOnModeChange(fn func(domain.RecordingMode)) {
	g.mu.Lock()
	g.onMode = fn
	g.mu.Unlock()
}
