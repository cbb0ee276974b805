package paste

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
	"github.com/rs/zerolog"

	"voxkey/internal/domain"
	"voxkey/internal/ports"
)

// focusSettle is how long the target window gets to regain focus
// before the paste keystroke fires.
const focusSettle = 500 * time.Millisecond

// Clipboard writes text to the system clipboard, trying the native
// binding first with xclip and wl-copy subprocess fallbacks. Each
// mechanism is independently failure-tolerant; success of any one
// counts.
type Clipboard struct {
	log zerolog.Logger
}

var _ ports.Clipboard = (*Clipboard)(nil)

func NewClipboard(log zerolog.Logger) *Clipboard {
	return &Clipboard{log: log.With().Str("component", "clipboard").Logger()}
}

func (c *Clipboard) SetText(ctx context.Context, text string) error {
	ok := false
	if err := clipboard.WriteAll(text); err != nil {
		c.log.Debug().Err(err).Msg("native clipboard write failed")
	} else {
		ok = true
	}

	// Redundant backup writes: some clipboard managers only pick up one
	// of the mechanisms reliably.
	if err := pipeTo(ctx, text, "xclip", "-selection", "clipboard"); err != nil {
		c.log.Debug().Err(err).Msg("xclip write failed")
	} else {
		ok = true
	}
	if err := pipeTo(ctx, text, "wl-copy"); err != nil {
		c.log.Debug().Err(err).Msg("wl-copy write failed")
	} else {
		ok = true
	}

	if !ok {
		return fmt.Errorf("no clipboard mechanism succeeded")
	}
	return nil
}

func pipeTo(ctx context.Context, text, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// Paster remembers the window that had focus before the recording UI
// took over, and injects a paste keystroke into it afterwards.
// code_window contexts get plain Ctrl+V; everything else gets
// Ctrl+Shift+V, which terminals interpret as paste.
type Paster struct {
	clipboard ports.Clipboard
	log       zerolog.Logger

	mu       sync.Mutex
	windowID string

	// test seams
	settle     time.Duration
	runCommand func(ctx context.Context, name string, args ...string) (string, error)
	sendKeys   func(withShift bool) error
}

var _ ports.Paster = (*Paster)(nil)

func NewPaster(clip ports.Clipboard, log zerolog.Logger) *Paster {
	p := &Paster{
		clipboard: clip,
		log:       log.With().Str("component", "paste").Logger(),
	}
	p.settle = focusSettle
	p.runCommand = runCommand
	p.sendKeys = sendPasteKeys
	return p
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return strings.TrimSpace(string(out)), err
}

// RememberActiveWindow captures the currently focused window id. Called
// right before recording starts, while the user's target still has
// focus. Best effort; without it the paste lands wherever focus is.
func (p *Paster) RememberActiveWindow() {
	id, err := p.runCommand(context.Background(), "xdotool", "getactivewindow")
	if err != nil {
		p.log.Debug().Err(err).Msg("could not capture active window")
		return
	}
	p.mu.Lock()
	p.windowID = id
	p.mu.Unlock()
	p.log.Debug().Str("window", id).Msg("active window remembered")
}

// Paste sets the clipboard, refocuses the remembered window and fires
// the paste keystroke. Clipboard failure aborts; focus failure does not
// (the keystroke still goes to whatever has focus).
func (p *Paster) Paste(ctx context.Context, text string, contextType domain.ContextType) error {
	if err := p.clipboard.SetText(ctx, text); err != nil {
		return fmt.Errorf("clipboard set failed: %w", err)
	}

	p.mu.Lock()
	windowID := p.windowID
	p.mu.Unlock()

	if windowID != "" {
		if _, err := p.runCommand(ctx, "xdotool", "windowactivate", "--sync", windowID); err != nil {
			p.log.Warn().Err(err).Str("window", windowID).Msg("could not refocus window")
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.settle):
	}

	withShift := contextType != domain.ContextCodeWindow
	if err := p.sendKeys(withShift); err != nil {
		return fmt.Errorf("paste keystroke failed: %w", err)
	}
	return nil
}

func sendPasteKeys(withShift bool) error {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return err
	}
	kb.SetKeys(keybd_event.VK_V)
	kb.HasCTRL(true)
	if withShift {
		kb.HasSHIFT(true)
	}
	return kb.Launching()
}
