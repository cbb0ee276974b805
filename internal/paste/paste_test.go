package paste

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"voxkey/internal/domain"
)

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) SetText(_ context.Context, text string) error {
	c.text = text
	return c.err
}

func newTestPaster(clip *fakeClipboard) (*Paster, *[]bool, *[][]string) {
	p := NewPaster(clip, zerolog.Nop())
	p.settle = 0
	var keys []bool
	var commands [][]string
	p.sendKeys = func(withShift bool) error {
		keys = append(keys, withShift)
		return nil
	}
	p.runCommand = func(_ context.Context, name string, args ...string) (string, error) {
		commands = append(commands, append([]string{name}, args...))
		if name == "xdotool" && len(args) > 0 && args[0] == "getactivewindow" {
			return "12345", nil
		}
		return "", nil
	}
	return p, &keys, &commands
}

func TestPasteUsesPlainCtrlVForCodeWindows(t *testing.T) {
	t.Parallel()

	clip := &fakeClipboard{}
	p, keys, _ := newTestPaster(clip)

	if err := p.Paste(context.Background(), "some code", domain.ContextCodeWindow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*keys) != 1 || (*keys)[0] {
		t.Fatalf("expected ctrl+v without shift, got %v", *keys)
	}
	if clip.text != "some code" {
		t.Fatalf("clipboard not set, got %q", clip.text)
	}
}

func TestPasteUsesCtrlShiftVByDefault(t *testing.T) {
	t.Parallel()

	p, keys, _ := newTestPaster(&fakeClipboard{})

	for _, ctx := range []domain.ContextType{domain.ContextSlack, domain.ContextUnknown, domain.ContextFormalEmail} {
		if err := p.Paste(context.Background(), "text", ctx); err != nil {
			t.Fatalf("unexpected error for %v: %v", ctx, err)
		}
	}
	for i, withShift := range *keys {
		if !withShift {
			t.Fatalf("paste %d: expected shift held", i)
		}
	}
}

func TestPasteRefocusesRememberedWindow(t *testing.T) {
	t.Parallel()

	p, _, commands := newTestPaster(&fakeClipboard{})

	p.RememberActiveWindow()
	if err := p.Paste(context.Background(), "text", domain.ContextUnknown); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	foundActivate := false
	for _, cmd := range *commands {
		if len(cmd) >= 4 && cmd[0] == "xdotool" && cmd[1] == "windowactivate" && cmd[3] == "12345" {
			foundActivate = true
		}
	}
	if !foundActivate {
		t.Fatalf("expected windowactivate for remembered window, got %v", *commands)
	}
}

func TestPasteClipboardFailureAborts(t *testing.T) {
	t.Parallel()

	p, keys, _ := newTestPaster(&fakeClipboard{err: errors.New("no display")})

	err := p.Paste(context.Background(), "text", domain.ContextUnknown)
	if err == nil {
		t.Fatal("expected error when clipboard fails")
	}
	if len(*keys) != 0 {
		t.Fatal("keystroke must not fire when the clipboard was not set")
	}
}

func TestPasteWithoutRememberedWindowStillPastes(t *testing.T) {
	t.Parallel()

	p, keys, commands := newTestPaster(&fakeClipboard{})

	if err := p.Paste(context.Background(), "text", domain.ContextUnknown); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*keys) != 1 {
		t.Fatal("expected paste keystroke")
	}
	for _, cmd := range *commands {
		if cmd[0] == "xdotool" && cmd[1] == "windowactivate" {
			t.Fatal("must not activate a window that was never remembered")
		}
	}
}
