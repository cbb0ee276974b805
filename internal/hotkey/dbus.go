package hotkey

import (
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"voxkey/internal/domain"
	"voxkey/internal/ports"
)

const (
	shellService  = "org.gnome.Shell"
	extensionPath = "/org/gnome/Shell/Extensions/VoxKey"
	extensionIfac = "org.gnome.Shell.Extensions.VoxKey"
	toggleMember  = "ToggleRecording"
)

// DBusSource consumes ToggleRecording signals emitted by the desktop
// shell extension over the session bus. Each signal toggles recording:
// the first enters hands-free mode, the next stops it.
type DBusSource struct {
	conn    *dbus.Conn
	log     zerolog.Logger
	toggle  *toggleState
	cb      *callbacks
	signals chan *dbus.Signal

	stopOnce sync.Once
	done     chan struct{}
}

var _ ports.HotkeySource = (*DBusSource)(nil)

// NewDBusSource connects to the session bus and verifies the shell
// extension actually exports the expected interface before committing
// to this backend.
func NewDBusSource(log zerolog.Logger) (*DBusSource, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus unavailable: %w", err)
	}

	var introspection string
	obj := conn.Object(shellService, extensionPath)
	if err := obj.Call("org.freedesktop.DBus.Introspectable.Introspect", 0).Store(&introspection); err != nil {
		conn.Close()
		return nil, fmt.Errorf("shell extension not reachable: %w", err)
	}
	if !strings.Contains(introspection, extensionIfac) {
		conn.Close()
		return nil, fmt.Errorf("interface %s not exported at %s (extension disabled?)", extensionIfac, extensionPath)
	}

	cb := &callbacks{}
	return &DBusSource{
		conn:   conn,
		log:    log.With().Str("component", "dbus-hotkey").Logger(),
		toggle: newToggleState(cb),
		cb:     cb,
		done:   make(chan struct{}),
	}, nil
}

func (d *DBusSource) Start() error {
	if err := d.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(extensionPath),
		dbus.WithMatchInterface(extensionIfac),
		dbus.WithMatchMember(toggleMember),
	); err != nil {
		return fmt.Errorf("could not subscribe to %s: %w", toggleMember, err)
	}

	d.signals = make(chan *dbus.Signal, 16)
	d.conn.Signal(d.signals)

	go d.consume()
	d.log.Info().Str("interface", extensionIfac).Msg("listening for toggle signals")
	return nil
}

func (d *DBusSource) consume() {
	for {
		select {
		case sig, ok := <-d.signals:
			if !ok {
				return
			}
			if sig.Name != extensionIfac+"."+toggleMember {
				continue
			}
			d.log.Debug().Msg("toggle signal received")
			d.toggle.Toggle()
		case <-d.done:
			return
		}
	}
}

func (d *DBusSource) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		if d.signals != nil {
			d.conn.RemoveSignal(d.signals)
		}
		d.conn.Close()
	})
}

func (d *DBusSource) CurrentMode() domain.RecordingMode { return d.toggle.Mode() }

func (d *DBusSource) SetOnStartRecording(fn func())                 { d.cb.SetOnStartRecording(fn) }
func (d *DBusSource) SetOnStopRecording(fn func())                  { d.cb.SetOnStopRecording(fn) }
func (d *DBusSource) SetOnModeChange(fn func(domain.RecordingMode)) { d.cb.SetOnModeChange(fn) }
