//go:build x11

package main

import (
	"github.com/rs/zerolog"

	"voxkey/internal/hotkey"
	"voxkey/internal/hotkey/global"
	"voxkey/internal/ports"
)

// Builds tagged x11 link the display-server hotkey backend in as the
// fallback for desktops without the shell extension.
var globalHotkeys hotkey.Factory = func(log zerolog.Logger) (ports.HotkeySource, error) {
	return global.New(log)
}
