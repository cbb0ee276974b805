//go:build !x11

package main

import "voxkey/internal/hotkey"

// Without the x11 tag the only hotkey backend is the DBus shell
// extension; the global-hotkey library would open the X display at
// startup and abort on headless or pure-Wayland sessions.
var globalHotkeys hotkey.Factory
