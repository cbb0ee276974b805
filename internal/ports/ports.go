package ports

import (
	"context"
	"time"

	"voxkey/internal/domain"
)

// SoundGateway is the live accessor for externally mutable sound-server
// state. Every read hits the running system; implementations must not
// cache device or profile state across calls.
type SoundGateway interface {
	// System reports the detected sound server: "pulseaudio",
	// "pipewire" or "unknown".
	System() string

	Sinks() ([]domain.AudioDevice, error)
	Sources() ([]domain.AudioDevice, error)
	DefaultSink() (string, error)
	DefaultSource() (string, error)
	SetDefaultSink(name string) error
	SetDefaultSource(name string) error

	// MoveSinkInputs reroutes active playback streams to the named sink
	// (PulseAudio only; a no-op elsewhere).
	MoveSinkInputs(sink string) error

	// SuspendSource suspends or resumes a source.
	SuspendSource(name string, suspend bool) error
	// SourceActive reports whether the named source currently exists
	// and is not suspended.
	SourceActive(name string) (bool, error)

	BluetoothCards() ([]domain.BluetoothCard, error)
	SetCardProfile(card, profile string) error
	CardDescription(card string) (string, error)
}

// HotkeySource signals recording start/stop and mode changes. Two
// interchangeable implementations exist (DBus signal consumer, global
// hotkey listener); both satisfy this exact contract.
type HotkeySource interface {
	Start() error
	Stop()
	CurrentMode() domain.RecordingMode

	SetOnStartRecording(fn func())
	SetOnStopRecording(fn func())
	SetOnModeChange(fn func(domain.RecordingMode))
}

// SpeechToText transcribes a complete mono float32 buffer. Synchronous;
// may fail.
type SpeechToText interface {
	Transcribe(ctx context.Context, samples []float32, language string) (string, error)
}

// CompletionRequest is a single text-completion call.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
}

// Completer performs text-completion requests. Network and auth errors
// are returned as errors, distinguishable from "disabled" (a disabled
// processor never calls the completer).
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// HistoryStore persists finished transcriptions.
type HistoryStore interface {
	AddEntry(text string, durationMS int, mode domain.RecordingMode) (string, error)
	// Recent returns up to limit entries, newest first.
	Recent(limit int) ([]domain.HistoryEntry, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// Paster focuses the previously active window and injects the paste
// keystroke appropriate for the given context.
type Paster interface {
	RememberActiveWindow()
	Paste(ctx context.Context, text string, contextType domain.ContextType) error
}

// Notifier shows a desktop notification. Best effort.
type Notifier interface {
	Notify(title, message string)
}

// EventSink receives pipeline events. Implementations marshal callbacks
// onto the coordinating goroutine; emitters never block on consumers.
// Failures inside background workers are delivered here, never raised
// across goroutine boundaries.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	TranscriptionStarted()
	TranscriptionProgress(text string, confidence float64)
	FinalResult(result domain.TranscriptionResult)
	TranscriptionFinished()
	CleanupStarted()
	CleanupFinished(text string)
	SessionError(code domain.ErrorCode, detail string)
}
