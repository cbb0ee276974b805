package domain

import "time"

// RecordingMode models how a recording session was initiated.
type RecordingMode string

const (
	ModeIdle       RecordingMode = "idle"
	ModeHoldToTalk RecordingMode = "hold_to_talk"
	ModeHandsFree  RecordingMode = "hands_free"
)

// ContextType is the inferred destination of dictated text, used to
// select the cleanup style.
type ContextType string

const (
	ContextCodeWindow    ContextType = "code_window"
	ContextCodingAgent   ContextType = "coding_agent"
	ContextSlack         ContextType = "slack"
	ContextWhatsApp      ContextType = "whatsapp"
	ContextFormalEmail   ContextType = "formal_email"
	ContextCasualEmail   ContextType = "casual_email"
	ContextCasualMessage ContextType = "casual_message"
	ContextUnknown       ContextType = "unknown"
)

// TranscriptionResult is emitted by the transcription pipeline.
// Immutable once emitted.
type TranscriptionResult struct {
	Text       string      `json:"text"`
	IsPartial  bool        `json:"isPartial"`
	Confidence float64     `json:"confidence"`
	Context    ContextType `json:"context"`
}

// AudioDevice describes a sink or source known to the sound server.
// Index is scoped to the active sound system and is not stable across
// calls; Name is the system identifier used for switching.
type AudioDevice struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"isDefault"`
}

// BluetoothCard is a snapshot of a bluez card's profile state. Queried
// fresh on every operation because profile state is externally mutable.
type BluetoothCard struct {
	Name          string
	ActiveProfile string
	Profiles      map[string]string
}

// HistoryEntry is a persisted transcription record.
type HistoryEntry struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	DurationMS int           `json:"durationMs"`
	Mode       RecordingMode `json:"mode"`
	Timestamp  time.Time     `json:"timestamp"`
}

// SessionState models the dictation session lifecycle.
type SessionState string

const (
	SessionStateIdle         SessionState = "idle"
	SessionStateRecording    SessionState = "recording"
	SessionStateStopping     SessionState = "stopping"
	SessionStateTranscribing SessionState = "transcribing"
	SessionStateError        SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonStartup             SessionStateReason = "startup"
	SessionReasonRecordingStarted    SessionStateReason = "recording_started"
	SessionReasonRecordingRestarted  SessionStateReason = "recording_restarted"
	SessionReasonTranscribing        SessionStateReason = "transcribing"
	SessionReasonTranscriptPasted    SessionStateReason = "transcript_pasted"
	SessionReasonPasteFailed         SessionStateReason = "paste_failed"
	SessionReasonNoAudio             SessionStateReason = "no_audio"
	SessionReasonNoSpeech            SessionStateReason = "no_speech"
	SessionReasonTranscriptionFailed SessionStateReason = "transcription_failed"
	SessionReasonCleanupFellBack     SessionStateReason = "cleanup_fell_back"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeAudioStart    ErrorCode = "audio_start"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodeDeviceSwitch  ErrorCode = "device_switch"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeCleanup       ErrorCode = "cleanup"
	ErrorCodeClipboard     ErrorCode = "clipboard"
	ErrorCodePaste         ErrorCode = "paste"
	ErrorCodeHistory       ErrorCode = "history"
)

// Status summarizes the current runtime status.
type Status struct {
	State   SessionState  `json:"state"`
	Mode    RecordingMode `json:"mode"`
	Active  bool          `json:"active"`
	Message string        `json:"message,omitempty"`
}
