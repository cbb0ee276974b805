package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voxkey/internal/bootstrap"
	"voxkey/internal/domain"
	"voxkey/internal/hotkey"
	"voxkey/internal/ports"
)

const pasteTimeout = 10 * time.Second

// App coordinates the dictation pipeline: hotkey events drive the
// recording session, whose buffer flows through transcription and
// cleanup before landing in the previously focused window. All pipeline
// failures degrade to notifications; only startup can fail hard.
type App struct {
	services bootstrap.Services
	hotkeys  ports.HotkeySource
	sink     ports.EventSink
	log      zerolog.Logger

	mu    sync.Mutex
	state domain.SessionState
	mode  domain.RecordingMode

	sessionActive atomic.Bool
	lastDuration  atomic.Int64 // ms, for the history entry
}

func NewApp(log zerolog.Logger) *App {
	return &App{
		log:   log.With().Str("component", "app").Logger(),
		state: domain.SessionStateIdle,
		mode:  domain.ModeIdle,
	}
}

// Start builds the service graph and begins listening for hotkeys.
func (a *App) Start() error {
	services, err := bootstrap.Build(a, a.log)
	if err != nil {
		return err
	}
	a.services = services
	a.sink = &loggingSink{log: a.log, notifier: services.Notifier}

	hotkeys, err := hotkey.Detect(a.log, globalHotkeys)
	if err != nil {
		return err
	}
	a.hotkeys = hotkeys

	hotkeys.SetOnStartRecording(a.onStartRecording)
	hotkeys.SetOnStopRecording(a.onStopRecording)
	hotkeys.SetOnModeChange(a.onModeChange)
	if err := hotkeys.Start(); err != nil {
		return err
	}

	a.setState(domain.SessionStateIdle, domain.SessionReasonStartup)
	a.log.Info().Msg("ready for dictation")
	return nil
}

// Stop shuts the hotkey source down and ends any running session.
func (a *App) Stop() {
	if a.hotkeys != nil {
		a.hotkeys.Stop()
	}
	if a.services.Session != nil && a.services.Session.Active() {
		a.services.Session.Stop()
	}
}

// Status reports current runtime state.
func (a *App) Status() domain.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.Status{
		State:  a.state,
		Mode:   a.mode,
		Active: a.sessionActive.Load(),
	}
}

func (a *App) onStartRecording() {
	if !a.sessionActive.CompareAndSwap(false, true) {
		a.log.Debug().Msg("start ignored, session already running")
		return
	}

	// Focus must be captured before anything steals it, and devices
	// must be in dictation position before capture opens the mic.
	a.services.Paster.RememberActiveWindow()
	go a.runSession()
}

func (a *App) onStopRecording() {
	a.services.Session.Stop()
}

func (a *App) onModeChange(mode domain.RecordingMode) {
	a.mu.Lock()
	a.mode = mode
	a.mu.Unlock()
	a.log.Debug().Str("mode", string(mode)).Msg("recording mode changed")
}

func (a *App) runSession() {
	defer a.sessionActive.Store(false)

	a.services.Devices.StartRecordingSwitch()
	a.setState(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)

	buffer, start := a.services.Session.Run()

	a.setState(domain.SessionStateStopping, domain.SessionReasonTranscribing)
	a.services.Devices.StopRecordingSwitch()

	if buffer == nil {
		a.log.Warn().Msg("no audio captured")
		a.sink.SessionError(domain.ErrorCodeAudioStop, "no audio captured")
		a.services.Notifier.Notify("VoxKey", "No audio was captured")
		a.setState(domain.SessionStateIdle, domain.SessionReasonNoAudio)
		return
	}

	a.lastDuration.Store(time.Since(start).Milliseconds())
	if !a.services.Transcriber.Submit(buffer) {
		a.setState(domain.SessionStateIdle, domain.SessionReasonTranscriptionFailed)
	}
}

func (a *App) setState(state domain.SessionState, reason domain.SessionStateReason) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
	if a.sink != nil {
		a.sink.SessionStateChanged(state, reason)
	}
}

// TranscriptionStarted implements the pipeline event contract.
func (a *App) TranscriptionStarted() {
	a.setState(domain.SessionStateTranscribing, domain.SessionReasonTranscribing)
	a.sink.TranscriptionStarted()
}

// TranscriptionProgress implements the pipeline event contract.
func (a *App) TranscriptionProgress(text string, confidence float64) {
	a.sink.TranscriptionProgress(text, confidence)
}

// FinalResult lands the finished text: history, clipboard, paste. Paste
// failure still leaves the text on the clipboard and tells the user.
func (a *App) FinalResult(result domain.TranscriptionResult) {
	a.sink.FinalResult(result)

	mode := a.currentMode()
	if _, err := a.services.History.AddEntry(result.Text, int(a.lastDuration.Load()), mode); err != nil {
		a.log.Warn().Err(err).Msg("could not record history entry")
		a.sink.SessionError(domain.ErrorCodeHistory, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), pasteTimeout)
	defer cancel()
	if err := a.services.Paster.Paste(ctx, result.Text, result.Context); err != nil {
		a.log.Error().Err(err).Msg("paste failed")
		a.sink.SessionError(domain.ErrorCodePaste, err.Error())
		a.services.Notifier.Notify("VoxKey - Paste Ready",
			"Text copied to clipboard. Press Ctrl+Shift+V to paste.")
		a.setState(domain.SessionStateIdle, domain.SessionReasonPasteFailed)
		return
	}
	a.setState(domain.SessionStateIdle, domain.SessionReasonTranscriptPasted)
}

// CleanupStarted implements the pipeline event contract.
func (a *App) CleanupStarted() {
	a.sink.CleanupStarted()
}

// CleanupFinished implements the pipeline event contract.
func (a *App) CleanupFinished(text string) {
	a.sink.CleanupFinished(text)
}

// TranscriptionError implements the pipeline event contract.
func (a *App) TranscriptionError(message string) {
	a.sink.SessionError(domain.ErrorCodeTranscription, message)
	a.services.Notifier.Notify("VoxKey", message)
	reason := domain.SessionReasonTranscriptionFailed
	if message == "No speech detected" {
		reason = domain.SessionReasonNoSpeech
	}
	a.setState(domain.SessionStateError, reason)
}

// TranscriptionFinished implements the pipeline event contract. Always
// fires exactly once per accepted buffer, so the state reliably leaves
// the transcribing phase.
func (a *App) TranscriptionFinished() {
	a.sink.TranscriptionFinished()
	a.mu.Lock()
	if a.state == domain.SessionStateTranscribing || a.state == domain.SessionStateError {
		a.state = domain.SessionStateIdle
	}
	a.mu.Unlock()
}

func (a *App) currentMode() domain.RecordingMode {
	if a.hotkeys != nil {
		if mode := a.hotkeys.CurrentMode(); mode != domain.ModeIdle {
			return mode
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == domain.ModeIdle {
		return domain.ModeHoldToTalk
	}
	return a.mode
}

// loggingSink renders pipeline events into structured logs. It keeps
// event consumption away from the emitting goroutines' control flow.
type loggingSink struct {
	log      zerolog.Logger
	notifier ports.Notifier
}

func (s *loggingSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.log.Info().Str("state", string(state)).Str("reason", string(reason)).Msg("session state")
}

func (s *loggingSink) TranscriptionStarted() {
	s.log.Debug().Msg("transcription started")
}

func (s *loggingSink) TranscriptionProgress(text string, confidence float64) {
	s.log.Debug().Str("text", text).Float64("confidence", confidence).Msg("partial transcript")
}

func (s *loggingSink) FinalResult(result domain.TranscriptionResult) {
	s.log.Info().
		Str("context", string(result.Context)).
		Int("chars", len(result.Text)).
		Msg("transcription result")
}

func (s *loggingSink) TranscriptionFinished() {
	s.log.Debug().Msg("transcription finished")
}

func (s *loggingSink) CleanupStarted() {
	s.log.Debug().Msg("cleanup started")
}

func (s *loggingSink) CleanupFinished(text string) {
	s.log.Debug().Int("chars", len(text)).Msg("cleanup finished")
}

func (s *loggingSink) SessionError(code domain.ErrorCode, detail string) {
	s.log.Error().Str("code", string(code)).Str("detail", detail).Msg("session error")
}
