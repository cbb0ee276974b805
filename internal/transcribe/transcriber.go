package transcribe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"voxkey/internal/domain"
	"voxkey/internal/ports"
)

// Cleaner is the asynchronous text-cleanup collaborator.
type Cleaner interface {
	Enabled() bool
	ProcessAsync(rawText string, onDone func(cleaned string, contextType domain.ContextType), onFail func(err error))
}

// Events receives pipeline callbacks. All methods may be invoked from
// worker goroutines.
type Events interface {
	TranscriptionStarted()
	TranscriptionProgress(text string, confidence float64)
	FinalResult(result domain.TranscriptionResult)
	TranscriptionError(message string)
	TranscriptionFinished()
	CleanupStarted()
	CleanupFinished(text string)
}

// Transcriber runs the buffer → text → cleanup pipeline. One request is
// in flight at a time; a second submission while busy is rejected, not
// queued. Every accepted request ends with exactly one
// TranscriptionFinished event, whichever path it took.
type Transcriber struct {
	engine   ports.SpeechToText
	cleaner  Cleaner
	events   Events
	language string
	log      zerolog.Logger

	busy atomic.Bool
}

func New(engine ports.SpeechToText, cleaner Cleaner, events Events, language string, log zerolog.Logger) *Transcriber {
	return &Transcriber{
		engine:   engine,
		cleaner:  cleaner,
		events:   events,
		language: language,
		log:      log.With().Str("component", "transcriber").Logger(),
	}
}

// Busy reports whether a transcription is in flight.
func (t *Transcriber) Busy() bool {
	return t.busy.Load()
}

// Submit starts transcribing a finished audio buffer. Returns false
// when a request is already in flight.
func (t *Transcriber) Submit(buffer []float32) bool {
	if !t.busy.CompareAndSwap(false, true) {
		t.log.Warn().Msg("transcription already in progress, request rejected")
		return false
	}

	t.events.TranscriptionStarted()
	go t.run(buffer)
	return true
}

func (t *Transcriber) run(buffer []float32) {
	var once sync.Once
	finish := func() {
		once.Do(func() {
			t.busy.Store(false)
			t.events.TranscriptionFinished()
		})
	}

	text, err := t.engine.Transcribe(context.Background(), buffer, t.language)
	if err != nil {
		t.log.Error().Err(err).Msg("transcription failed")
		t.events.TranscriptionError("Transcription failed: " + err.Error())
		finish()
		return
	}
	if text == "" {
		t.events.TranscriptionError("No speech detected")
		finish()
		return
	}

	if t.cleaner == nil || !t.cleaner.Enabled() {
		t.events.FinalResult(domain.TranscriptionResult{
			Text:       text,
			Confidence: 1.0,
			Context:    domain.ContextUnknown,
		})
		finish()
		return
	}

	// The raw text is already usable while cleanup runs; surface it as
	// an intermediate result.
	t.events.TranscriptionProgress(text, 1.0)
	t.events.CleanupStarted()
	t.cleaner.ProcessAsync(text,
		func(cleaned string, contextType domain.ContextType) {
			t.events.CleanupFinished(cleaned)
			t.events.FinalResult(domain.TranscriptionResult{
				Text:       cleaned,
				Confidence: 1.0,
				Context:    contextType,
			})
			finish()
		},
		func(err error) {
			// The utterance survives a cleanup failure: fall back to
			// the raw transcription.
			t.log.Warn().Err(err).Msg("cleanup failed, using raw transcription")
			t.events.FinalResult(domain.TranscriptionResult{
				Text:       text,
				Confidence: 1.0,
				Context:    domain.ContextUnknown,
			})
			finish()
		},
	)
}
