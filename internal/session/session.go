package session

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	pollInterval       = 50 * time.Millisecond
	defaultMinDuration = 500 * time.Millisecond
)

// Recorder is the capture lifecycle the session supervises.
type Recorder interface {
	Start() error
	Stop() []float32
	IsRecording() bool
}

// Session supervises a single recording from start request to collected
// buffer. It polls rather than waiting on events so that a stop request
// arriving within the first moments of capture (an accidental hotkey
// tap) still yields at least the minimum duration of audio.
type Session struct {
	recorder    Recorder
	minDuration time.Duration
	log         zerolog.Logger

	shouldStop atomic.Bool
	running    atomic.Bool
	startTime  atomic.Int64
}

func New(recorder Recorder, minDuration time.Duration, log zerolog.Logger) *Session {
	if minDuration <= 0 {
		minDuration = defaultMinDuration
	}
	return &Session{
		recorder:    recorder,
		minDuration: minDuration,
		log:         log.With().Str("component", "session").Logger(),
	}
}

// Run starts the recorder and blocks until the session ends, returning
// the captured buffer (nil when nothing was recorded) and the session
// start time. The session ends when the recorder stops capturing on its
// own, or when Stop was requested and the minimum duration has elapsed.
func (s *Session) Run() ([]float32, time.Time) {
	s.shouldStop.Store(false)
	start := time.Now()
	s.startTime.Store(start.UnixNano())
	s.running.Store(true)
	defer s.running.Store(false)

	if err := s.recorder.Start(); err != nil {
		s.log.Error().Err(err).Msg("recorder start failed")
		return nil, start
	}

	for {
		time.Sleep(pollInterval)
		if !s.recorder.IsRecording() {
			break
		}
		if s.shouldStop.Load() && time.Since(start) >= s.minDuration {
			break
		}
	}

	buffer := s.recorder.Stop()
	s.log.Debug().
		Dur("elapsed", time.Since(start)).
		Int("samples", len(buffer)).
		Msg("session ended")
	return buffer, start
}

// Stop requests the session to end. It only sets a flag; the run loop
// decides when capture actually stops, which keeps "user asked to stop"
// decoupled from "capture ended" and enforces the minimum duration.
func (s *Session) Stop() {
	s.shouldStop.Store(true)
}

// Active reports whether a session run loop is in progress.
func (s *Session) Active() bool {
	return s.running.Load()
}

// StartedAt returns the start time of the current or most recent run.
func (s *Session) StartedAt() time.Time {
	return time.Unix(0, s.startTime.Load())
}
