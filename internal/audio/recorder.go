package audio

import (
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"voxkey/internal/ports"
)

const (
	// How long Stop waits for the capture goroutine to exit before
	// assuming the audio backend is wedged and forcing cleanup.
	captureJoinTimeout = 1 * time.Second

	// How long forceCleanup waits for the strategy teardown before
	// letting it finish in the background. Keeps the stop path bounded
	// even when the subprocess kill escalation takes its time.
	releaseGrace = 500 * time.Millisecond

	directChunkFrames = 512
)

// captureStrategy produces audio chunks until active() turns false.
// Release tears down whatever resources Capture holds; it must be safe
// to call from another goroutine while Capture is still running.
type captureStrategy interface {
	Capture(push func([]float32), active func() bool) error
	Release()
}

// Recorder is the single-session audio capture state machine. Start and
// Stop are called from the coordinating goroutine; the capture itself
// runs on a background goroutine that owns the audio backend for the
// duration of the session. Each session carries a generation number so
// a capture goroutine that outlives its session (a wedged backend that
// exits late) cannot touch the state of the session that replaced it.
type Recorder struct {
	sampleRate int
	channels   int
	gateway    ports.SoundGateway
	log        zerolog.Logger

	// newStrategy picks the capture backend for the session's default
	// source. Replaceable in tests.
	newStrategy func(source string) captureStrategy

	mu          sync.Mutex
	recording   bool
	generation  uint64
	queue       *chunkQueue
	strategy    captureStrategy
	captureDone chan struct{}
}

func NewRecorder(sampleRate, channels int, gateway ports.SoundGateway, log zerolog.Logger) *Recorder {
	r := &Recorder{
		sampleRate: sampleRate,
		channels:   channels,
		gateway:    gateway,
		log:        log.With().Str("component", "recorder").Logger(),
	}
	r.newStrategy = r.defaultStrategy
	return r
}

// defaultStrategy routes Bluetooth HFP sources through parec; anything
// else records directly from the default input device.
func (r *Recorder) defaultStrategy(source string) captureStrategy {
	if strings.HasPrefix(source, "bluez_input") {
		return newPipedCapture(source, r.sampleRate, r.channels, r.gateway, r.log)
	}
	return newDirectCapture(r.sampleRate, r.channels, r.log)
}

// IsRecording reports whether a capture session is in progress.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start begins a capture session. Calling Start while already recording
// is a no-op. A capture goroutine left over from a previous session
// that never exited is force-cleaned first, so its leaked handles
// cannot block the new stream.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		r.log.Debug().Msg("start ignored, already recording")
		return nil
	}
	r.recording = true
	r.generation++
	gen := r.generation
	prevStrategy := r.strategy
	prevDone := r.captureDone
	r.mu.Unlock()

	if prevDone != nil {
		select {
		case <-prevDone:
		default:
			r.log.Warn().Msg("previous capture still alive, forcing cleanup before restart")
			r.forceCleanup(prevStrategy)
		}
	}

	source := ""
	if r.gateway != nil {
		if s, err := r.gateway.DefaultSource(); err == nil {
			source = s
		} else {
			r.log.Warn().Err(err).Msg("could not query default source")
		}
	}

	queue := newChunkQueue()
	strategy := r.newStrategy(source)
	done := make(chan struct{})

	r.mu.Lock()
	r.queue = queue
	r.strategy = strategy
	r.captureDone = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		active := func() bool {
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.recording && r.generation == gen
		}
		if err := strategy.Capture(queue.Push, active); err != nil {
			r.log.Error().Err(err).Msg("capture ended with error")
			// Only end the session this goroutine still owns; a later
			// Start has moved the recorder on.
			r.mu.Lock()
			if r.generation == gen {
				r.recording = false
			}
			r.mu.Unlock()
		}
	}()

	r.log.Info().Str("source", source).Msg("recording started")
	return nil
}

// Stop ends the session and returns the recorded audio as a mono
// float32 buffer, or nil when nothing was captured. If the capture
// goroutine fails to exit within the join timeout, the backend is
// forcibly cleaned up so the next Start can succeed; whatever chunks
// arrived before the hang are still returned.
func (r *Recorder) Stop() []float32 {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil
	}
	r.recording = false
	queue := r.queue
	strategy := r.strategy
	done := r.captureDone
	r.queue = nil
	r.mu.Unlock()

	select {
	case <-done:
	case <-time.After(captureJoinTimeout):
		r.log.Warn().Msg("capture did not stop in time, forcing cleanup")
		r.forceCleanup(strategy)
	}

	chunks := queue.Drain()
	samples := mixdown(chunks, r.channels)
	r.log.Info().Int("chunks", len(chunks)).Int("samples", len(samples)).Msg("recording stopped")
	return samples
}

// forceCleanup tears the audio backend down hard after an unresponsive
// capture. The strategy teardown runs off the caller's goroutine with a
// bounded wait; a slow subprocess kill finishes in the background while
// the stop path returns. The leaked capture goroutine exits once its
// blocking call fails.
func (r *Recorder) forceCleanup(strategy captureStrategy) {
	if strategy != nil {
		released := make(chan struct{})
		go func() {
			strategy.Release()
			close(released)
		}()
		select {
		case <-released:
		case <-time.After(releaseGrace):
			r.log.Debug().Msg("strategy release still running, continuing in background")
		}
	}
	// Halting all portaudio streams unblocks any read the capture
	// goroutine is stuck in.
	if err := portaudio.Terminate(); err != nil {
		r.log.Debug().Err(err).Msg("portaudio terminate during force cleanup")
	}
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
}

// directCapture records from the default input device through
// portaudio. The library is initialized per session so that a forced
// teardown of a previous session cannot poison this one.
type directCapture struct {
	sampleRate int
	channels   int
	log        zerolog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
}

func newDirectCapture(sampleRate, channels int, log zerolog.Logger) *directCapture {
	return &directCapture{sampleRate: sampleRate, channels: channels, log: log}
}

func (d *directCapture) Capture(push func([]float32), active func() bool) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := portaudio.Terminate(); err != nil {
			d.log.Debug().Err(err).Msg("portaudio terminate")
		}
	}()

	buf := make([]float32, directChunkFrames*d.channels)
	stream, err := portaudio.OpenDefaultStream(d.channels, 0, float64(d.sampleRate), directChunkFrames, buf)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.stream = stream
	d.mu.Unlock()
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return err
	}
	defer func() {
		if err := stream.Stop(); err != nil {
			d.log.Debug().Err(err).Msg("stream stop")
		}
	}()

	for active() {
		if err := stream.Read(); err != nil {
			// Overflows happen when the consumer briefly falls behind;
			// the chunk is still usable.
			if err == portaudio.InputOverflowed {
				d.log.Debug().Msg("input overflowed")
			} else {
				return err
			}
		}
		chunk := make([]float32, len(buf))
		copy(chunk, buf)
		push(chunk)
	}
	return nil
}

func (d *directCapture) Release() {
	d.mu.Lock()
	stream := d.stream
	d.mu.Unlock()
	if stream != nil {
		_ = stream.Abort()
	}
}
