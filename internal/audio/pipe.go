package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voxkey/internal/ports"
)

// Bluetooth sources are not reliably exposed through the generic audio
// library, so capture goes through the sound server's own recording
// utility instead.
const (
	parecCommand = "parec"

	pipeChunkFrames  = 512
	pipePollInterval = 100 * time.Millisecond
	// Consecutive empty reads tolerated before the stream is treated as
	// ended. Prevents hanging forever on a source that went away.
	pipeMaxEmptyReads = 50

	// How long Release waits after the interrupt before killing the
	// subprocess outright.
	pipeKillGrace = 1200 * time.Millisecond

	// Bluetooth sources need a moment to come up after a profile switch.
	pipeSettleDelay = 500 * time.Millisecond
)

// pipedCapture records from a PulseAudio source by streaming raw PCM
// from a parec subprocess. Used when the default input is a Bluetooth
// source (bluez_input.*). The command and timing knobs are fields so
// tests can substitute a stub process.
type pipedCapture struct {
	source     string
	sampleRate int
	channels   int
	gateway    ports.SoundGateway
	log        zerolog.Logger

	command       string
	pollInterval  time.Duration
	maxEmptyReads int
	killGrace     time.Duration
	settle        time.Duration

	mu      sync.Mutex
	process *os.Process
	stdout  io.ReadCloser
	waitErr <-chan error

	stopOnce sync.Once
}

func newPipedCapture(source string, sampleRate, channels int, gateway ports.SoundGateway, log zerolog.Logger) *pipedCapture {
	return &pipedCapture{
		source:        source,
		sampleRate:    sampleRate,
		channels:      channels,
		gateway:       gateway,
		log:           log,
		command:       parecCommand,
		pollInterval:  pipePollInterval,
		maxEmptyReads: pipeMaxEmptyReads,
		killGrace:     pipeKillGrace,
		settle:        pipeSettleDelay,
	}
}

// Capture activates the source, launches parec and pushes normalized
// float32 chunks while active() holds.
func (p *pipedCapture) Capture(push func([]float32), active func() bool) error {
	p.activateSource()

	if err := p.launch(); err != nil {
		return err
	}
	defer p.Release()

	chunkBytes := pipeChunkFrames * p.channels * 2 // s16le
	reads := p.readChunks(chunkBytes)

	emptyReads := 0
	for active() {
		select {
		case data, ok := <-reads:
			if !ok {
				return nil
			}
			if len(data) == 0 {
				emptyReads++
				if emptyReads > p.maxEmptyReads {
					p.log.Warn().Int("attempts", emptyReads).Msg("no audio data from parec, ending capture")
					return nil
				}
				continue
			}
			emptyReads = 0
			push(decodeS16LE(data))
		case <-time.After(p.pollInterval):
			emptyReads++
			if emptyReads > p.maxEmptyReads {
				p.log.Warn().Int("attempts", emptyReads).Msg("parec produced no data, ending capture")
				return nil
			}
		}
	}
	return nil
}

// activateSource sets the Bluetooth source as default and un-suspends
// it before capture. Each step is independently failure-tolerant; a
// failed activation still attempts the capture.
func (p *pipedCapture) activateSource() {
	if err := p.gateway.SetDefaultSource(p.source); err != nil {
		p.log.Warn().Err(err).Str("source", p.source).Msg("failed to set default source")
	}
	if err := p.gateway.SuspendSource(p.source, false); err != nil {
		p.log.Warn().Err(err).Str("source", p.source).Msg("failed to unsuspend source")
	}

	time.Sleep(p.settle)

	if ok, err := p.gateway.SourceActive(p.source); err == nil && !ok {
		p.log.Warn().Str("source", p.source).Msg("source still suspended before capture")
	}
}

func (p *pipedCapture) launch() error {
	cmd := exec.Command(p.command,
		"--device", p.source,
		"--rate", strconv.Itoa(p.sampleRate),
		"--channels", strconv.Itoa(p.channels),
		"--format", "s16le",
		"--raw",
		"--latency-msec", "50",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create parec stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start parec: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Catch immediate launch failures (bad device, missing binary
	// surfaced late) before entering the read loop.
	select {
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("parec exited before capture started: %w", err)
		}
		return errors.New("parec exited before capture started")
	case <-time.After(200 * time.Millisecond):
	}

	p.mu.Lock()
	p.process = cmd.Process
	p.stdout = stdout
	p.waitErr = waitErr
	p.mu.Unlock()
	return nil
}

// readChunks pumps fixed-size reads from parec's stdout into a channel
// so the capture loop can poll with a timeout instead of blocking.
func (p *pipedCapture) readChunks(chunkBytes int) <-chan []byte {
	p.mu.Lock()
	stdout := p.stdout
	p.mu.Unlock()

	out := make(chan []byte, 8)
	go func() {
		defer close(out)
		for {
			buf := make([]byte, chunkBytes)
			n, err := io.ReadFull(stdout, buf)
			if n > 0 {
				out <- buf[:n]
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// Release terminates the parec subprocess, escalating from interrupt to
// kill. Safe to call from any goroutine, repeatedly.
func (p *pipedCapture) Release() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		process := p.process
		stdout := p.stdout
		waitErr := p.waitErr
		p.mu.Unlock()

		if process == nil {
			return
		}
		_ = process.Signal(os.Interrupt)

		select {
		case <-waitErr:
		case <-time.After(p.killGrace):
			_ = process.Kill()
			<-waitErr
		}

		if stdout != nil {
			_ = stdout.Close()
		}
	})
}

// decodeS16LE converts little-endian signed 16-bit PCM to normalized
// float32 samples.
func decodeS16LE(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		raw := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(raw) / 32768.0
	}
	return samples
}
