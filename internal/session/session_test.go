package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRecorder struct {
	recording atomic.Bool
	buffer    []float32
	startErr  error
	stops     atomic.Int32
}

func (r *fakeRecorder) Start() error {
	if r.startErr != nil {
		return r.startErr
	}
	r.recording.Store(true)
	return nil
}

func (r *fakeRecorder) Stop() []float32 {
	r.stops.Add(1)
	r.recording.Store(false)
	return r.buffer
}

func (r *fakeRecorder) IsRecording() bool { return r.recording.Load() }

func TestSessionEnforcesMinimumDuration(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{buffer: []float32{0.1}}
	s := New(rec, 300*time.Millisecond, zerolog.Nop())

	done := make(chan time.Duration, 1)
	go func() {
		start := time.Now()
		s.Run()
		done <- time.Since(start)
	}()

	// Stop immediately, simulating an accidental tap.
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	elapsed := <-done
	if elapsed < 300*time.Millisecond {
		t.Fatalf("session ended after %v, before the minimum duration", elapsed)
	}
	if rec.stops.Load() != 1 {
		t.Fatalf("expected exactly one recorder stop, got %d", rec.stops.Load())
	}
}

func TestSessionReturnsBufferAndStartTime(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{buffer: []float32{0.1, 0.2}}
	s := New(rec, 50*time.Millisecond, zerolog.Nop())

	before := time.Now()
	go func() {
		time.Sleep(80 * time.Millisecond)
		s.Stop()
	}()
	buffer, start := s.Run()

	if len(buffer) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(buffer))
	}
	if start.Before(before.Add(-time.Second)) || start.After(time.Now()) {
		t.Fatalf("implausible start time %v", start)
	}
}

func TestSessionEndsWhenRecorderStopsOnItsOwn(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	s := New(rec, 10*time.Second, zerolog.Nop())

	go func() {
		time.Sleep(80 * time.Millisecond)
		// Capture dies (device unplugged); no Stop request.
		rec.recording.Store(false)
	}()

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after the recorder stopped capturing")
	}
}

func TestSessionStartFailureReturnsNil(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{startErr: errStart}
	s := New(rec, 50*time.Millisecond, zerolog.Nop())

	buffer, _ := s.Run()
	if buffer != nil {
		t.Fatalf("expected nil buffer on start failure, got %v", buffer)
	}
	if s.Active() {
		t.Fatal("session must not report active after a failed run")
	}
}

var errStart = &startError{}

type startError struct{}

func (*startError) Error() string { return "device busy" }
