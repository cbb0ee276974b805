package audio

import "sync"

// chunkQueue buffers interleaved float32 capture chunks in arrival
// order. The capture goroutine pushes; the stop path drains after the
// capture goroutine has exited, so Drain never races a concurrent Push
// for the same session.
type chunkQueue struct {
	mu     sync.Mutex
	chunks [][]float32
}

func newChunkQueue() *chunkQueue {
	return &chunkQueue{}
}

func (q *chunkQueue) Push(chunk []float32) {
	if len(chunk) == 0 {
		return
	}
	q.mu.Lock()
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()
}

// Drain removes and returns all queued chunks. Non-blocking.
func (q *chunkQueue) Drain() [][]float32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	chunks := q.chunks
	q.chunks = nil
	return chunks
}

func (q *chunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// mixdown concatenates chunks in arrival order and, for multi-channel
// input, averages the channels of each frame into mono.
func mixdown(chunks [][]float32, channels int) []float32 {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total == 0 {
		return nil
	}

	joined := make([]float32, 0, total)
	for _, c := range chunks {
		joined = append(joined, c...)
	}

	if channels <= 1 {
		return joined
	}

	frames := len(joined) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += joined[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
