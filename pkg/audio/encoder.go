package audio

import "sync"

// Encoder turns a continuous microphone signal into fixed-size 16-bit
// PCM frames. Write is called from the capture goroutine; the consumer
// callback receives complete frames on that same goroutine and must
// hand them off (for example onto a channel) rather than block.
//
// Frames are only ever emitted whole: leftover samples stay buffered
// until the next Write completes them, so the residual is always
// smaller than one chunk.
type Encoder struct {
	chunkSamples int

	mu       sync.Mutex
	buf      []float32
	consumer func(pcm []byte)
}

// NewEncoder creates an Encoder emitting ChunkSamples-sized frames.
func NewEncoder() *Encoder {
	return &Encoder{chunkSamples: ChunkSamples}
}

// SetConsumer registers the single downstream consumer. With no
// consumer registered, completed frames are silently dropped.
func (e *Encoder) SetConsumer(fn func(pcm []byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consumer = fn
}

// Write appends samples to the internal buffer and emits one frame per
// complete chunk, oldest samples first.
func (e *Encoder) Write(samples []float32) {
	if len(samples) == 0 {
		return
	}

	var frames [][]byte
	e.mu.Lock()
	e.buf = append(e.buf, samples...)
	for len(e.buf) >= e.chunkSamples {
		frames = append(frames, EncodePCM16(e.buf[:e.chunkSamples]))
		e.buf = e.buf[e.chunkSamples:]
	}
	if len(e.buf) == 0 {
		e.buf = nil
	}
	consumer := e.consumer
	e.mu.Unlock()

	if consumer == nil {
		return
	}
	for _, frame := range frames {
		consumer(frame)
	}
}

// Buffered reports the residual sample count awaiting a full chunk.
func (e *Encoder) Buffered() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buf)
}
