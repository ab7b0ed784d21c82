package audio

import (
	"context"
	"sync"
	"time"
)

// Sink is the playback output a Scheduler feeds. Restart must discard
// anything the sink has buffered and come back ready for new audio; it
// is the hard-cutover primitive behind Flush.
type Sink interface {
	Write(pcm []byte) error
	Restart() error
	Close() error
}

// SchedulerConfig configures playback scheduling.
type SchedulerConfig struct {
	// SampleRateHz of inbound PCM. Default: OutputSampleRateHz.
	SampleRateHz int

	// JitterDelay pushes the first chunk after an idle period slightly
	// into the future so irregular arrival does not cause an immediate
	// underrun. Default: 50ms.
	JitterDelay time.Duration

	// QueueSize bounds the pending cue queue. Default: 64.
	QueueSize int

	// Now is the scheduling clock. Default: time.Now.
	Now func() time.Time

	// OnLevel, when set, receives the peak absolute sample level of
	// each enqueued chunk. Used to drive UI activity display.
	OnLevel func(peak float32)
}

type cue struct {
	gen     int64
	pcm     []byte
	startAt time.Time
}

// Scheduler plays synthesized speech chunks in arrival order with no
// audible gaps. A single monotonically advancing pointer marks where
// the next chunk begins; Flush resets it and restarts the sink so no
// stale audio survives an interruption.
type Scheduler struct {
	cfg  SchedulerConfig
	sink Sink

	mu        sync.Mutex
	nextStart time.Time
	gen       int64

	cues chan cue
	wake chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	errCh     chan error
}

// NewScheduler creates a Scheduler feeding sink and starts its
// dispatch goroutine.
func NewScheduler(sink Sink, cfg SchedulerConfig) *Scheduler {
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = OutputSampleRateHz
	}
	if cfg.JitterDelay <= 0 {
		cfg.JitterDelay = 50 * time.Millisecond
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:    cfg,
		sink:   sink,
		cues:   make(chan cue, cfg.QueueSize),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		errCh:  make(chan error, 1),
	}
	go s.dispatch()
	return s
}

// Enqueue schedules one chunk of 16-bit PCM for playback and returns
// its scheduled start. Chunks play back-to-back: each starts where the
// previous one ends. If the pointer has already passed (idle or
// underrun), the chunk is pushed JitterDelay into the future instead.
// An empty chunk is a no-op.
func (s *Scheduler) Enqueue(pcm []byte) (time.Time, error) {
	if len(pcm) < bytesPerSample {
		return time.Time{}, nil
	}

	if s.cfg.OnLevel != nil {
		var peak float32
		for _, v := range DecodePCM16(pcm) {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
		s.cfg.OnLevel(peak)
	}

	dur := PCMDuration(len(pcm), s.cfg.SampleRateHz)

	s.mu.Lock()
	now := s.cfg.Now()
	if s.nextStart.Before(now) {
		s.nextStart = now.Add(s.cfg.JitterDelay)
	}
	startAt := s.nextStart
	s.nextStart = s.nextStart.Add(dur)
	c := cue{gen: s.gen, pcm: pcm, startAt: startAt}
	s.mu.Unlock()

	select {
	case s.cues <- c:
	case <-s.ctx.Done():
		return time.Time{}, s.ctx.Err()
	}
	return startAt, nil
}

// Flush performs the interruption cutover: the scheduling pointer
// resets to now, every queued cue is discarded, and the sink restarts
// so audio it had already buffered is dropped too.
func (s *Scheduler) Flush() error {
	s.mu.Lock()
	s.gen++
	s.nextStart = time.Time{}
	s.mu.Unlock()

	for {
		select {
		case <-s.cues:
		default:
			select {
			case s.wake <- struct{}{}:
			default:
			}
			return s.sink.Restart()
		}
	}
}

// Err yields asynchronous sink write failures.
func (s *Scheduler) Err() <-chan error {
	return s.errCh
}

// Close stops dispatch and closes the sink. Safe to call repeatedly.
func (s *Scheduler) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.sink.Close()
	})
	return err
}

func (s *Scheduler) dispatch() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case c := <-s.cues:
			if s.stale(c.gen) {
				continue
			}
			if wait := c.startAt.Sub(s.cfg.Now()); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-s.ctx.Done():
					timer.Stop()
					return
				case <-s.wake:
					timer.Stop()
				case <-timer.C:
				}
			}
			if s.stale(c.gen) {
				continue
			}
			if err := s.sink.Write(c.pcm); err != nil {
				select {
				case s.errCh <- err:
				default:
				}
			}
		}
	}
}

func (s *Scheduler) stale(gen int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.gen
}
