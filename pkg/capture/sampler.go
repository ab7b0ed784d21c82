package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

const (
	defaultSampleInterval = 2 * time.Second
	defaultRetryDelay     = 500 * time.Millisecond
	defaultScale          = 0.5
	defaultJPEGQuality    = 80
)

// SamplerConfig tunes the snapshot cadence and output size.
type SamplerConfig struct {
	// Interval between successful samples. Defaults to 2s.
	Interval time.Duration

	// RetryDelay applies when the source has not yet reported nonzero
	// dimensions. Defaults to 500ms.
	RetryDelay time.Duration

	// Scale is the linear downscale factor in (0, 1]. Defaults to 0.5.
	Scale float64

	// JPEGQuality in [1, 100]. Defaults to 80.
	JPEGQuality int

	// Logger for sampling failures. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c *SamplerConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = defaultSampleInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.Scale <= 0 || c.Scale > 1 {
		c.Scale = defaultScale
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = defaultJPEGQuality
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Sampler periodically captures a downscaled JPEG snapshot from a
// FrameSource and hands the encoded bytes to a single consumer. Each
// tick's work completes before the next tick is scheduled, so sampling
// never reenters concurrently.
type Sampler struct {
	src FrameSource
	cfg SamplerConfig

	mu       sync.Mutex
	consumer func(jpegData []byte)
}

// NewSampler returns a Sampler reading from src. It does not start
// sampling until Run is called.
func NewSampler(src FrameSource, cfg SamplerConfig) *Sampler {
	cfg.applyDefaults()
	return &Sampler{src: src, cfg: cfg}
}

// SetConsumer registers the receiver of encoded snapshots. Without a
// consumer, snapshots are dropped.
func (s *Sampler) SetConsumer(fn func(jpegData []byte)) {
	s.mu.Lock()
	s.consumer = fn
	s.mu.Unlock()
}

// Run samples until ctx is cancelled. The first sample is attempted
// immediately. Run returns ctx.Err() on cancellation.
func (s *Sampler) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		data, err := s.SampleOnce()
		switch {
		case err == errNotReady:
			timer.Reset(s.cfg.RetryDelay)
			continue
		case err != nil:
			s.cfg.Logger.Warn("frame sample failed", "error", err)
		default:
			s.mu.Lock()
			fn := s.consumer
			s.mu.Unlock()
			if fn != nil {
				fn(data)
			}
		}
		timer.Reset(s.cfg.Interval)
	}
}

var errNotReady = fmt.Errorf("capture: source has no dimensions yet")

// SampleOnce grabs, downscales and encodes a single frame. It returns
// errNotReady while the source still reports zero dimensions.
func (s *Sampler) SampleOnce() ([]byte, error) {
	frame, err := s.src.Frame()
	if err != nil {
		return nil, err
	}
	b := frame.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errNotReady
	}

	w := int(float64(b.Dx()) * s.cfg.Scale)
	h := int(float64(b.Dy()) * s.cfg.Scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), frame, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: s.cfg.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}
