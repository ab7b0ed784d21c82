package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"
)

type fakeFrameSource struct {
	mu       sync.Mutex
	calls    int
	notReady int
	width    int
	height   int
}

func (f *fakeFrameSource) Frame() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.notReady {
		return image.NewRGBA(image.Rect(0, 0, 0, 0)), nil
	}
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	return img, nil
}

func (f *fakeFrameSource) Close() error { return nil }

func (f *fakeFrameSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSamplerEncodesDownscaledJPEG(t *testing.T) {
	src := &fakeFrameSource{width: 100, height: 60}
	s := NewSampler(src, SamplerConfig{Scale: 0.5, JPEGQuality: 80})

	data, err := s.SampleOnce()
	if err != nil {
		t.Fatalf("SampleOnce() error = %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if cfg.Width != 50 || cfg.Height != 30 {
		t.Fatalf("snapshot dimensions = %dx%d, want 50x30", cfg.Width, cfg.Height)
	}
}

func TestSamplerNotReadySourceReturnsSentinel(t *testing.T) {
	src := &fakeFrameSource{notReady: 1, width: 10, height: 10}
	s := NewSampler(src, SamplerConfig{})

	if _, err := s.SampleOnce(); err != errNotReady {
		t.Fatalf("SampleOnce() error = %v, want errNotReady", err)
	}
	if _, err := s.SampleOnce(); err != nil {
		t.Fatalf("SampleOnce() after ready error = %v", err)
	}
}

func TestSamplerRetriesUntilSourceReady(t *testing.T) {
	src := &fakeFrameSource{notReady: 3, width: 20, height: 20}
	s := NewSampler(src, SamplerConfig{
		Interval:   20 * time.Millisecond,
		RetryDelay: 2 * time.Millisecond,
	})

	got := make(chan []byte, 1)
	s.SetConsumer(func(data []byte) {
		select {
		case got <- data:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case data := <-got:
		if len(data) == 0 {
			t.Fatalf("consumer received empty snapshot")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot delivered")
	}
	if n := src.callCount(); n < 4 {
		t.Fatalf("source called %d times, want >= 4 (retries before first snapshot)", n)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
}

func TestSamplerFirstSnapshotIsImmediate(t *testing.T) {
	src := &fakeFrameSource{width: 10, height: 10}
	s := NewSampler(src, SamplerConfig{Interval: time.Hour})

	got := make(chan []byte, 1)
	s.SetConsumer(func(data []byte) {
		select {
		case got <- data:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatalf("first snapshot waited on the full interval")
	}
}

func TestSamplerScaleNeverProducesZeroPixels(t *testing.T) {
	src := &fakeFrameSource{width: 1, height: 1}
	s := NewSampler(src, SamplerConfig{Scale: 0.5})

	data, err := s.SampleOnce()
	if err != nil {
		t.Fatalf("SampleOnce() error = %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if cfg.Width != 1 || cfg.Height != 1 {
		t.Fatalf("snapshot dimensions = %dx%d, want 1x1", cfg.Width, cfg.Height)
	}
}

func TestSamplerWithoutConsumerDoesNotBlock(t *testing.T) {
	src := &fakeFrameSource{width: 10, height: 10}
	s := NewSampler(src, SamplerConfig{Interval: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Run() = %v, want context.DeadlineExceeded", err)
	}
	if src.callCount() == 0 {
		t.Fatalf("source never sampled")
	}
}
