package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// MicSourceConfig selects the capture device and sample rate.
type MicSourceConfig struct {
	// FFmpegPath defaults to "ffmpeg" on PATH.
	FFmpegPath string

	// Device is the avfoundation audio device index on darwin, or the
	// pulse source name on linux ("default" when empty).
	Device string

	// SampleRateHz defaults to 16000.
	SampleRateHz int

	// CmdOverride, when set, replaces the built ffmpeg invocation and
	// runs via /bin/sh -lc. The command must write raw f32le mono
	// samples at SampleRateHz to stdout.
	CmdOverride string
}

// MicSource captures microphone audio through an ffmpeg subprocess and
// delivers normalized float32 samples to a single consumer.
type MicSource struct {
	cfg MicSourceConfig

	mu       sync.Mutex
	consumer func(samples []float32)
	cmd      *exec.Cmd
	cancel   context.CancelFunc
}

// NewMicSource returns a source that starts capturing on Start.
func NewMicSource(cfg MicSourceConfig) *MicSource {
	if strings.TrimSpace(cfg.FFmpegPath) == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = 16000
	}
	return &MicSource{cfg: cfg}
}

// SetConsumer registers the receiver of captured samples. Without a
// consumer, samples are dropped.
func (m *MicSource) SetConsumer(fn func(samples []float32)) {
	m.mu.Lock()
	m.consumer = fn
	m.mu.Unlock()
}

func (m *MicSource) buildCmd(ctx context.Context) *exec.Cmd {
	if strings.TrimSpace(m.cfg.CmdOverride) != "" {
		return exec.CommandContext(ctx, "/bin/sh", "-lc", m.cfg.CmdOverride)
	}
	rate := fmt.Sprintf("%d", m.cfg.SampleRateHz)
	var args []string
	if runtime.GOOS == "darwin" {
		dev := m.cfg.Device
		if strings.TrimSpace(dev) == "" {
			dev = "0"
		}
		args = []string{
			"-hide_banner",
			"-loglevel", "error",
			"-f", "avfoundation",
			// `none:<audioIndex>` avoids opening a video device.
			"-i", "none:" + dev,
		}
	} else {
		dev := m.cfg.Device
		if strings.TrimSpace(dev) == "" {
			dev = "default"
		}
		args = []string{
			"-hide_banner",
			"-loglevel", "error",
			"-f", "pulse",
			"-i", dev,
		}
	}
	args = append(args,
		"-ac", "1",
		"-ar", rate,
		"-f", "f32le",
		"-",
	)
	return exec.CommandContext(ctx, m.cfg.FFmpegPath, args...)
}

// Start spawns the capture process and begins delivering samples until
// ctx is cancelled or Close is called. It returns once capture is
// running; read errors after that surface on the returned channel.
func (m *MicSource) Start(ctx context.Context) (<-chan error, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := m.buildCmd(ctx)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start mic capture: %w", err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.cancel = cancel
	m.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			_ = cmd.Process.Kill()
			_, _ = cmd.Process.Wait()
		}()
		errCh <- m.readLoop(ctx, stdout)
	}()
	return errCh, nil
}

// readLoop decodes whole f32le samples from r and hands them to the
// consumer. Bytes straddling a read boundary carry over to the next
// iteration.
func (m *MicSource) readLoop(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReaderSize(r, 64*1024)
	carry := make([]byte, 0, 4)
	tmp := make([]byte, 16*1024)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := reader.Read(tmp)
		if n > 0 {
			data := tmp[:n]
			if len(carry) > 0 {
				data = append(carry, data...)
			}
			whole := len(data) / 4 * 4
			if whole > 0 {
				m.deliver(data[:whole])
			}
			carry = append(carry[:0], data[whole:]...)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

func (m *MicSource) deliver(raw []byte) {
	m.mu.Lock()
	fn := m.consumer
	m.mu.Unlock()
	if fn == nil {
		return
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	fn(samples)
}

// Close stops the capture process. Safe to call multiple times.
func (m *MicSource) Close() error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.cmd = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// ListMicDevices prints the machine's capture devices via ffmpeg.
// Only darwin enumerates devices this way; linux users can query
// `pactl list sources` directly.
func ListMicDevices(ffmpegPath string) error {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if runtime.GOOS != "darwin" {
		return fmt.Errorf("device listing via ffmpeg is only supported on darwin")
	}
	cmd := exec.Command(ffmpegPath, "-f", "avfoundation", "-list_devices", "true", "-i", "")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// ffmpeg exits nonzero after listing; the output is what matters.
	_ = cmd.Run()
	return nil
}
