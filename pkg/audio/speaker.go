package audio

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// SpeakerConfig configures the ffplay-backed playback sink.
type SpeakerConfig struct {
	FFPlayPath   string // default: "ffplay"
	SampleRateHz int    // default: OutputSampleRateHz
	Channels     int    // default: 1
	LogLevel     string // default: "error"
	Volume       int    // 0..100, default: 80
}

// Speaker plays raw 16-bit PCM through an ffplay subprocess reading
// from stdin. Restart kills the process and spawns a fresh one, which
// drops any audio ffplay had buffered — that is the property Flush
// relies on for interruption cutoff.
type Speaker struct {
	cfg SpeakerConfig

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewSpeaker creates a Speaker. The ffplay process starts lazily on
// the first Write.
func NewSpeaker(cfg SpeakerConfig) *Speaker {
	if strings.TrimSpace(cfg.FFPlayPath) == "" {
		cfg.FFPlayPath = "ffplay"
	}
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = OutputSampleRateHz
	}
	if cfg.Channels <= 0 {
		cfg.Channels = channelsMono
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "error"
	}
	if cfg.Volume <= 0 {
		cfg.Volume = 80
	}
	return &Speaker{cfg: cfg}
}

// Write streams PCM bytes to ffplay, starting it if needed.
func (s *Speaker) Write(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	s.mu.Lock()
	if s.stdin == nil {
		if err := s.startLocked(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	stdin := s.stdin
	s.mu.Unlock()

	_, err := stdin.Write(pcm)
	return err
}

// Restart discards the current ffplay process and its buffered audio
// and starts a new one.
func (s *Speaker) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return s.startLocked()
}

// Close stops the ffplay process.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *Speaker) startLocked() error {
	if s.cmd != nil && s.cmd.Process != nil {
		return nil
	}
	// ffplay does not accept ffmpeg-style `-ac`; channel count goes via
	// `-ch_layout`.
	chLayout := "mono"
	if s.cfg.Channels == 2 {
		chLayout = "stereo"
	}
	args := []string{
		"-hide_banner",
		"-loglevel", s.cfg.LogLevel,
		"-nostats",
		"-volume", fmt.Sprintf("%d", s.cfg.Volume),
		"-nodisp",
		"-f", "s16le",
		"-ch_layout", chLayout,
		"-ar", fmt.Sprintf("%d", s.cfg.SampleRateHz),
		"-i", "-",
	}
	cmd := exec.Command(s.cfg.FFPlayPath, args...)
	if runtime.GOOS == "darwin" && os.Getenv("SDL_AUDIODRIVER") == "" {
		// SDL can pick a silent dummy audio backend on macOS; prefer
		// CoreAudio unless the user overrides it.
		cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER=coreaudio")
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return err
	}
	s.cmd = cmd
	s.stdin = stdin
	go func(c *exec.Cmd) {
		_ = c.Wait()
		s.mu.Lock()
		if s.cmd == c {
			s.cmd = nil
			s.stdin = nil
		}
		s.mu.Unlock()
	}(cmd)
	return nil
}

func (s *Speaker) closeLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
	s.stdin = nil
}
