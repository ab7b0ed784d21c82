package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ScreenSource grabs full-screen frames by invoking ffmpeg once per
// frame: x11grab on linux, avfoundation on darwin. The process is short
// lived, so Close has nothing to tear down beyond marking the source
// unusable.
type ScreenSource struct {
	ffmpegPath string
	display    string
	device     int
	closed     bool
}

// ScreenSourceConfig selects the grab target.
type ScreenSourceConfig struct {
	// FFmpegPath defaults to "ffmpeg" on PATH.
	FFmpegPath string

	// Display is the X11 display for linux grabs. Defaults to $DISPLAY,
	// then ":0.0".
	Display string

	// Device is the avfoundation screen device index for darwin grabs.
	Device int
}

// NewScreenSource validates the grab target and returns a source.
func NewScreenSource(cfg ScreenSourceConfig) (*ScreenSource, error) {
	path := cfg.FFmpegPath
	if strings.TrimSpace(path) == "" {
		path = "ffmpeg"
	}
	display := cfg.Display
	if strings.TrimSpace(display) == "" {
		display = os.Getenv("DISPLAY")
	}
	if strings.TrimSpace(display) == "" {
		display = ":0.0"
	}
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		return nil, fmt.Errorf("screen capture not supported on %s", runtime.GOOS)
	}
	return &ScreenSource{ffmpegPath: path, display: display, device: cfg.Device}, nil
}

func (s *ScreenSource) grabArgs() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if runtime.GOOS == "darwin" {
		args = append(args,
			"-f", "avfoundation",
			"-capture_cursor", "1",
			"-i", fmt.Sprintf("%d:none", s.device),
		)
	} else {
		args = append(args,
			"-f", "x11grab",
			"-i", s.display,
		)
	}
	return append(args,
		"-frames:v", "1",
		"-f", "image2",
		"-vcodec", "mjpeg",
		"-",
	)
}

// Frame spawns ffmpeg for a single grab and decodes its output.
func (s *ScreenSource) Frame() (image.Image, error) {
	if s.closed {
		return nil, fmt.Errorf("screen source closed")
	}
	cmd := exec.Command(s.ffmpegPath, s.grabArgs()...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(errOut.String())
		if msg != "" {
			return nil, fmt.Errorf("screen grab: %s", msg)
		}
		return nil, fmt.Errorf("screen grab: %w", err)
	}
	img, err := jpeg.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decode screen grab: %w", err)
	}
	return img, nil
}

// Close marks the source unusable.
func (s *ScreenSource) Close() error {
	s.closed = true
	return nil
}
