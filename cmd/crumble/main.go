// crumble runs a live UX review session in the terminal: it shares the
// screen and microphone with the model, plays spoken feedback back and
// archives the transcript. It also renders reports from past sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crumble-dev/crumble/internal/app"
	"github.com/crumble-dev/crumble/internal/dotenv"
	"github.com/crumble-dev/crumble/pkg/audio"
	"github.com/crumble-dev/crumble/pkg/capture"
	"github.com/crumble-dev/crumble/pkg/gemlive"
	"github.com/crumble-dev/crumble/pkg/record"
	"github.com/crumble-dev/crumble/pkg/report"
	"github.com/crumble-dev/crumble/pkg/session"
	"github.com/crumble-dev/crumble/pkg/token"
)

type options struct {
	server        string
	model         string
	micDevice     string
	micCmd        string
	display       string
	ffmpegPath    string
	ffplayPath    string
	speakerVolume int
	noSpeaker     bool
	dumpAudio     string
	debug         bool

	listMicDevices bool
	history        bool
	reportID       string
	reportOut      string
	exportID       string
	summarizeID    string
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	if err := dotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		return 2
	}

	var opt options
	flag.StringVar(&opt.server, "server", "http://localhost:3000", "Token server base URL")
	flag.StringVar(&opt.model, "model", gemlive.DefaultModel, "Live model")
	flag.StringVar(&opt.micDevice, "mic-device", "", "Mic device (avfoundation index on darwin, pulse source on linux)")
	flag.StringVar(&opt.micCmd, "mic-cmd", "", "Override mic capture command (runs via /bin/sh -lc)")
	flag.StringVar(&opt.display, "display", "", "X11 display to capture (default: $DISPLAY)")
	flag.StringVar(&opt.ffmpegPath, "ffmpeg-path", "ffmpeg", "Path to ffmpeg executable")
	flag.StringVar(&opt.ffplayPath, "ffplay-path", "ffplay", "Path to ffplay executable")
	flag.IntVar(&opt.speakerVolume, "speaker-volume", 80, "ffplay startup volume 0=min 100=max")
	flag.BoolVar(&opt.noSpeaker, "no-speaker", false, "Do not spawn ffplay; discard synthesized audio")
	flag.StringVar(&opt.dumpAudio, "dump-audio", "", "If set, also write synthesized speech to this WAV file")
	flag.BoolVar(&opt.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&opt.listMicDevices, "list-mic-devices", false, "List microphone devices via ffmpeg and exit")
	flag.BoolVar(&opt.history, "history", false, "List archived sessions and exit")
	flag.StringVar(&opt.reportID, "report", "", "Write an HTML report for a session id (or 'latest') and exit")
	flag.StringVar(&opt.reportOut, "o", "report.html", "Output path for -report")
	flag.StringVar(&opt.exportID, "export", "", "Print the findings transcript for a session id (or 'latest') and exit")
	flag.StringVar(&opt.summarizeID, "summarize", "", "Generate and attach a summary for a session id (or 'latest') and exit")
	flag.Parse()

	logLevel := slog.LevelWarn
	if opt.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if opt.listMicDevices {
		if err := capture.ListMicDevices(opt.ffmpegPath); err != nil {
			fmt.Fprintln(os.Stderr, "list mic devices:", err)
			return 2
		}
		return 0
	}

	archivePath, err := record.DefaultArchivePath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	archive := record.NewArchive(archivePath)

	switch {
	case opt.history:
		return runHistory(archive)
	case opt.reportID != "":
		return runReport(archive, opt.reportID, opt.reportOut)
	case opt.exportID != "":
		return runExport(archive, opt.exportID)
	case opt.summarizeID != "":
		return runSummarize(archive, opt.summarizeID)
	}
	return runLive(opt, archive, logger)
}

func runLive(opt options, archive *record.Archive, logger *slog.Logger) int {
	sink, closeSink, err := buildSink(opt)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer closeSink()

	scheduler := audio.NewScheduler(sink, audio.SchedulerConfig{
		SampleRateHz: audio.OutputSampleRateHz,
	})
	defer scheduler.Close()

	start := func(ctx context.Context) (*session.LiveSession, error) {
		screen := func() (capture.FrameSource, error) {
			return capture.NewScreenSource(capture.ScreenSourceConfig{
				FFmpegPath: opt.ffmpegPath,
				Display:    opt.display,
			})
		}
		mic := capture.NewMicSource(capture.MicSourceConfig{
			FFmpegPath:   opt.ffmpegPath,
			Device:       opt.micDevice,
			SampleRateHz: audio.InputSampleRateHz,
			CmdOverride:  opt.micCmd,
		})
		return session.Start(ctx, session.Config{
			Token:    &token.Client{BaseURL: opt.server},
			Screen:   screen,
			Mic:      mic,
			Player:   scheduler,
			Recorder: record.NewRecorder(archive),
			Model:    opt.model,
			Logger:   logger,
		})
	}

	program := tea.NewProgram(app.NewModel(start), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "run ui:", err)
		return 1
	}
	return 0
}

// buildSink assembles the playback sink: ffplay, optionally teed into
// a WAV dump, or a discard sink with -no-speaker.
func buildSink(opt options) (audio.Sink, func(), error) {
	var sink audio.Sink
	if opt.noSpeaker {
		sink = discardSink{}
	} else {
		sink = audio.NewSpeaker(audio.SpeakerConfig{
			FFPlayPath: opt.ffplayPath,
			Volume:     opt.speakerVolume,
		})
	}

	if opt.dumpAudio == "" {
		return sink, func() { _ = sink.Close() }, nil
	}

	tee := &teeSink{next: sink}
	closeFn := func() {
		_ = tee.Close()
		if err := writeDump(opt.dumpAudio, tee.pcm); err != nil {
			fmt.Fprintln(os.Stderr, "write audio dump:", err)
		}
	}
	return tee, closeFn, nil
}

func writeDump(path string, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	return os.WriteFile(path, audio.SpeechToWAV(pcm), 0o644)
}

// teeSink copies every chunk for the WAV dump before forwarding it.
type teeSink struct {
	next audio.Sink
	pcm  []byte
}

func (t *teeSink) Write(pcm []byte) error {
	t.pcm = append(t.pcm, pcm...)
	return t.next.Write(pcm)
}

func (t *teeSink) Restart() error { return t.next.Restart() }
func (t *teeSink) Close() error   { return t.next.Close() }

type discardSink struct{}

func (discardSink) Write(pcm []byte) error { return nil }
func (discardSink) Restart() error         { return nil }
func (discardSink) Close() error           { return nil }

// resolveRecord maps an id or "latest" to an archived record.
func resolveRecord(archive *record.Archive, id string) (record.SessionRecord, error) {
	records := archive.Load()
	if len(records) == 0 {
		return record.SessionRecord{}, fmt.Errorf("no archived sessions")
	}
	if strings.EqualFold(id, "latest") {
		return records[0], nil
	}
	for _, rec := range records {
		if rec.ID == id || strings.HasPrefix(rec.ID, id) {
			return rec, nil
		}
	}
	return record.SessionRecord{}, fmt.Errorf("no session with id %q", id)
}

func runHistory(archive *record.Archive) int {
	records := archive.Load()
	if len(records) == 0 {
		fmt.Println("No archived sessions.")
		return 0
	}
	for _, rec := range records {
		summarized := " "
		if rec.Summary != "" {
			summarized = "S"
		}
		fmt.Printf("%s  %s  %s  %2d findings  [%s]\n",
			rec.ID[:8],
			rec.StartTime.Format("2006-01-02 15:04"),
			rec.Duration,
			rec.FeedbackCount(),
			summarized,
		)
	}
	return 0
}

func runReport(archive *record.Archive, id, out string) int {
	rec, err := resolveRecord(archive, id)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	doc, err := report.Document(rec)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := os.WriteFile(out, doc, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "write report:", err)
		return 1
	}
	fmt.Println("Report written to", out)
	return 0
}

func runExport(archive *record.Archive, id string) int {
	rec, err := resolveRecord(archive, id)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	_, _ = io.WriteString(os.Stdout, report.Findings(rec))
	return 0
}

func runSummarize(archive *record.Archive, id string) int {
	rec, err := resolveRecord(archive, id)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "GEMINI_API_KEY is required for -summarize (set it or add it to .env)")
		return 2
	}

	ctx := context.Background()
	summarizer, err := report.NewSummarizer(ctx, apiKey, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	summary, err := summarizer.Summarize(ctx, rec)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := archive.AttachSummary(rec.ID, summary); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(summary)
	return 0
}
