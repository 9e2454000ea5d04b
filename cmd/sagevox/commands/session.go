package commands

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagevox/sagevox-go/pkg/book"
	"github.com/sagevox/sagevox-go/pkg/journal"
	"github.com/sagevox/sagevox-go/pkg/voicesession"
)

var sessionFlags struct {
	bookID  string
	chapter int
	offset  float64
	voice   string
	micFile string
	outFile string
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Voice sessions (run, monitor)",
}

var sessionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a live voice session from the terminal",
	Long: `Connects a voice session for the given book position and streams
events to stdout until interrupted. Microphone audio comes from --mic-file
(raw 16-bit mono 16kHz PCM) or silence; agent audio goes to --out-file or is
discarded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), false)
	},
}

var sessionMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run a session with a live state and level display",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), true)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{sessionRunCmd, sessionMonitorCmd} {
		cmd.Flags().StringVar(&sessionFlags.bookID, "book", "", "book id (required)")
		cmd.Flags().IntVar(&sessionFlags.chapter, "chapter", 1, "current chapter")
		cmd.Flags().Float64Var(&sessionFlags.offset, "offset", 0, "offset into the chapter, seconds")
		cmd.Flags().StringVar(&sessionFlags.voice, "voice", "", "narrator voice override")
		cmd.Flags().StringVar(&sessionFlags.micFile, "mic-file", "", "raw PCM file used as microphone input")
		cmd.Flags().StringVar(&sessionFlags.outFile, "out-file", "", "file receiving agent audio (raw 24kHz PCM)")
		cmd.MarkFlagRequired("book")
	}
	sessionCmd.AddCommand(sessionRunCmd, sessionMonitorCmd)
	rootCmd.AddCommand(sessionCmd)
}

// sessionHost bundles everything a running session needs.
type sessionHost struct {
	controller *voicesession.Controller
	transport  *voicesession.Transport
	engine     *voicesession.Engine
	journal    journal.Journal
	book       *book.Book
	cleanup    []func()
}

func (h *sessionHost) close() {
	h.controller.Close()
	h.transport.Close()
	for i := len(h.cleanup) - 1; i >= 0; i-- {
		h.cleanup[i]()
	}
}

func newSessionHost(ctx context.Context, cfg *Config) (*sessionHost, error) {
	base, err := requireBackend(cfg)
	if err != nil {
		return nil, err
	}

	lib := &book.Client{BaseURL: base}
	b, err := lib.Get(ctx, sessionFlags.bookID)
	if err != nil {
		return nil, fmt.Errorf("fetch book: %w", err)
	}
	if voice := cmp.Or(sessionFlags.voice, cfg.Voice); voice != "" {
		b.NarratorVoice = voice
	}

	h := &sessionHost{book: b}

	var render writerRender
	if sessionFlags.outFile != "" {
		f, err := os.Create(sessionFlags.outFile)
		if err != nil {
			return nil, fmt.Errorf("create out file: %w", err)
		}
		render.w = f
		h.cleanup = append(h.cleanup, func() { f.Close() })
	}

	h.engine = voicesession.NewEngine(voicesession.EngineOptions{
		Router:  noopRouter{},
		Capture: newFileCapture(sessionFlags.micFile),
		Render:  &render,
	})

	var dialer voicesession.RoomDialer
	switch cfg.Transport {
	case "ws":
		dialer = &voicesession.WebSocketDialer{HandshakeTimeout: 10 * time.Second}
	case "webrtc", "":
		dialer = &voicesession.WebRTCDialer{}
	default:
		return nil, fmt.Errorf("unknown transport %q (want webrtc or ws)", cfg.Transport)
	}

	h.transport = voicesession.NewTransport(voicesession.TransportOptions{
		Issuer: &voicesession.HTTPTokenIssuer{BaseURL: base},
		Dialer: dialer,
	})

	if cfg.DataDir != "" {
		j, err := journal.OpenBadger(journal.BadgerOptions{Dir: cfg.DataDir})
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		h.journal = j
		h.cleanup = append(h.cleanup, func() { j.Close() })
	} else {
		h.journal = journal.NewMemory()
	}

	h.controller = voicesession.NewController(voicesession.ControllerOptions{
		Engine:    h.engine,
		Transport: h.transport,
		Gate:      grantAllGate{},
		Source: &staticSource{snap: voicesession.PlaybackSnapshot{
			Book:       b,
			Chapter:    sessionFlags.chapter,
			TimeOffset: sessionFlags.offset,
		}},
		Recorder: &journal.Recorder{Journal: h.journal},
	})
	return h, nil
}

// staticSource serves the position given on the command line. A real host
// snapshots its live player instead.
type staticSource struct {
	snap voicesession.PlaybackSnapshot
}

func (s *staticSource) Snapshot() voicesession.PlaybackSnapshot { return s.snap }

func runSession(ctx context.Context, monitor bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	host, err := newSessionHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer host.close()

	if err := host.controller.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if monitor {
		return monitorLoop(ctx, host)
	}
	return eventLoop(ctx, host)
}

// eventLoop streams session events as log lines until interrupted.
func eventLoop(ctx context.Context, host *sessionHost) error {
	fmt.Printf("session started: %s chapter %d\n", host.book.Title, sessionFlags.chapter)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nending voice turn...")
			host.controller.ResumePlayback()
			return nil
		case ev := <-host.controller.Events():
			switch ev := ev.(type) {
			case *voicesession.StateChanged:
				if ev.State.Message != "" {
					fmt.Printf("state: %s (%s)\n", ev.State.Phase, ev.State.Message)
				} else {
					fmt.Printf("state: %s agentSpeaking=%v\n", ev.State.Phase, ev.State.AgentSpeaking)
				}
				if ev.State.Phase == voicesession.PhaseResuming || ev.State.Phase == voicesession.PhaseError {
					return nil
				}
			case *voicesession.PlaybackCommand:
				fmt.Printf("command: %s %+v\n", ev.Command.CommandType(), ev.Command)
			}
		}
	}
}
