package voicesession

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sagevox/sagevox-go/pkg/book"
)

// DefaultHandBackDelay is the pause between transport teardown and
// reconfiguring the device for book playback, giving the transport time to
// release exclusive audio-device ownership.
const DefaultHandBackDelay = 500 * time.Millisecond

// PermissionGate asks the host platform for microphone access.
type PermissionGate interface {
	RequestMicrophone(ctx context.Context) (bool, error)
}

// PlaybackSnapshot is the book player's position at the moment a voice
// session starts.
type PlaybackSnapshot struct {
	Book       *book.Book
	Chapter    int
	TimeOffset float64 // seconds into the chapter
}

// PlaybackSource exposes the external audiobook player's current position.
// The host pauses playback before connecting; the controller only reads.
type PlaybackSource interface {
	Snapshot() PlaybackSnapshot
}

// SessionRecord summarizes one finished voice session.
type SessionRecord struct {
	Room       string
	BookID     string
	Chapter    int
	TimeOffset float64
	StartedAt  time.Time
	Duration   time.Duration
	Cause      string
}

// SessionRecorder persists finished session records. Recording failures are
// logged, never surfaced to the session flow.
type SessionRecorder interface {
	Record(rec SessionRecord) error
}

// Causes recorded when a session ends.
const (
	CauseUserStop        = "user_stop"
	CauseAgentResume     = "agent_resume"
	CauseTransportFailed = "transport_failed"
	CauseRemoteClosed    = "remote_closed"
)

// Ensure all event types implement ControllerEvent.
var (
	_ ControllerEvent = (*StateChanged)(nil)
	_ ControllerEvent = (*PlaybackCommand)(nil)
)

// ControllerEvent is a tagged event on the controller's outbound stream.
type ControllerEvent interface {
	isControllerEvent()
}

// StateChanged reports a controller state transition. The UI renders from
// this stream.
type StateChanged struct {
	State State
}

func (*StateChanged) isControllerEvent() {}

// PlaybackCommand carries one agent command the external book player must
// act on: skips and chapter jumps. resume_playback is handled internally and
// never appears here.
type PlaybackCommand struct {
	Command AgentCommand
}

func (*PlaybackCommand) isControllerEvent() {}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Engine    *Engine
	Transport *Transport
	Gate      PermissionGate
	Source    PlaybackSource

	// Recorder is optional; sessions go unrecorded without one.
	Recorder SessionRecorder

	// ParticipantName is sent to the token endpoint; the backend generates
	// one when empty.
	ParticipantName string

	// HandBackDelay defaults to DefaultHandBackDelay.
	HandBackDelay time.Duration

	// Logger defaults to DefaultLogger().
	Logger Logger
}

// Controller orchestrates one voice session at a time: permission, context
// capture, transport lifecycle, audio plumbing between transport and engine,
// and the playback commands flowing back to the book player.
type Controller struct {
	engine          *Engine
	transport       *Transport
	gate            PermissionGate
	source          PlaybackSource
	recorder        SessionRecorder
	logger          Logger
	participantName string
	handBackDelay   time.Duration

	events chan ControllerEvent
	done   chan struct{}
	stop   sync.Once

	mu            sync.Mutex
	state         State
	session       *activeSession
	connectCancel context.CancelFunc
	resuming      bool
}

type activeSession struct {
	Room       string
	BookID     string
	Chapter    int
	TimeOffset float64
	StartedAt  time.Time
}

// NewController creates a Controller and starts pumping transport and engine
// events. Initial state is connecting.
func NewController(opts ControllerOptions) *Controller {
	c := &Controller{
		engine:          opts.Engine,
		transport:       opts.Transport,
		gate:            opts.Gate,
		source:          opts.Source,
		recorder:        opts.Recorder,
		logger:          opts.Logger,
		participantName: opts.ParticipantName,
		handBackDelay:   opts.HandBackDelay,
		events:          make(chan ControllerEvent, 64),
		done:            make(chan struct{}),
		state:           State{Phase: PhaseConnecting},
	}
	if c.logger == nil {
		c.logger = DefaultLogger()
	}
	if c.handBackDelay <= 0 {
		c.handBackDelay = DefaultHandBackDelay
	}
	go c.pump()
	return c
}

// Events returns the controller's outbound event stream.
func (c *Controller) Events() <-chan ControllerEvent { return c.events }

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) emit(ev ControllerEvent) {
	select {
	case c.events <- ev:
	default:
		c.logger.DebugPrintf("controller event dropped: %T", ev)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.logger.DebugPrintf("state: %s", s.Phase)
	c.emit(&StateChanged{State: s})
}

// Connect starts a voice session. Microphone permission is requested first;
// on denial the controller goes straight to error without touching the
// transport. On grant it snapshots the book position, configures full-duplex
// audio, and connects the transport. Success lands in listening.
func (c *Controller) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if prev := c.connectCancel; prev != nil {
		prev()
	}
	c.connectCancel = cancel
	c.mu.Unlock()

	c.setState(State{Phase: PhaseConnecting})

	granted, err := c.gate.RequestMicrophone(ctx)
	if err == nil && !granted {
		err = ErrPermissionDenied
	}
	if err != nil {
		return c.connectFailed(err)
	}

	snap := c.source.Snapshot()
	payload := BuildContextPayload(snap.Book, snap.Chapter, snap.TimeOffset)

	if err := c.engine.ConfigureSession(RouteVoiceSession); err != nil {
		return c.connectFailed(err)
	}
	if err := c.engine.StartCapture(); err != nil {
		return c.connectFailed(err)
	}

	params := TransportParams{
		ParticipantName: c.participantName,
		Context:         payload,
	}
	if snap.Book != nil {
		params.BookID = snap.Book.ID
		params.Title = snap.Book.Title
		params.Voice = snap.Book.NarratorVoice
	}
	if err := c.transport.Connect(ctx, params); err != nil {
		if stopErr := c.engine.StopCapture(); stopErr != nil {
			c.logger.WarnPrintf("capture stop after failed connect: %v", stopErr)
		}
		return c.connectFailed(err)
	}
	if err := ctx.Err(); err != nil {
		// Disconnect raced the tail of the attempt and owns teardown.
		return err
	}

	c.mu.Lock()
	c.session = &activeSession{
		Room:       c.transport.State().RoomName,
		BookID:     params.BookID,
		Chapter:    snap.Chapter,
		TimeOffset: snap.TimeOffset,
		StartedAt:  time.Now(),
	}
	c.mu.Unlock()

	c.setState(State{Phase: PhaseListening})
	return nil
}

// connectFailed publishes the error state for a failed connect attempt. An
// attempt cancelled locally (Disconnect, ResumePlayback, or a newer Connect)
// aborts silently; the canceller owns the final state.
func (c *Controller) connectFailed(err error) error {
	if !errors.Is(err, context.Canceled) {
		c.setState(State{Phase: PhaseError, Message: userMessage(err)})
	}
	return err
}

// Disconnect cancels any in-flight connect, tears down the transport, and
// resets to connecting, ready for reuse. If a hand-back sequence is in
// progress the resuming state is preserved so the book player still gets its
// cue.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	preserve := c.resuming || c.state.Phase == PhaseResuming
	cancel := c.connectCancel
	c.connectCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	c.finishSession(CauseUserStop)
	c.transport.Disconnect()
	if err := c.engine.StopCapture(); err != nil {
		c.logger.WarnPrintf("capture stop: %v", err)
	}
	c.engine.StopPlayback()

	if !preserve {
		c.setState(State{Phase: PhaseConnecting})
	}
}

// ResumePlayback ends the voice turn and hands the audio device back to the
// book player: record the session, tear down the transport, wait for the
// device to be released, reconfigure for playback, then enter resuming. The
// external player observes the resuming state and restarts playback itself.
func (c *Controller) ResumePlayback() {
	c.resumePlayback(CauseUserStop)
}

func (c *Controller) resumePlayback(cause string) {
	c.mu.Lock()
	if c.resuming {
		c.mu.Unlock()
		return
	}
	c.resuming = true
	cancel := c.connectCancel
	c.connectCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	c.finishSession(cause)
	c.transport.Disconnect()
	if err := c.engine.StopCapture(); err != nil {
		c.logger.WarnPrintf("capture stop: %v", err)
	}
	c.engine.StopPlayback()

	// Let the transport fully release the audio device before rerouting.
	time.Sleep(c.handBackDelay)

	if err := c.engine.ConfigureSession(RoutePlayback); err != nil {
		c.logger.WarnPrintf("playback route: %v", err)
	}
	c.setState(State{Phase: PhaseResuming})

	c.mu.Lock()
	c.resuming = false
	c.mu.Unlock()
}

// finishSession records the active session, if any. At most one session is
// active per controller.
func (c *Controller) finishSession(cause string) {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s == nil {
		return
	}
	dur := time.Since(s.StartedAt)
	c.logger.InfoPrintf("session ended: room=%s book=%s duration=%s cause=%s",
		s.Room, s.BookID, dur.Round(time.Millisecond), cause)
	if c.recorder == nil {
		return
	}
	rec := SessionRecord{
		Room:       s.Room,
		BookID:     s.BookID,
		Chapter:    s.Chapter,
		TimeOffset: s.TimeOffset,
		StartedAt:  s.StartedAt,
		Duration:   dur,
		Cause:      cause,
	}
	if err := c.recorder.Record(rec); err != nil {
		c.logger.WarnPrintf("record session: %v", err)
	}
}

// pump plumbs transport and engine events: downlink audio into the render
// queue, uplink frames onto the wire, commands to their handlers.
func (c *Controller) pump() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.transport.Events():
			c.handleTransportEvent(ev)
		case ev := <-c.engine.Events():
			c.handleEngineEvent(ev)
		}
	}
}

func (c *Controller) handleTransportEvent(ev TransportEvent) {
	switch ev := ev.(type) {
	case *TransportAudio:
		c.engine.QueuePlayback(ev.Data)
	case *TransportSpeaking:
		c.mu.Lock()
		listening := c.state.Phase == PhaseListening
		c.mu.Unlock()
		if listening {
			c.setState(State{Phase: PhaseListening, AgentSpeaking: ev.Speaking})
		}
	case *TransportCommand:
		c.handleCommand(ev.Command)
	case *TransportStateChanged:
		c.handleConnectionState(ev.State)
	}
}

func (c *Controller) handleEngineEvent(ev EngineEvent) {
	switch ev := ev.(type) {
	case *FrameCaptured:
		if err := c.transport.SendAudio(ev.Data); err != nil {
			c.logger.WarnPrintf("send audio: %v", err)
		}
	case *EngineError:
		c.logger.WarnPrintf("audio engine: %v", ev.Err)
	case *IOStateChanged:
		c.logger.DebugPrintf("io state: %s", ev.State)
	}
}

func (c *Controller) handleCommand(cmd AgentCommand) {
	switch cmd.(type) {
	case *ResumePlayback:
		c.resumePlayback(CauseAgentResume)
	default:
		c.emit(&PlaybackCommand{Command: cmd})
	}
}

// handleConnectionState reacts to transport transitions that the controller
// did not initiate: a failure lands in error, a remote close while listening
// lands in waiting (session over, ready to reconnect). Teardown paths the
// controller started clear the active session first, so their trailing
// transport events are ignored here.
func (c *Controller) handleConnectionState(s ConnectionState) {
	c.mu.Lock()
	phase := c.state.Phase
	active := c.session != nil
	resuming := c.resuming
	c.mu.Unlock()
	if resuming || !active {
		return
	}

	switch s.Phase {
	case ConnFailed:
		if phase == PhaseListening || phase == PhaseConnecting {
			c.finishSession(CauseTransportFailed)
			if err := c.engine.StopCapture(); err != nil {
				c.logger.WarnPrintf("capture stop: %v", err)
			}
			c.engine.StopPlayback()
			c.setState(State{Phase: PhaseError, Message: userMessage(s.Err)})
		}
	case ConnDisconnected:
		if phase == PhaseListening {
			c.finishSession(CauseRemoteClosed)
			if err := c.engine.StopCapture(); err != nil {
				c.logger.WarnPrintf("capture stop: %v", err)
			}
			c.engine.StopPlayback()
			c.setState(State{Phase: PhaseWaiting})
		}
	}
}

// IsListening reports whether the controller is in the listening phase, and
// if so whether the agent is currently speaking.
func (c *Controller) IsListening() (listening, agentSpeaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase == PhaseListening, c.state.AgentSpeaking
}

// Close disconnects and stops the event pump. The Controller cannot be
// reused afterwards.
func (c *Controller) Close() {
	c.Disconnect()
	c.stop.Do(func() { close(c.done) })
}
