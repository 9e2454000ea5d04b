package voicesession

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultConnectTimeout bounds the room connection race.
	DefaultConnectTimeout = 15 * time.Second

	// DefaultSettleDelay is the pause between connecting and sending the
	// first context_update, giving the agent's ingestion pipeline time to
	// be ready.
	DefaultSettleDelay = 500 * time.Millisecond
)

// Ensure all event types implement TransportEvent.
var (
	_ TransportEvent = (*TransportStateChanged)(nil)
	_ TransportEvent = (*TransportAudio)(nil)
	_ TransportEvent = (*TransportSpeaking)(nil)
	_ TransportEvent = (*TransportCommand)(nil)
)

// TransportEvent is a tagged event on the transport's outbound stream.
type TransportEvent interface {
	isTransportEvent()
}

// TransportStateChanged reports a connection state transition.
type TransportStateChanged struct {
	State ConnectionState
}

func (*TransportStateChanged) isTransportEvent() {}

// TransportAudio carries one downlink chunk of agent audio (24 kHz PCM).
type TransportAudio struct {
	Data []byte
}

func (*TransportAudio) isTransportEvent() {}

// TransportSpeaking reports a change in the agent's speaking activity.
type TransportSpeaking struct {
	Speaking bool
}

func (*TransportSpeaking) isTransportEvent() {}

// TransportCommand carries one decoded playback command from the agent.
type TransportCommand struct {
	Command AgentCommand
}

func (*TransportCommand) isTransportEvent() {}

// TransportParams describes one connection attempt.
type TransportParams struct {
	BookID          string
	ParticipantName string
	Title           string
	Voice           string

	// Context is sent once after the settle delay.
	Context *ContextPayload
}

// TransportOptions configures a Transport.
type TransportOptions struct {
	Issuer TokenIssuer
	Dialer RoomDialer

	// ConnectTimeout defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// SettleDelay defaults to DefaultSettleDelay.
	SettleDelay time.Duration

	// Logger defaults to DefaultLogger().
	Logger Logger
}

// Transport manages the lifecycle of the real-time room connection carrying
// bidirectional audio and the reliable control data channel.
//
// Room callbacks fire on arbitrary background goroutines; the Transport
// funnels every state-changing update through one dispatch goroutine, so
// observers always see a total order of states.
type Transport struct {
	issuer         TokenIssuer
	dialer         RoomDialer
	logger         Logger
	connectTimeout time.Duration
	settleDelay    time.Duration

	dispatch chan func()
	done     chan struct{}
	stopOnce sync.Once

	events chan TransportEvent

	mu            sync.Mutex
	state         ConnectionState
	room          Room
	agentSpeaking bool
	connectCancel context.CancelFunc
}

// NewTransport creates a Transport and starts its dispatch loop.
func NewTransport(opts TransportOptions) *Transport {
	t := &Transport{
		issuer:         opts.Issuer,
		dialer:         opts.Dialer,
		logger:         opts.Logger,
		connectTimeout: opts.ConnectTimeout,
		settleDelay:    opts.SettleDelay,
		dispatch:       make(chan func(), 64),
		done:           make(chan struct{}),
		events:         make(chan TransportEvent, 256),
		state:          ConnectionState{Phase: ConnDisconnected},
	}
	if t.logger == nil {
		t.logger = DefaultLogger()
	}
	if t.connectTimeout <= 0 {
		t.connectTimeout = DefaultConnectTimeout
	}
	if t.settleDelay <= 0 {
		t.settleDelay = DefaultSettleDelay
	}
	go t.run()
	return t
}

// run is the single consistent execution context for published state.
func (t *Transport) run() {
	for {
		select {
		case <-t.done:
			return
		case fn := <-t.dispatch:
			fn()
		}
	}
}

// do funnels fn onto the dispatch goroutine.
func (t *Transport) do(fn func()) {
	select {
	case <-t.done:
	case t.dispatch <- fn:
	}
}

// Events returns the transport's outbound event stream.
func (t *Transport) Events() <-chan TransportEvent { return t.events }

// State returns the current connection state.
func (t *Transport) State() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsAgentSpeaking reports the remote agent's speaking activity. Meaningful
// only while connected.
func (t *Transport) IsAgentSpeaking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.agentSpeaking
}

func (t *Transport) emit(ev TransportEvent) {
	select {
	case t.events <- ev:
	default:
		t.logger.DebugPrintf("transport event dropped: %T", ev)
	}
}

// setState transitions the connection state on the dispatch goroutine.
// Exact repeats are collapsed; a same-phase transition carrying a different
// error (a second failure with a new cause) is still published.
func (t *Transport) setState(s ConnectionState) {
	t.do(func() {
		t.mu.Lock()
		if t.state.Phase == s.Phase && t.state.RoomName == s.RoomName && t.state.Err == s.Err {
			t.mu.Unlock()
			return
		}
		t.state = s
		if s.Phase != ConnConnected {
			t.agentSpeaking = false
		}
		t.mu.Unlock()
		t.emit(&TransportStateChanged{State: s})
	})
}

// Connect authenticates with the token issuer, opens the room connection
// racing the connect timeout, enables the microphone publish track, and
// sends one context_update after the settle delay.
//
// Calling Connect again restarts the state machine from connecting and
// cancels any outstanding attempt.
func (t *Transport) Connect(ctx context.Context, params TransportParams) error {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	if prev := t.connectCancel; prev != nil {
		prev()
	}
	t.connectCancel = cancel
	t.mu.Unlock()

	t.setState(ConnectionState{Phase: ConnConnecting})

	tok, err := t.issuer.IssueToken(ctx, TokenRequest{
		BookID:          params.BookID,
		ParticipantName: params.ParticipantName,
		Title:           params.Title,
		Voice:           params.Voice,
	})
	if err != nil {
		return t.connectFailed(err)
	}

	roomName := tok.Room
	if roomName == "" {
		roomName = "book-" + params.BookID
	}

	room, err := t.dialRoom(ctx, tok, roomName)
	if err != nil {
		return t.connectFailed(err)
	}

	t.mu.Lock()
	if ctx.Err() != nil {
		t.mu.Unlock()
		room.Close()
		return ctx.Err()
	}
	t.room = room
	t.mu.Unlock()
	go t.pump(room)

	if err := room.SetMicEnabled(true); err != nil {
		t.logger.WarnPrintf("enable microphone: %v", err)
	}

	// Publish connected only if this room is still current: Disconnect may
	// have raced the tail of the attempt and already torn it down.
	t.do(func() {
		t.mu.Lock()
		if t.room != room {
			t.mu.Unlock()
			return
		}
		s := ConnectionState{Phase: ConnConnected, RoomName: room.Name()}
		t.state = s
		t.mu.Unlock()
		t.emit(&TransportStateChanged{State: s})
	})

	// Settle before the first context_update so the agent's ingestion
	// pipeline is ready to receive it.
	select {
	case <-time.After(t.settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if params.Context != nil {
		if err := t.SendContextUpdate(ctx, params.Context); err != nil {
			t.logger.WarnPrintf("initial context update: %v", err)
		}
	}
	return nil
}

// connectFailed publishes the failed state for a broken connect attempt. A
// locally cancelled attempt aborts silently: Disconnect (or the replacing
// Connect) has already published its own state, and failed must not follow
// disconnected.
func (t *Transport) connectFailed(err error) error {
	if !errors.Is(err, context.Canceled) {
		t.setState(ConnectionState{Phase: ConnFailed, Err: err})
	}
	return err
}

// dialRoom races the room dial against the connect timeout. Whichever
// completes first cancels the other; a connection that loses the race is
// torn down.
func (t *Transport) dialRoom(ctx context.Context, tok *TokenResponse, roomName string) (Room, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.connectTimeout)
	defer cancel()

	type dialResult struct {
		room Room
		err  error
	}
	resCh := make(chan dialResult, 1)
	go func() {
		room, err := t.dialer.Dial(dialCtx, tok.URL, tok.Token, roomName)
		resCh <- dialResult{room, err}
	}()

	select {
	case res := <-resCh:
		if res.err != nil {
			if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
				return nil, ErrConnectionTimeout
			}
			return nil, res.err
		}
		return res.room, nil
	case <-dialCtx.Done():
		// Tear down the partially-established connection when the losing
		// dial eventually returns.
		go func() {
			if res := <-resCh; res.room != nil {
				res.room.Close()
			}
		}()
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, ErrConnectionTimeout
	}
}

// pump redispatches room events onto the dispatch goroutine.
func (t *Transport) pump(room Room) {
	for ev := range room.Events() {
		switch ev := ev.(type) {
		case *RoomAudio:
			t.emit(&TransportAudio{Data: ev.Data})
		case *RoomSpeaking:
			t.do(func() {
				t.mu.Lock()
				connected := t.state.Phase == ConnConnected
				if connected {
					t.agentSpeaking = ev.Speaking
				}
				t.mu.Unlock()
				if connected {
					t.emit(&TransportSpeaking{Speaking: ev.Speaking})
				}
			})
		case *RoomData:
			cmd, err := DecodeAgentCommand(ev.Payload)
			if err != nil {
				// A malformed message must not terminate an otherwise
				// healthy session.
				t.logger.WarnPrintf("dropping inbound message: %v", err)
				continue
			}
			t.emit(&TransportCommand{Command: cmd})
		case *RoomClosed:
			t.mu.Lock()
			current := t.room == room
			if current {
				t.room = nil
			}
			t.mu.Unlock()
			if !current {
				return
			}
			if ev.Err != nil {
				t.setState(ConnectionState{Phase: ConnFailed, Err: ev.Err})
			} else {
				t.setState(ConnectionState{Phase: ConnDisconnected})
			}
			return
		}
	}
}

// Disconnect tears down the room connection if present, exactly once, and
// always transitions to disconnected regardless of whether a connection
// existed.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	// Cancel under the lock so an in-flight Connect cannot store a room
	// between the cancel and the teardown below.
	if cancel := t.connectCancel; cancel != nil {
		cancel()
	}
	t.connectCancel = nil
	room := t.room
	t.room = nil
	t.mu.Unlock()

	if room != nil {
		if err := room.Close(); err != nil {
			t.logger.DebugPrintf("room close: %v", err)
		}
	}
	t.setState(ConnectionState{Phase: ConnDisconnected})
}

// SendAudio publishes one uplink PCM frame (16-bit mono 16 kHz). Frames
// arriving while not connected are dropped silently; capture may outlive the
// connection by a frame or two during teardown.
func (t *Transport) SendAudio(p []byte) error {
	t.mu.Lock()
	room := t.room
	connected := t.state.Phase == ConnConnected
	t.mu.Unlock()

	if !connected || room == nil {
		return nil
	}
	if err := room.WriteAudio(p); err != nil {
		return &TransportError{Op: "write audio", Err: err}
	}
	return nil
}

// SendContextUpdate publishes one context_update on the reliable data
// channel. A warning is logged and nothing is sent when not connected.
func (t *Transport) SendContextUpdate(ctx context.Context, payload *ContextPayload) error {
	t.mu.Lock()
	room := t.room
	connected := t.state.Phase == ConnConnected
	t.mu.Unlock()

	if !connected || room == nil {
		t.logger.WarnPrintf("context update skipped: not connected")
		return nil
	}

	data, err := EncodeContextUpdate(payload)
	if err != nil {
		return t.logger.Errorf("encode context update: %v", err)
	}
	if err := room.SendData(ctx, data); err != nil {
		return &TransportError{Op: "context update", Err: err}
	}
	t.logger.DebugPrintf("context update sent: book=%s chapter=%d", payload.BookID, payload.Chapter)
	return nil
}

// Close stops the dispatch loop after disconnecting. The Transport cannot be
// reused afterwards.
func (t *Transport) Close() {
	t.Disconnect()
	t.stopOnce.Do(func() { close(t.done) })
}
