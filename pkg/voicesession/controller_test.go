package voicesession

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type controllerFixture struct {
	controller *Controller
	transport  *Transport
	router     *fakeRouter
	capture    *fakeCapture
	render     *fakeRender
	dialer     *fakeDialer
	gate       *fakeGate
	recorder   *fakeRecorder
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		router:   &fakeRouter{},
		capture:  newFakeCapture(),
		render:   &fakeRender{},
		dialer:   &fakeDialer{},
		gate:     &fakeGate{granted: true},
		recorder: &fakeRecorder{},
	}
	engine := NewEngine(EngineOptions{Router: f.router, Capture: f.capture, Render: f.render})
	transport := NewTransport(TransportOptions{
		Issuer:         &fakeIssuer{},
		Dialer:         f.dialer,
		ConnectTimeout: 200 * time.Millisecond,
		SettleDelay:    time.Millisecond,
	})
	f.transport = transport
	f.controller = NewController(ControllerOptions{
		Engine:        engine,
		Transport:     transport,
		Gate:          f.gate,
		Source:        &fakeSource{snap: PlaybackSnapshot{Book: testBook(), Chapter: 1, TimeOffset: 3.0}},
		Recorder:      f.recorder,
		HandBackDelay: 5 * time.Millisecond,
	})
	t.Cleanup(f.controller.Close)
	t.Cleanup(transport.Close)
	return f
}

func TestControllerSessionEndToEnd(t *testing.T) {
	f := newControllerFixture(t)
	c := f.controller

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := c.State(); got.Phase != PhaseListening || got.AgentSpeaking {
		t.Fatalf("state after connect: %+v", got)
	}
	room := f.dialer.dialedRoom()

	// Uplink: a captured frame reaches the room.
	f.capture.feed(tone(4096))
	waitFor(t, time.Second, func() bool {
		room.mu.Lock()
		defer room.mu.Unlock()
		return len(room.audio) == 1
	}, "uplink frame")

	// Downlink: agent audio reaches the render device.
	room.events <- &RoomAudio{Data: tone(playbackChunkBytes)}
	waitFor(t, time.Second, func() bool { return len(f.render.rendered()) == 1 }, "downlink chunk")

	// Remote speaking flips the listening flag.
	room.events <- &RoomSpeaking{Speaking: true}
	waitFor(t, time.Second, func() bool {
		_, speaking := c.IsListening()
		return speaking
	}, "agent speaking flag")

	// A skip command comes out once on the command stream, untouched.
	room.events <- &RoomData{Payload: []byte(`{"command":"skip_forward","data":{"seconds":15}}`)}
	cmd := nextEvent[*PlaybackCommand](t, c.Events(), time.Second)
	fwd, ok := cmd.Command.(*SkipForward)
	if !ok || fwd.Seconds != 15 {
		t.Fatalf("command stream: %#v", cmd.Command)
	}

	// resume_playback ends the turn: session recorded, device handed back.
	room.events <- &RoomData{Payload: []byte(`{"command":"resume_playback"}`)}
	waitFor(t, time.Second, func() bool { return c.State().Phase == PhaseResuming }, "resuming state")

	recs := f.recorder.recorded()
	if len(recs) != 1 {
		t.Fatalf("recorded %d sessions, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Cause != CauseAgentResume || rec.BookID != "moby-dick" || rec.Chapter != 1 || rec.StartedAt.IsZero() {
		t.Fatalf("session record: %+v", rec)
	}

	routes := f.router.configured()
	if len(routes) == 0 || routes[len(routes)-1] != RoutePlayback {
		t.Fatalf("routes: %v, want playback last", routes)
	}
	if room.closeCount() != 1 {
		t.Fatalf("room closed %d times, want 1", room.closeCount())
	}
}

func TestControllerPermissionDenied(t *testing.T) {
	f := newControllerFixture(t)
	f.gate.granted = false

	err := f.controller.Connect(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied", err)
	}
	st := f.controller.State()
	if st.Phase != PhaseError || !strings.Contains(st.Message, "Microphone") {
		t.Fatalf("state: %+v", st)
	}

	// The transport was never touched.
	if dials := f.dialer.dialCount(); dials != 0 {
		t.Fatalf("dialed %d times after permission denial", dials)
	}
}

func TestControllerConnectFailure(t *testing.T) {
	f := newControllerFixture(t)
	f.dialer.err = errors.New("no route to host")

	if err := f.controller.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if got := f.controller.State(); got.Phase != PhaseError {
		t.Fatalf("state: %+v", got)
	}
	// Capture was rolled back.
	waitFor(t, time.Second, func() bool {
		f.capture.mu.Lock()
		defer f.capture.mu.Unlock()
		return f.capture.stopped == 1
	}, "capture rollback")
}

func TestControllerDisconnectResets(t *testing.T) {
	f := newControllerFixture(t)
	c := f.controller

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	room := f.dialer.dialedRoom()

	c.Disconnect()
	if got := c.State(); got.Phase != PhaseConnecting {
		t.Fatalf("state after disconnect: %+v", got)
	}
	if room.closeCount() != 1 {
		t.Fatalf("room closed %d times", room.closeCount())
	}
	recs := f.recorder.recorded()
	if len(recs) != 1 || recs[0].Cause != CauseUserStop {
		t.Fatalf("records: %+v", recs)
	}

	// The trailing transport event must not push the state away from
	// connecting.
	time.Sleep(20 * time.Millisecond)
	if got := c.State(); got.Phase != PhaseConnecting {
		t.Fatalf("state drifted after disconnect: %+v", got)
	}
}

func TestControllerDisconnectDuringConnect(t *testing.T) {
	f := newControllerFixture(t)
	f.dialer.block = true
	c := f.controller

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background()) }()
	waitFor(t, time.Second, func() bool { return f.dialer.dialCount() == 1 }, "dial in flight")

	c.Disconnect()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Connect: %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Connect did not return after Disconnect")
	}

	// The aborted attempt must not publish the error state; disconnecting
	// always lands back in connecting.
	waitFor(t, time.Second, func() bool { return c.State().Phase == PhaseConnecting }, "connecting state")
	time.Sleep(50 * time.Millisecond)
	if got := c.State(); got.Phase != PhaseConnecting {
		t.Fatalf("state drifted to %+v after disconnect", got)
	}
	if got := f.transport.State(); got.Phase != ConnDisconnected {
		t.Fatalf("transport state: %+v", got)
	}
	if n := len(f.recorder.recorded()); n != 0 {
		t.Fatalf("recorded %d sessions for an aborted connect, want 0", n)
	}
}

func TestControllerRemoteClose(t *testing.T) {
	f := newControllerFixture(t)
	c := f.controller

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	f.dialer.dialedRoom().Close()

	waitFor(t, time.Second, func() bool { return c.State().Phase == PhaseWaiting }, "waiting state")
	recs := f.recorder.recorded()
	if len(recs) != 1 || recs[0].Cause != CauseRemoteClosed {
		t.Fatalf("records: %+v", recs)
	}
}

func TestControllerResumeIdempotent(t *testing.T) {
	f := newControllerFixture(t)
	c := f.controller

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	c.ResumePlayback()
	c.ResumePlayback()
	waitFor(t, time.Second, func() bool { return c.State().Phase == PhaseResuming }, "resuming state")

	if recs := f.recorder.recorded(); len(recs) != 1 {
		t.Fatalf("recorded %d sessions, want 1", len(recs))
	}
}
