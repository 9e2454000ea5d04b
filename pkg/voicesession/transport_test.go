package voicesession

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestTransport(dialer RoomDialer) *Transport {
	return NewTransport(TransportOptions{
		Issuer:         &fakeIssuer{},
		Dialer:         dialer,
		ConnectTimeout: 200 * time.Millisecond,
		SettleDelay:    time.Millisecond,
	})
}

func TestTransportConnect(t *testing.T) {
	dialer := &fakeDialer{}
	tr := newTestTransport(dialer)
	defer tr.Close()

	payload := BuildContextPayload(testBook(), 1, 3.0)
	err := tr.Connect(context.Background(), TransportParams{
		BookID:  "moby-dick",
		Title:   "Moby Dick",
		Voice:   "Charon",
		Context: payload,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	st := nextEvent[*TransportStateChanged](t, tr.Events(), time.Second)
	if st.State.Phase != ConnConnecting {
		t.Fatalf("first transition: %v", st.State.Phase)
	}
	st = nextEvent[*TransportStateChanged](t, tr.Events(), time.Second)
	if st.State.Phase != ConnConnected || st.State.RoomName != "book-moby-dick-deadbeef" {
		t.Fatalf("second transition: %+v", st.State)
	}

	room := dialer.dialedRoom()
	if !room.mic() {
		t.Fatal("microphone track not enabled")
	}

	// Exactly one context_update after the settle delay.
	waitFor(t, time.Second, func() bool { return len(room.sentData()) == 1 }, "context update")
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(room.sentData()[0], &msg); err != nil || msg.Type != "context_update" {
		t.Fatalf("first data message: %s (%v)", room.sentData()[0], err)
	}

	if got := tr.State(); got.Phase != ConnConnected {
		t.Fatalf("state: %+v", got)
	}
}

func TestTransportConnectTimeout(t *testing.T) {
	dialer := &fakeDialer{block: true}
	tr := NewTransport(TransportOptions{
		Issuer:         &fakeIssuer{},
		Dialer:         dialer,
		ConnectTimeout: 20 * time.Millisecond,
		SettleDelay:    time.Millisecond,
	})
	defer tr.Close()

	start := time.Now()
	err := tr.Connect(context.Background(), TransportParams{BookID: "b"})
	elapsed := time.Since(start)
	if !errors.Is(err, ErrConnectionTimeout) {
		t.Fatalf("got %v, want ErrConnectionTimeout", err)
	}
	// The race fires at the configured timeout: not before, and without
	// unbounded slack after.
	if elapsed < 20*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Fatalf("timed out after %v, want ~20ms", elapsed)
	}
	waitFor(t, time.Second, func() bool { return tr.State().Phase == ConnFailed }, "failed state")
	if got := tr.State(); !errors.Is(got.Err, ErrConnectionTimeout) {
		t.Fatalf("state error: %v", got.Err)
	}
}

func TestTransportDisconnectDuringConnect(t *testing.T) {
	dialer := &fakeDialer{block: true}
	tr := newTestTransport(dialer)
	defer tr.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- tr.Connect(context.Background(), TransportParams{BookID: "b"})
	}()
	waitFor(t, time.Second, func() bool { return dialer.dialCount() == 1 }, "dial in flight")

	tr.Disconnect()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Connect: %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Connect did not return after Disconnect")
	}

	// The cancelled attempt must not publish failed after disconnected.
	waitFor(t, time.Second, func() bool { return tr.State().Phase == ConnDisconnected }, "disconnected state")
	time.Sleep(50 * time.Millisecond)
	if got := tr.State(); got.Phase != ConnDisconnected {
		t.Fatalf("state drifted to %+v after disconnect", got)
	}
drain:
	for {
		select {
		case ev := <-tr.Events():
			if st, ok := ev.(*TransportStateChanged); ok && st.State.Phase == ConnFailed {
				t.Fatalf("failed transition published: %+v", st.State)
			}
		default:
			break drain
		}
	}
}

func TestTransportConnectTokenFailure(t *testing.T) {
	tr := NewTransport(TransportOptions{
		Issuer:         &fakeIssuer{err: errors.New("backend down")},
		Dialer:         &fakeDialer{},
		ConnectTimeout: 100 * time.Millisecond,
		SettleDelay:    time.Millisecond,
	})
	defer tr.Close()

	if err := tr.Connect(context.Background(), TransportParams{BookID: "b"}); err == nil {
		t.Fatal("expected token error")
	}
	waitFor(t, time.Second, func() bool { return tr.State().Phase == ConnFailed }, "failed state")
}

func TestTransportDisconnect(t *testing.T) {
	dialer := &fakeDialer{}
	tr := newTestTransport(dialer)
	defer tr.Close()

	if err := tr.Connect(context.Background(), TransportParams{BookID: "b"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	room := dialer.dialedRoom()

	tr.Disconnect()
	waitFor(t, time.Second, func() bool { return tr.State().Phase == ConnDisconnected }, "disconnected state")
	if room.closeCount() != 1 {
		t.Fatalf("room closed %d times, want 1", room.closeCount())
	}

	// Disconnect is safe to repeat and without a connection.
	tr.Disconnect()
	if room.closeCount() != 1 {
		t.Fatalf("room closed %d times after repeat, want 1", room.closeCount())
	}
	if got := tr.State(); got.Phase != ConnDisconnected {
		t.Fatalf("state after repeat: %+v", got)
	}
}

func TestTransportStateRepeatedFailureNewError(t *testing.T) {
	tr := newTestTransport(&fakeDialer{})
	defer tr.Close()

	errA := errors.New("ice negotiation failed")
	errB := errors.New("token expired")
	tr.setState(ConnectionState{Phase: ConnFailed, Err: errA})
	tr.setState(ConnectionState{Phase: ConnFailed, Err: errB})
	tr.setState(ConnectionState{Phase: ConnFailed, Err: errB}) // exact repeat, collapsed

	st := nextEvent[*TransportStateChanged](t, tr.Events(), time.Second)
	if st.State.Phase != ConnFailed || !errors.Is(st.State.Err, errA) {
		t.Fatalf("first failure: %+v", st.State)
	}
	st = nextEvent[*TransportStateChanged](t, tr.Events(), time.Second)
	if st.State.Phase != ConnFailed || !errors.Is(st.State.Err, errB) {
		t.Fatalf("second failure: %+v", st.State)
	}

	time.Sleep(20 * time.Millisecond)
	select {
	case ev := <-tr.Events():
		t.Fatalf("exact repeat published: %+v", ev)
	default:
	}
}

func TestTransportSendContextUpdateNotConnected(t *testing.T) {
	tr := newTestTransport(&fakeDialer{})
	defer tr.Close()

	// Not connected: logged no-op, not an error.
	payload := BuildContextPayload(testBook(), 1, 0)
	if err := tr.SendContextUpdate(context.Background(), payload); err != nil {
		t.Fatalf("SendContextUpdate while disconnected: %v", err)
	}
}

func TestTransportInboundRouting(t *testing.T) {
	dialer := &fakeDialer{}
	tr := newTestTransport(dialer)
	defer tr.Close()

	if err := tr.Connect(context.Background(), TransportParams{BookID: "b"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	room := dialer.dialedRoom()

	room.events <- &RoomAudio{Data: []byte{1, 2, 3}}
	audio := nextEvent[*TransportAudio](t, tr.Events(), time.Second)
	if len(audio.Data) != 3 {
		t.Fatalf("audio passthrough: %v", audio.Data)
	}

	room.events <- &RoomSpeaking{Speaking: true}
	speaking := nextEvent[*TransportSpeaking](t, tr.Events(), time.Second)
	if !speaking.Speaking {
		t.Fatal("speaking flag lost")
	}
	waitFor(t, time.Second, func() bool { return tr.IsAgentSpeaking() }, "speaking flag")

	// Malformed data is dropped; the following valid command still arrives.
	room.events <- &RoomData{Payload: []byte(`{"what":"ever"}`)}
	room.events <- &RoomData{Payload: []byte(`{"command":"skip_forward","data":{"seconds":15}}`)}
	cmd := nextEvent[*TransportCommand](t, tr.Events(), time.Second)
	fwd, ok := cmd.Command.(*SkipForward)
	if !ok || fwd.Seconds != 15 {
		t.Fatalf("command: %#v", cmd.Command)
	}
}

func TestTransportRemoteClose(t *testing.T) {
	dialer := &fakeDialer{}
	tr := newTestTransport(dialer)
	defer tr.Close()

	if err := tr.Connect(context.Background(), TransportParams{BookID: "b"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	dialer.dialedRoom().Close()
	waitFor(t, time.Second, func() bool { return tr.State().Phase == ConnDisconnected }, "disconnected after remote close")
	if tr.IsAgentSpeaking() {
		t.Fatal("speaking flag survived disconnect")
	}
}
