package voicesession

import "context"

// Room is one live connection to a voice room, carrying duplex audio and a
// reliable control data channel. Implementations exist for WebRTC
// (room_webrtc.go) and WebSocket gateways (room_ws.go); tests use in-process
// fakes.
type Room interface {
	// Name returns the room name assigned by the token issuer.
	Name() string

	// SetMicEnabled enables or disables the local microphone publish track.
	SetMicEnabled(enabled bool) error

	// WriteAudio publishes one uplink PCM chunk (16-bit mono 16 kHz).
	WriteAudio(p []byte) error

	// SendData publishes one control message on the reliable data channel.
	// The transport's own reliability layer handles acknowledgement and
	// retry.
	SendData(ctx context.Context, payload []byte) error

	// Events returns the room's event stream. The channel closes after the
	// room disconnects, with RoomClosed as the final event.
	Events() <-chan RoomEvent

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// RoomDialer opens room connections. Injected into the Transport so tests
// can supply fakes and deployments can choose WebRTC or WebSocket media.
type RoomDialer interface {
	Dial(ctx context.Context, url, token, roomName string) (Room, error)
}

// Ensure all event types implement RoomEvent.
var (
	_ RoomEvent = (*RoomAudio)(nil)
	_ RoomEvent = (*RoomData)(nil)
	_ RoomEvent = (*RoomSpeaking)(nil)
	_ RoomEvent = (*RoomClosed)(nil)
)

// RoomEvent is a tagged event from a live room. Events fire on arbitrary
// background goroutines; the Transport redispatches them onto its single
// consistent execution context before touching published state.
type RoomEvent interface {
	isRoomEvent()
}

// RoomAudio carries one downlink chunk of agent audio (16-bit mono 24 kHz).
type RoomAudio struct {
	Data []byte
}

func (*RoomAudio) isRoomEvent() {}

// RoomData carries one inbound control message from the data channel.
type RoomData struct {
	Payload []byte
}

func (*RoomData) isRoomEvent() {}

// RoomSpeaking signals a change in the remote agent's speaking activity.
type RoomSpeaking struct {
	Speaking bool
}

func (*RoomSpeaking) isRoomEvent() {}

// RoomClosed is the final event of a room: remote hangup, transport failure
// (Err non-nil), or local Close (Err nil).
type RoomClosed struct {
	Err error
}

func (*RoomClosed) isRoomEvent() {}
