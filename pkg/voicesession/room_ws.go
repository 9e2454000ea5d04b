package voicesession

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer opens rooms over a WebSocket media gateway. Binary frames
// carry PCM audio (uplink 16 kHz, downlink 24 kHz); text frames carry control
// JSON. Used where UDP media is unavailable.
type WebSocketDialer struct {
	// HandshakeTimeout bounds the WebSocket handshake; zero uses the
	// gorilla default.
	HandshakeTimeout time.Duration

	// Logger defaults to DefaultLogger().
	Logger Logger
}

func (d *WebSocketDialer) logger() Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return DefaultLogger()
}

// Dial connects to the room gateway at url, authenticating with token.
func (d *WebSocketDialer) Dial(ctx context.Context, url, token, roomName string) (Room, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	endpoint := fmt.Sprintf("%s/rooms/%s", url, roomName)

	conn, resp, err := dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return nil, &TransportError{Op: "ws dial", Err: fmt.Errorf("%w (status %d)", err, resp.StatusCode)}
		}
		return nil, &TransportError{Op: "ws dial", Err: err}
	}

	room := &wsRoom{
		conn:    conn,
		name:    roomName,
		logger:  d.logger(),
		closeCh: make(chan struct{}),
		events:  make(chan RoomEvent, 100),
	}
	go room.readLoop()
	return room, nil
}

type wsRoom struct {
	conn   *websocket.Conn
	name   string
	logger Logger

	closeOnce sync.Once
	closeCh   chan struct{}

	emitMu sync.Mutex
	closed bool
	events chan RoomEvent

	writeMu    sync.Mutex
	micEnabled bool
}

func (r *wsRoom) Name() string { return r.name }

func (r *wsRoom) SetMicEnabled(enabled bool) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.micEnabled = enabled
	return nil
}

// WriteAudio sends one uplink PCM chunk as a binary frame. Chunks written
// while the microphone is disabled are dropped silently.
func (r *wsRoom) WriteAudio(p []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if !r.micEnabled {
		return nil
	}
	select {
	case <-r.closeCh:
		return ErrNotConnected
	default:
	}
	if err := r.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return &TransportError{Op: "write audio", Err: err}
	}
	return nil
}

func (r *wsRoom) SendData(ctx context.Context, payload []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	select {
	case <-r.closeCh:
		return ErrNotConnected
	default:
	}
	if err := r.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return &TransportError{Op: "send data", Err: err}
	}
	return nil
}

func (r *wsRoom) Events() <-chan RoomEvent { return r.events }

func (r *wsRoom) Close() error {
	r.shutdown(nil)
	return nil
}

func (r *wsRoom) shutdown(err error) {
	r.closeOnce.Do(func() {
		close(r.closeCh)
		if cerr := r.conn.Close(); cerr != nil {
			r.logger.DebugPrintf("ws close: %v", cerr)
		}
		r.emitMu.Lock()
		r.closed = true
		select {
		case r.events <- &RoomClosed{Err: err}:
		default:
			<-r.events
			r.events <- &RoomClosed{Err: err}
		}
		close(r.events)
		r.emitMu.Unlock()
	})
}

// readLoop pumps inbound frames into the event stream until the connection
// ends.
func (r *wsRoom) readLoop() {
	for {
		msgType, data, err := r.conn.ReadMessage()
		if err != nil {
			select {
			case <-r.closeCh:
				r.shutdown(nil)
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					r.shutdown(nil)
				} else {
					r.shutdown(&TransportError{Op: "ws read", Err: err})
				}
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			r.emit(&RoomAudio{Data: data})
		case websocket.TextMessage:
			r.handleControl(data)
		}
	}
}

// handleControl routes one text frame. Speaking envelopes are
// transport-level; everything else is surfaced as application payload.
func (r *wsRoom) handleControl(data []byte) {
	var envelope struct {
		Type     string `json:"type"`
		Speaking bool   `json:"speaking"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Type == "speaking" {
		r.emit(&RoomSpeaking{Speaking: envelope.Speaking})
		return
	}
	r.emit(&RoomData{Payload: data})
}

func (r *wsRoom) emit(ev RoomEvent) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.logger.DebugPrintf("ws event dropped: %T", ev)
	}
}
