package voicesession

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"github.com/sagevox/sagevox-go/pkg/pcm"
)

// rtpPayloadType is the dynamic payload type used for raw L16 audio on both
// directions of the room connection.
const rtpPayloadType = 96

// WebRTCDialer opens rooms over a WebRTC peer connection: uplink microphone
// audio and downlink agent audio as RTP tracks, control messages on a
// reliable data channel named "commands".
type WebRTCDialer struct {
	// ICEServers overrides the default public STUN server.
	ICEServers []string

	// HTTPClient is used for the SDP offer/answer exchange with the room
	// gateway. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to DefaultLogger().
	Logger Logger
}

func (d *WebRTCDialer) logger() Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return DefaultLogger()
}

// Dial connects to the room gateway at url, authenticating with token.
func (d *WebRTCDialer) Dial(ctx context.Context, url, token, roomName string) (Room, error) {
	iceServers := d.ICEServers
	if len(iceServers) == 0 {
		iceServers = []string{"stun:stun.l.google.com:19302"}
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	})
	if err != nil {
		return nil, &TransportError{Op: "peer connection", Err: err}
	}

	room := &webrtcRoom{
		pc:       pc,
		name:     roomName,
		logger:   d.logger(),
		closeCh:  make(chan struct{}),
		events:   make(chan RoomEvent, 100),
		ssrc:     rand.Uint32(),
		clockInc: uint32(pcm.L16Mono16K.SampleRate() / 100), // per 10ms
	}

	// Downlink: agent audio arrives on its own transceiver.
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, &TransportError{Op: "audio transceiver", Err: err}
	}

	// Uplink: microphone track, raw L16 in RTP.
	localTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{
			MimeType:  "audio/L16",
			ClockRate: uint32(pcm.L16Mono16K.SampleRate()),
			Channels:  1,
		},
		"audio", "sagevox-mic",
	)
	if err != nil {
		pc.Close()
		return nil, &TransportError{Op: "local track", Err: err}
	}
	if _, err := pc.AddTrack(localTrack); err != nil {
		pc.Close()
		return nil, &TransportError{Op: "add track", Err: err}
	}
	room.localTrack = localTrack

	dc, err := pc.CreateDataChannel("commands", nil)
	if err != nil {
		pc.Close()
		return nil, &TransportError{Op: "data channel", Err: err}
	}
	room.dc = dc

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		room.handleData(msg.Data)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		room.logger.DebugPrintf("webrtc remote track: kind=%s codec=%s", track.Kind(), track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			go room.readRemoteTrack(track)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		room.logger.DebugPrintf("webrtc connection state: %s", state)
		switch state {
		case webrtc.PeerConnectionStateFailed:
			room.shutdown(&TransportError{Op: "peer connection", Err: fmt.Errorf("state %s", state)})
		case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			room.shutdown(nil)
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, &TransportError{Op: "create offer", Err: err}
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, &TransportError{Op: "local description", Err: err}
	}

	// Wait for ICE gathering so the offer carries all candidates.
	select {
	case <-webrtc.GatheringCompletePromise(pc):
	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}

	answer, err := d.exchangeSDP(ctx, url, token, roomName, pc.LocalDescription().SDP)
	if err != nil {
		pc.Close()
		return nil, err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		pc.Close()
		return nil, &TransportError{Op: "remote description", Err: err}
	}

	return room, nil
}

// exchangeSDP posts the offer to the room gateway and returns the answer.
func (d *WebRTCDialer) exchangeSDP(ctx context.Context, url, token, roomName, sdp string) (string, error) {
	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	endpoint := fmt.Sprintf("%s/rtc?room=%s", signalingURL(url), roomName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(sdp)))
	if err != nil {
		return "", &TransportError{Op: "sdp exchange", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := client.Do(req)
	if err != nil {
		return "", &TransportError{Op: "sdp exchange", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &TransportError{Op: "sdp exchange", Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: "sdp exchange", Err: err}
	}
	return string(answer), nil
}

// signalingURL converts a room media URL (possibly ws/wss) to its HTTP
// signaling equivalent.
func signalingURL(url string) string {
	switch {
	case strings.HasPrefix(url, "wss://"):
		return "https://" + strings.TrimPrefix(url, "wss://")
	case strings.HasPrefix(url, "ws://"):
		return "http://" + strings.TrimPrefix(url, "ws://")
	default:
		return strings.TrimSuffix(url, "/")
	}
}

type webrtcRoom struct {
	pc         *webrtc.PeerConnection
	dc         *webrtc.DataChannel
	localTrack *webrtc.TrackLocalStaticRTP
	name       string
	logger     Logger

	closeOnce sync.Once
	closeCh   chan struct{}

	emitMu sync.Mutex
	closed bool
	events chan RoomEvent

	mu         sync.Mutex
	micEnabled bool
	seq        uint16
	timestamp  uint32
	ssrc       uint32
	clockInc   uint32
}

func (r *webrtcRoom) Name() string { return r.name }

func (r *webrtcRoom) SetMicEnabled(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.micEnabled = enabled
	return nil
}

// WriteAudio packetizes one uplink PCM chunk as RTP. Chunks written while the
// microphone is disabled are dropped silently.
func (r *webrtcRoom) WriteAudio(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.micEnabled {
		return nil
	}
	select {
	case <-r.closeCh:
		return ErrNotConnected
	default:
	}

	r.seq++
	r.timestamp += uint32(pcm.L16Mono16K.Samples(int64(len(p))))
	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    rtpPayloadType,
			SequenceNumber: r.seq,
			Timestamp:      r.timestamp,
			SSRC:           r.ssrc,
		},
		Payload: p,
	}
	if err := r.localTrack.WriteRTP(packet); err != nil {
		return &TransportError{Op: "write audio", Err: err}
	}
	return nil
}

func (r *webrtcRoom) SendData(ctx context.Context, payload []byte) error {
	if r.dc == nil || r.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrNotConnected
	}
	return r.dc.Send(payload)
}

func (r *webrtcRoom) Events() <-chan RoomEvent { return r.events }

func (r *webrtcRoom) Close() error {
	r.shutdown(nil)
	return nil
}

// shutdown emits the final RoomClosed event and closes the peer connection,
// exactly once.
func (r *webrtcRoom) shutdown(err error) {
	r.closeOnce.Do(func() {
		close(r.closeCh)
		if cerr := r.pc.Close(); cerr != nil {
			r.logger.DebugPrintf("webrtc close: %v", cerr)
		}
		r.emitMu.Lock()
		r.closed = true
		select {
		case r.events <- &RoomClosed{Err: err}:
		default:
			// Stalled consumer with a full buffer: make room so the final
			// event is never lost.
			<-r.events
			r.events <- &RoomClosed{Err: err}
		}
		close(r.events)
		r.emitMu.Unlock()
	})
}

// handleData routes one inbound data-channel message. Speaking envelopes are
// transport-level; everything else is surfaced as application payload.
func (r *webrtcRoom) handleData(data []byte) {
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

// readRemoteTrack pumps downlink RTP packets into the event stream. The
// payload is raw 24 kHz PCM per the room contract.
func (r *webrtcRoom) readRemoteTrack(track *webrtc.TrackRemote) {
	for {
		packet, _, err := track.ReadRTP()
		if err != nil {
			r.logger.DebugPrintf("webrtc remote track ended: %v", err)
			return
		}
		if len(packet.Payload) == 0 {
			continue
		}
		r.emit(&RoomAudio{Data: packet.Payload})
	}
}

func (r *webrtcRoom) emit(ev RoomEvent) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
		// Consumer stalled; dropping beats blocking the media goroutine.
		r.logger.DebugPrintf("webrtc event dropped: %T", ev)
	}
}
