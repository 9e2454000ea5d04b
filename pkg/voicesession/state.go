package voicesession

import "encoding/json"

// ConnectionPhase is the lifecycle phase of the room connection.
type ConnectionPhase int

const (
	ConnDisconnected ConnectionPhase = iota
	ConnConnecting
	ConnConnected
	ConnFailed
)

// String returns the string representation of the phase.
func (p ConnectionPhase) String() string {
	switch p {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConnectionState describes the transport connection. Transitions are
// strictly sequential; failed and disconnected are terminal until a new
// Connect call restarts the machine.
type ConnectionState struct {
	Phase    ConnectionPhase
	RoomName string // set while connected
	Err      error  // set while failed
}

// MarshalJSON implements json.Marshaler.
func (s ConnectionState) MarshalJSON() ([]byte, error) {
	v := struct {
		Phase    string `json:"phase"`
		RoomName string `json:"room,omitempty"`
		Error    string `json:"error,omitempty"`
	}{Phase: s.Phase.String(), RoomName: s.RoomName}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	return json.Marshal(v)
}

// Phase is the top-level state of a voice session controller.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseListening
	PhaseWaiting
	PhaseResuming
	PhaseError
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseListening:
		return "listening"
	case PhaseWaiting:
		return "waiting"
	case PhaseResuming:
		return "resuming"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the controller state observed by the UI.
type State struct {
	Phase Phase

	// AgentSpeaking is meaningful only while listening.
	AgentSpeaking bool

	// Message is a short human-readable failure description, set only in
	// the error phase.
	Message string
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	v := struct {
		Phase         string `json:"phase"`
		AgentSpeaking bool   `json:"agentSpeaking,omitempty"`
		Message       string `json:"message,omitempty"`
	}{Phase: s.Phase.String(), AgentSpeaking: s.AgentSpeaking, Message: s.Message}
	return json.Marshal(v)
}

// IOState is the combined capture/playback state of the audio engine.
type IOState int

const (
	IOIdle IOState = iota
	IORecording
	IOPlaying
	IORecordingAndPlaying
)

// String returns the string representation of the state.
func (s IOState) String() string {
	switch s {
	case IOIdle:
		return "idle"
	case IORecording:
		return "recording"
	case IOPlaying:
		return "playing"
	case IORecordingAndPlaying:
		return "recording_and_playing"
	default:
		return "unknown"
	}
}

// CombineIO derives the combined engine state from the two independent
// capture/playback flags. Both may be active simultaneously to support
// duplex interruption detection.
func CombineIO(recording, playing bool) IOState {
	switch {
	case recording && playing:
		return IORecordingAndPlaying
	case recording:
		return IORecording
	case playing:
		return IOPlaying
	default:
		return IOIdle
	}
}
