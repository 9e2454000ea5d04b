package voicesession

import (
	"encoding/json"
	"fmt"
)

// DefaultSkipSeconds is used when a skip command arrives without a usable
// seconds value.
const DefaultSkipSeconds = 30

// Ensure all command types implement AgentCommand.
var (
	_ AgentCommand = (*ResumePlayback)(nil)
	_ AgentCommand = (*SkipBack)(nil)
	_ AgentCommand = (*SkipForward)(nil)
	_ AgentCommand = (*GoToChapter)(nil)
)

// AgentCommand is a structured playback instruction received from the remote
// agent over the data channel. Commands have no independent lifecycle: each
// is translated immediately into an action and discarded.
type AgentCommand interface {
	isAgentCommand()
	CommandType() string
}

// ResumePlayback asks the client to end the voice turn and resume the book.
type ResumePlayback struct{}

func (*ResumePlayback) isAgentCommand()     {}
func (*ResumePlayback) CommandType() string { return "resume_playback" }

// SkipBack rewinds book playback by Seconds.
type SkipBack struct {
	Seconds int
}

func (*SkipBack) isAgentCommand()     {}
func (*SkipBack) CommandType() string { return "skip_back" }

// SkipForward advances book playback by Seconds.
type SkipForward struct {
	Seconds int
}

func (*SkipForward) isAgentCommand()     {}
func (*SkipForward) CommandType() string { return "skip_forward" }

// GoToChapter jumps book playback to the given chapter.
type GoToChapter struct {
	Chapter int
}

func (*GoToChapter) isAgentCommand()     {}
func (*GoToChapter) CommandType() string { return "go_to_chapter" }

// inboundCommand is the wire shape of a data-channel command message.
type inboundCommand struct {
	Command string                     `json:"command"`
	Data    map[string]json.RawMessage `json:"data"`
}

// DecodeAgentCommand decodes one inbound data-channel message into an
// AgentCommand. Malformed messages yield a *MalformedCommandError; callers
// log and drop them, never propagating the failure to the session state
// machine.
func DecodeAgentCommand(raw []byte) (AgentCommand, error) {
	var msg inboundCommand
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, &MalformedCommandError{Reason: fmt.Sprintf("not a command object: %v", err), Raw: raw}
	}
	if msg.Command == "" {
		return nil, &MalformedCommandError{Reason: "missing command field", Raw: raw}
	}

	switch msg.Command {
	case "resume_playback":
		return &ResumePlayback{}, nil
	case "skip_back":
		return &SkipBack{Seconds: secondsOrDefault(msg.Data)}, nil
	case "skip_forward":
		return &SkipForward{Seconds: secondsOrDefault(msg.Data)}, nil
	case "go_to_chapter":
		chapter, ok := intField(msg.Data, "chapter")
		if !ok {
			// Navigating to an undefined chapter is not recoverable, so the
			// whole message is rejected rather than defaulted.
			return nil, &MalformedCommandError{Reason: "go_to_chapter without chapter", Raw: raw}
		}
		return &GoToChapter{Chapter: chapter}, nil
	default:
		return nil, &MalformedCommandError{Reason: fmt.Sprintf("unknown command %q", msg.Command), Raw: raw}
	}
}

// secondsOrDefault reads data.seconds as an integer, defaulting to
// DefaultSkipSeconds when absent or of the wrong type.
func secondsOrDefault(data map[string]json.RawMessage) int {
	if v, ok := intField(data, "seconds"); ok {
		return v
	}
	return DefaultSkipSeconds
}

func intField(data map[string]json.RawMessage, key string) (int, bool) {
	raw, ok := data[key]
	if !ok {
		return 0, false
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}
