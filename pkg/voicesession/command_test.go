package voicesession

import (
	"errors"
	"testing"
)

func TestDecodeAgentCommand(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want AgentCommand
	}{
		{"resume", `{"command":"resume_playback"}`, &ResumePlayback{}},
		{"skip back", `{"command":"skip_back","data":{"seconds":10}}`, &SkipBack{Seconds: 10}},
		{"skip forward", `{"command":"skip_forward","data":{"seconds":15}}`, &SkipForward{Seconds: 15}},
		{"go to chapter", `{"command":"go_to_chapter","data":{"chapter":4}}`, &GoToChapter{Chapter: 4}},
		{"skip back default seconds", `{"command":"skip_back"}`, &SkipBack{Seconds: 30}},
		{"skip forward empty data", `{"command":"skip_forward","data":{}}`, &SkipForward{Seconds: 30}},
		{"skip seconds wrong type", `{"command":"skip_back","data":{"seconds":"ten"}}`, &SkipBack{Seconds: 30}},
		{"extra fields ignored", `{"command":"resume_playback","data":{"seconds":5},"reason":"done"}`, &ResumePlayback{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAgentCommand([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeAgentCommand(%s): %v", tt.raw, err)
			}
			switch want := tt.want.(type) {
			case *ResumePlayback:
				if _, ok := got.(*ResumePlayback); !ok {
					t.Fatalf("got %T, want *ResumePlayback", got)
				}
			case *SkipBack:
				g, ok := got.(*SkipBack)
				if !ok || g.Seconds != want.Seconds {
					t.Fatalf("got %#v, want %#v", got, want)
				}
			case *SkipForward:
				g, ok := got.(*SkipForward)
				if !ok || g.Seconds != want.Seconds {
					t.Fatalf("got %#v, want %#v", got, want)
				}
			case *GoToChapter:
				g, ok := got.(*GoToChapter)
				if !ok || g.Chapter != want.Chapter {
					t.Fatalf("got %#v, want %#v", got, want)
				}
			}
		})
	}
}

func TestDecodeAgentCommandMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `not json at all`},
		{"not an object", `[1,2,3]`},
		{"missing command", `{"data":{"seconds":10}}`},
		{"unknown command", `{"command":"self_destruct"}`},
		{"chapter missing", `{"command":"go_to_chapter"}`},
		{"chapter wrong type", `{"command":"go_to_chapter","data":{"chapter":"four"}}`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAgentCommand([]byte(tt.raw))
			if got != nil {
				t.Fatalf("got command %#v from malformed input", got)
			}
			var malformed *MalformedCommandError
			if !errors.As(err, &malformed) {
				t.Fatalf("got %T (%v), want *MalformedCommandError", err, err)
			}
		})
	}
}
