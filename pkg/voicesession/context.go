package voicesession

import (
	"encoding/json"
	"fmt"

	"github.com/sagevox/sagevox-go/pkg/book"
)

// ContextPayload is an immutable snapshot of book and position state sent to
// the agent once per session so it can ground its answers without spoiling
// content the listener has not reached yet. Never mutated after creation.
type ContextPayload struct {
	BookID        string
	Title         string
	Author        string
	Description   string
	NarratorVoice string
	Chapter       int
	TotalChapters int
	TimeOffset    float64
	ContextText   string
}

// BuildContextPayload snapshots the given book at the current chapter and
// playback offset. The context text is a bounded window of sentences around
// the playback position, taken from the chapter transcript.
func BuildContextPayload(b *book.Book, chapter int, timeOffset float64) *ContextPayload {
	p := &ContextPayload{
		BookID:        b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Description:   b.Description,
		NarratorVoice: b.NarratorVoice,
		Chapter:       chapter,
		TotalChapters: b.TotalChapters,
		TimeOffset:    timeOffset,
	}
	if ch := b.ChapterByNumber(chapter); ch != nil {
		p.ContextText = ch.Transcript.Window(timeOffset, book.DefaultWindowRadius)
	}
	return p
}

// SystemInstruction renders the grounding instruction string embedded in the
// context_update message.
func (p *ContextPayload) SystemInstruction() string {
	return fmt.Sprintf("Book: %s\nAuthor: %s\nChapter: %d of %d\n\nCurrent context: %s",
		p.Title, p.Author, p.Chapter, p.TotalChapters, p.ContextText)
}

// Wire shapes for the outbound context_update message.

type audioPositionWire struct {
	Chapter    int     `json:"chapter"`
	TimeOffset float64 `json:"timeOffset"`
}

type bookInfoWire struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Description   string `json:"description"`
	Chapters      int    `json:"chapters"`
	NarratorVoice string `json:"narratorVoice"`
}

type contextWire struct {
	SystemInstruction string            `json:"systemInstruction"`
	BookID            string            `json:"bookId"`
	AudioPosition     audioPositionWire `json:"audioPosition"`
	BookInfo          bookInfoWire      `json:"bookInfo"`
}

type contextUpdateMessage struct {
	Type    string      `json:"type"`
	Context contextWire `json:"context"`
}

// EncodeContextUpdate serializes the payload as a context_update message for
// reliable data-channel publish.
func EncodeContextUpdate(p *ContextPayload) ([]byte, error) {
	msg := contextUpdateMessage{
		Type: "context_update",
		Context: contextWire{
			SystemInstruction: p.SystemInstruction(),
			BookID:            p.BookID,
			AudioPosition: audioPositionWire{
				Chapter:    p.Chapter,
				TimeOffset: p.TimeOffset,
			},
			BookInfo: bookInfoWire{
				ID:            p.BookID,
				Title:         p.Title,
				Author:        p.Author,
				Description:   p.Description,
				Chapters:      p.TotalChapters,
				NarratorVoice: p.NarratorVoice,
			},
		},
	}
	return json.Marshal(msg)
}
