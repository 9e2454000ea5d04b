// Package book models audiobook metadata and sentence-timed transcripts as
// served by the SageVox backend's metadata.json contract.
package book

import "time"

// TranscriptSegment is one sentence of transcript with timing information.
// Start and End are offsets in seconds from the beginning of the chapter.
type TranscriptSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Contains reports whether the given chapter offset falls inside the segment.
func (s TranscriptSegment) Contains(offset float64) bool {
	return offset >= s.Start && offset < s.End
}

// Transcript holds the sentence-level transcript of one chapter.
type Transcript struct {
	Text     string              `json:"text"`
	Duration float64             `json:"duration"`
	Segments []TranscriptSegment `json:"segments"`
}

// Chapter is one chapter of a book, with its transcript when loaded.
type Chapter struct {
	Number          int         `json:"number"`
	Title           string      `json:"title"`
	AudioFile       string      `json:"audio_file,omitempty"`
	DurationSeconds float64     `json:"duration_seconds"`
	Transcript      *Transcript `json:"transcript,omitempty"`
}

// Book is the full book record served by the backend library API.
type Book struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Author               string    `json:"author"`
	Description          string    `json:"description,omitempty"`
	NarratorVoice        string    `json:"narrator_voice,omitempty"`
	LanguageCode         string    `json:"language_code,omitempty"`
	CoverImage           string    `json:"cover_image,omitempty"`
	TotalChapters        int       `json:"total_chapters"`
	TotalDurationSeconds float64   `json:"total_duration_seconds"`
	Chapters             []Chapter `json:"chapters,omitempty"`
}

// ChapterByNumber returns the chapter with the given number, or nil.
func (b *Book) ChapterByNumber(n int) *Chapter {
	for i := range b.Chapters {
		if b.Chapters[i].Number == n {
			return &b.Chapters[i]
		}
	}
	return nil
}

// Duration returns the chapter duration as a time.Duration.
func (c *Chapter) Duration() time.Duration {
	return time.Duration(c.DurationSeconds * float64(time.Second))
}
