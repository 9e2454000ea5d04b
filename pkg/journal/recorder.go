package journal

import (
	"context"

	"github.com/google/uuid"

	"github.com/sagevox/sagevox-go/pkg/voicesession"
)

// Recorder adapts a Journal to the controller's SessionRecorder interface.
type Recorder struct {
	Journal Journal
}

var _ voicesession.SessionRecorder = (*Recorder)(nil)

// Record implements voicesession.SessionRecorder.
func (r *Recorder) Record(rec voicesession.SessionRecord) error {
	return r.Journal.Append(context.Background(), &Record{
		ID:         uuid.NewString(),
		Room:       rec.Room,
		BookID:     rec.BookID,
		Chapter:    rec.Chapter,
		TimeOffset: rec.TimeOffset,
		StartedAt:  rec.StartedAt,
		Duration:   rec.Duration,
		Cause:      rec.Cause,
	})
}
