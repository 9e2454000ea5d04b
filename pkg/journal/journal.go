// Package journal persists voice session records for observability: when a
// session ran, against which book and chapter, how long it lasted, and why it
// ended. It is an append-only log, not listening-progress storage.
//
// Records are msgpack-encoded under hierarchical keys grouped by book id, so
// a prefix scan lists every session for one book in start order.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sagevox/sagevox-go/pkg/jsontime"
)

// Record is one finished voice session.
type Record struct {
	ID         string        `msgpack:"id"`
	Room       string        `msgpack:"room"`
	BookID     string        `msgpack:"book_id"`
	Chapter    int           `msgpack:"chapter"`
	TimeOffset float64       `msgpack:"time_offset"`
	StartedAt  time.Time     `msgpack:"started_at"`
	Duration   time.Duration `msgpack:"duration"`
	Cause      string        `msgpack:"cause"`
}

// MarshalJSON renders the record for exports and the CLI: epoch-millisecond
// start, human-readable duration.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string            `json:"id"`
		Room       string            `json:"room"`
		BookID     string            `json:"bookId"`
		Chapter    int               `json:"chapter"`
		TimeOffset float64           `json:"timeOffset"`
		StartedAt  jsontime.Milli    `json:"startedAt"`
		Duration   jsontime.Duration `json:"duration"`
		Cause      string            `json:"cause"`
	}{
		ID:         r.ID,
		Room:       r.Room,
		BookID:     r.BookID,
		Chapter:    r.Chapter,
		TimeOffset: r.TimeOffset,
		StartedAt:  jsontime.Milli(r.StartedAt),
		Duration:   jsontime.Duration(r.Duration),
		Cause:      r.Cause,
	})
}

// Journal is an append-only session log.
type Journal interface {
	// Append stores one record. The record's ID must be unique.
	Append(ctx context.Context, rec *Record) error

	// ByBook iterates over every record for one book, ordered by start time.
	ByBook(ctx context.Context, bookID string) iter.Seq2[*Record, error]

	// All iterates over every record, ordered by book then start time.
	All(ctx context.Context) iter.Seq2[*Record, error]

	Close() error
}

const keySeparator = ':'

// recordKey builds the storage key "book:<bookID>:<startMillis>:<id>". The
// millisecond field is zero-padded so lexicographic order is start order.
func recordKey(rec *Record) []byte {
	return fmt.Appendf(nil, "book%c%s%c%013d%c%s",
		keySeparator, rec.BookID,
		keySeparator, rec.StartedAt.UnixMilli(),
		keySeparator, rec.ID)
}

// bookPrefix builds the scan prefix for one book, or for all books when
// bookID is empty.
func bookPrefix(bookID string) []byte {
	if bookID == "" {
		return fmt.Appendf(nil, "book%c", keySeparator)
	}
	return fmt.Appendf(nil, "book%c%s%c", keySeparator, bookID, keySeparator)
}

func encodeRecord(rec *Record) ([]byte, error) {
	b, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("journal: encode record %s: %w", rec.ID, err)
	}
	return b, nil
}

func decodeRecord(b []byte) (*Record, error) {
	var rec Record
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("journal: decode record: %w", err)
	}
	return &rec, nil
}
