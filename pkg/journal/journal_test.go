package journal_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sagevox/sagevox-go/pkg/journal"
)

func newStores(t *testing.T) map[string]journal.Journal {
	t.Helper()
	b, err := journal.OpenBadger(journal.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return map[string]journal.Journal{
		"badger": b,
		"memory": journal.NewMemory(),
	}
}

func rec(id, bookID string, start time.Time) *journal.Record {
	return &journal.Record{
		ID:         id,
		Room:       "book-" + bookID + "-abcd1234",
		BookID:     bookID,
		Chapter:    3,
		TimeOffset: 42.5,
		StartedAt:  start,
		Duration:   95 * time.Second,
		Cause:      "user_stop",
	}
}

func TestAppendAndScan(t *testing.T) {
	ctx := context.Background()
	base := time.UnixMilli(1756200000000)

	for name, j := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			// Interleave books; scans must come back grouped and ordered.
			if err := j.Append(ctx, rec("s2", "moby-dick", base.Add(time.Hour))); err != nil {
				t.Fatalf("append: %v", err)
			}
			if err := j.Append(ctx, rec("s3", "dracula", base)); err != nil {
				t.Fatalf("append: %v", err)
			}
			if err := j.Append(ctx, rec("s1", "moby-dick", base)); err != nil {
				t.Fatalf("append: %v", err)
			}

			var got []string
			for r, err := range j.ByBook(ctx, "moby-dick") {
				if err != nil {
					t.Fatalf("scan: %v", err)
				}
				got = append(got, r.ID)
			}
			if len(got) != 2 || got[0] != "s1" || got[1] != "s2" {
				t.Fatalf("ByBook order: got %v, want [s1 s2]", got)
			}

			var all int
			for r, err := range j.All(ctx) {
				if err != nil {
					t.Fatalf("scan all: %v", err)
				}
				if r.Chapter != 3 || r.Duration != 95*time.Second {
					t.Fatalf("record fields lost: %+v", r)
				}
				all++
			}
			if all != 3 {
				t.Fatalf("All: got %d records, want 3", all)
			}
		})
	}
}

func TestByBookPrefixIsExact(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemory()
	base := time.UnixMilli(1756200000000)

	if err := j.Append(ctx, rec("a", "dune", base)); err != nil {
		t.Fatal(err)
	}
	if err := j.Append(ctx, rec("b", "dune-messiah", base)); err != nil {
		t.Fatal(err)
	}

	var got []string
	for r, err := range j.ByBook(ctx, "dune") {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, r.BookID)
	}
	if len(got) != 1 || got[0] != "dune" {
		t.Fatalf("prefix leaked across books: %v", got)
	}
}

func TestRecordJSON(t *testing.T) {
	r := rec("s1", "moby-dick", time.UnixMilli(1756200000123))
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"startedAt":1756200000123`, `"duration":"1m35s"`, `"bookId":"moby-dick"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("JSON %s missing %s", s, want)
		}
	}
}
