package voicesession

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sagevox/sagevox-go/pkg/book"
	"github.com/sagevox/sagevox-go/pkg/pcm"
)

// --- audio device fakes ---

type fakeRouter struct {
	mu    sync.Mutex
	calls []RouteMode
	err   error
}

func (r *fakeRouter) Configure(mode RouteMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, mode)
	return nil
}

func (r *fakeRouter) configured() []RouteMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RouteMode(nil), r.calls...)
}

// fakeCapture delivers frames in the fixed capture format so the converter
// passes bytes through untouched and counts stay deterministic.
type fakeCapture struct {
	mu      sync.Mutex
	frames  chan []byte
	started int
	stopped int
	err     error
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{frames: make(chan []byte, 16)}
}

func (c *fakeCapture) Format() pcm.Format { return pcm.L16Mono16K }

func (c *fakeCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.started++
	if c.stopped > 0 {
		c.frames = make(chan []byte, 16)
		c.stopped = 0
	}
	return nil
}

func (c *fakeCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped++
	if c.stopped == 1 {
		close(c.frames)
	}
	return nil
}

func (c *fakeCapture) Frames() <-chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

func (c *fakeCapture) feed(frame []byte) {
	c.mu.Lock()
	ch := c.frames
	c.mu.Unlock()
	ch <- frame
}

type fakeRender struct {
	mu      sync.Mutex
	chunks  [][]byte
	stopped int
	err     error
	delay   time.Duration
}

func (r *fakeRender) Render(chunk []byte) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	r.chunks = append(r.chunks, cp)
	return nil
}

func (r *fakeRender) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
	return nil
}

func (r *fakeRender) rendered() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.chunks...)
}

// --- transport fakes ---

type fakeIssuer struct {
	mu   sync.Mutex
	reqs []TokenRequest
	resp *TokenResponse
	err  error
}

func (i *fakeIssuer) IssueToken(_ context.Context, req TokenRequest) (*TokenResponse, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reqs = append(i.reqs, req)
	if i.err != nil {
		return nil, i.err
	}
	if i.resp != nil {
		return i.resp, nil
	}
	return &TokenResponse{
		Token: "test-token",
		URL:   "wss://voice.example.com",
		Room:  "book-" + req.BookID + "-deadbeef",
	}, nil
}

type fakeRoom struct {
	name   string
	events chan RoomEvent

	mu         sync.Mutex
	micEnabled bool
	audio      [][]byte
	data       [][]byte
	closed     int
}

func newFakeRoom(name string) *fakeRoom {
	return &fakeRoom{name: name, events: make(chan RoomEvent, 32)}
}

func (r *fakeRoom) Name() string { return r.name }

func (r *fakeRoom) SetMicEnabled(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.micEnabled = enabled
	return nil
}

func (r *fakeRoom) WriteAudio(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(p))
	copy(cp, p)
	r.audio = append(r.audio, cp)
	return nil
}

func (r *fakeRoom) SendData(_ context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.data = append(r.data, cp)
	return nil
}

func (r *fakeRoom) Events() <-chan RoomEvent { return r.events }

func (r *fakeRoom) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	if r.closed == 1 {
		r.events <- &RoomClosed{}
		close(r.events)
	}
	return nil
}

func (r *fakeRoom) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *fakeRoom) sentData() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.data...)
}

func (r *fakeRoom) mic() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.micEnabled
}

type fakeDialer struct {
	mu    sync.Mutex
	room  *fakeRoom
	err   error
	block bool // never resolve until the context is cancelled
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context, url, token, roomName string) (Room, error) {
	d.mu.Lock()
	d.dials++
	block, err, room := d.block, d.err, d.room
	d.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if room == nil {
		room = newFakeRoom(roomName)
		d.mu.Lock()
		d.room = room
		d.mu.Unlock()
	}
	return room, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) dialedRoom() *fakeRoom {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.room
}

// --- controller fakes ---

type fakeGate struct {
	granted bool
	err     error
}

func (g *fakeGate) RequestMicrophone(context.Context) (bool, error) {
	return g.granted, g.err
}

type fakeSource struct {
	snap PlaybackSnapshot
}

func (s *fakeSource) Snapshot() PlaybackSnapshot { return s.snap }

type fakeRecorder struct {
	mu   sync.Mutex
	recs []SessionRecord
}

func (r *fakeRecorder) Record(rec SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *fakeRecorder) recorded() []SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SessionRecord(nil), r.recs...)
}

// --- helpers ---

func testBook() *book.Book {
	return &book.Book{
		ID:            "moby-dick",
		Title:         "Moby Dick",
		Author:        "Herman Melville",
		Description:   "A whale of a tale.",
		NarratorVoice: "Charon",
		TotalChapters: 2,
		Chapters: []book.Chapter{
			{Number: 1, Title: "Loomings", Transcript: &book.Transcript{
				Segments: []book.TranscriptSegment{
					{Text: "Call me Ishmael.", Start: 0, End: 2},
					{Text: "Some years ago I went to sea.", Start: 2, End: 5},
					{Text: "It is a way I have of driving off the spleen.", Start: 5, End: 9},
				},
			}},
			{Number: 2, Title: "The Carpet-Bag"},
		},
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// nextEvent receives one event of type T from ch, skipping other event types.
func nextEvent[T any, E any](t *testing.T, ch <-chan E, d time.Duration) T {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %T", *new(T))
			}
			if want, ok := any(ev).(T); ok {
				return want
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %T", *new(T))
		}
	}
}
