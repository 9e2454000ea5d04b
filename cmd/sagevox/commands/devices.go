package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sagevox/sagevox-go/pkg/pcm"
	"github.com/sagevox/sagevox-go/pkg/voicesession"
)

// Host-side audio collaborators for a terminal host. A real mobile host
// wires the platform audio stack here; the CLI reads microphone audio from a
// raw PCM file (or sends silence) and writes agent audio to a file or
// discards it.

// noopRouter accepts every route. Terminals have no exclusive audio session.
type noopRouter struct{}

func (noopRouter) Configure(voicesession.RouteMode) error { return nil }

// grantAllGate always grants microphone access.
type grantAllGate struct{}

func (grantAllGate) RequestMicrophone(context.Context) (bool, error) { return true, nil }

// fileCapture replays a raw 16-bit mono 16 kHz PCM file as microphone input,
// paced at real time in 20ms frames. An empty path produces silence.
type fileCapture struct {
	path string

	mu     sync.Mutex
	frames chan []byte
	stop   chan struct{}
}

func newFileCapture(path string) *fileCapture {
	return &fileCapture{path: path}
}

func (c *fileCapture) Format() pcm.Format { return pcm.L16Mono16K }

func (c *fileCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frames != nil {
		return nil
	}

	var r io.ReadCloser
	if c.path != "" {
		f, err := os.Open(c.path)
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		r = f
	}

	c.frames = make(chan []byte, 8)
	c.stop = make(chan struct{})
	go c.loop(r, c.frames, c.stop)
	return nil
}

func (c *fileCapture) loop(r io.ReadCloser, frames chan<- []byte, stop <-chan struct{}) {
	defer close(frames)
	if r != nil {
		defer r.Close()
	}

	const frameDur = 20 * time.Millisecond
	frameBytes := int(pcm.L16Mono16K.BytesInDuration(frameDur))
	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame := make([]byte, frameBytes)
			if r != nil {
				n, err := io.ReadFull(r, frame)
				if err != nil {
					if n == 0 {
						// File exhausted: keep the session alive on silence.
						r.Close()
						r = nil
					} else {
						frame = frame[:n]
					}
				}
			}
			select {
			case frames <- frame:
			case <-stop:
				return
			}
		}
	}
}

func (c *fileCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frames == nil {
		return nil
	}
	close(c.stop)
	c.frames = nil
	c.stop = nil
	return nil
}

func (c *fileCapture) Frames() <-chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// writerRender writes agent audio chunks to an io.Writer. A nil writer
// discards them, which still exercises the full scheduling path.
type writerRender struct {
	mu sync.Mutex
	w  io.Writer
}

func (r *writerRender) Render(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	_, err := r.w.Write(chunk)
	return err
}

func (r *writerRender) Stop() error { return nil }
