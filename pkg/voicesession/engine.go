package voicesession

import (
	"sync"
	"time"

	"github.com/sagevox/sagevox-go/pkg/buffer"
	"github.com/sagevox/sagevox-go/pkg/pcm"
	"github.com/sagevox/sagevox-go/pkg/resampler"
)

const (
	// captureFlushBytes is the fixed capture frame size: 4096 bytes of
	// 16-bit mono 16 kHz PCM, 128ms. Frames are emitted only when the
	// accumulator reaches this threshold, never on a timer.
	captureFlushBytes = 4096

	// playbackChunkBytes is the fixed render chunk size: 4800 bytes of
	// 16-bit mono 24 kHz PCM, 100ms.
	playbackChunkBytes = 4800

	// maxChunksPerPass bounds how many chunks one scheduling pass hands to
	// the render device before yielding.
	maxChunksPerPass = 5

	// schedulingYield is the cooperative pause between scheduling passes.
	schedulingYield = 10 * time.Millisecond
)

// RouteMode selects how the host device's audio hardware is configured.
type RouteMode int

const (
	// RouteVoiceSession configures simultaneous capture and render for a
	// live conversation.
	RouteVoiceSession RouteMode = iota

	// RoutePlayback configures render-only output for book playback.
	RoutePlayback
)

func (m RouteMode) String() string {
	switch m {
	case RouteVoiceSession:
		return "voiceSession"
	case RoutePlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// Router applies an audio route to the host device. Implementations wrap the
// platform's audio session configuration.
type Router interface {
	Configure(mode RouteMode) error
}

// CaptureDevice is a microphone tap delivering PCM frames in the device's
// native format. Frames() yields frames between Start and Stop; Stop closes
// the channel.
type CaptureDevice interface {
	Format() pcm.Format
	Start() error
	Stop() error
	Frames() <-chan []byte
}

// RenderDevice accepts fixed-size chunks of 16-bit mono 24 kHz PCM for
// playback. Stop discards anything the device still holds.
type RenderDevice interface {
	Render(chunk []byte) error
	Stop() error
}

// Ensure all event types implement EngineEvent.
var (
	_ EngineEvent = (*FrameCaptured)(nil)
	_ EngineEvent = (*IOStateChanged)(nil)
	_ EngineEvent = (*EngineError)(nil)
)

// EngineEvent is a tagged event on the engine's outbound stream.
type EngineEvent interface {
	isEngineEvent()
}

// FrameCaptured carries one uplink frame of 16-bit mono 16 kHz PCM. Full
// frames are exactly captureFlushBytes; the final frame of a capture run may
// be shorter.
type FrameCaptured struct {
	Data []byte
}

func (*FrameCaptured) isEngineEvent() {}

// IOStateChanged reports a change of the combined capture/playback state.
type IOStateChanged struct {
	State IOState
}

func (*IOStateChanged) isEngineEvent() {}

// EngineError reports a recoverable audio-path failure. The engine keeps
// running; the failed frame or chunk is skipped.
type EngineError struct {
	Err error
}

func (*EngineError) isEngineEvent() {}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Router  Router
	Capture CaptureDevice
	Render  RenderDevice

	// Logger defaults to DefaultLogger().
	Logger Logger
}

// Engine owns the device-side audio path: microphone capture into fixed
// uplink frames and downlink audio scheduling into the render device.
//
// Capture frames are resampled from the device's native format to 16-bit
// mono 16 kHz and accumulated until a full frame is ready. No silence gating
// happens on-device; every captured frame is emitted and voice activity
// detection is the remote agent's job.
type Engine struct {
	router  Router
	capture CaptureDevice
	render  RenderDevice
	logger  Logger

	events chan EngineEvent

	// mu guards the route and the two I/O flags. The combined IOState is
	// recomputed from both flags on every mutation.
	mu           sync.Mutex
	mode         RouteMode
	configured   bool
	recording    bool
	playing      bool
	wasRecording bool
	captureDone  chan struct{}
	captureLevel float64
	renderLevel  float64

	// playMu guards the pending playback queue; StopPlayback drains it
	// atomically with respect to chunk pops.
	playMu      sync.Mutex
	pending     buffer.BytesBuffer
	schedulerOn bool
}

// NewEngine creates an Engine around the given device collaborators.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		router:  opts.Router,
		capture: opts.Capture,
		render:  opts.Render,
		logger:  opts.Logger,
		events:  make(chan EngineEvent, 256),
		pending: buffer.BytesN(4 * playbackChunkBytes),
	}
	if e.logger == nil {
		e.logger = DefaultLogger()
	}
	return e
}

// Events returns the engine's outbound event stream.
func (e *Engine) Events() <-chan EngineEvent { return e.events }

func (e *Engine) emit(ev EngineEvent) {
	select {
	case e.events <- ev:
	default:
		e.logger.DebugPrintf("engine event dropped: %T", ev)
	}
}

// ConfigureSession applies the audio route. Reapplying the current route is
// a no-op; a denied route returns an AudioConfigError and leaves the engine
// state untouched.
func (e *Engine) ConfigureSession(mode RouteMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configured && e.mode == mode {
		return nil
	}
	if err := e.router.Configure(mode); err != nil {
		return &AudioConfigError{Mode: mode, Err: err}
	}
	e.configured = true
	e.mode = mode
	return nil
}

// IOState returns the combined capture/playback state.
func (e *Engine) IOState() IOState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CombineIO(e.recording, e.playing)
}

// CaptureLevel returns the RMS level of the most recent uplink frame,
// normalized to [0, 1].
func (e *Engine) CaptureLevel() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.captureLevel
}

// RenderLevel returns the RMS level of the most recent rendered chunk,
// normalized to [0, 1].
func (e *Engine) RenderLevel() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderLevel
}

// StartCapture starts the microphone tap. Starting while already capturing
// is a no-op.
func (e *Engine) StartCapture() error {
	e.mu.Lock()
	if e.recording {
		e.mu.Unlock()
		return nil
	}
	native := e.capture.Format()
	conv, err := resampler.New(
		resampler.Format{SampleRate: native.SampleRate(), Stereo: native.Channels() == 2},
		resampler.Format{SampleRate: pcm.L16Mono16K.SampleRate()},
	)
	if err != nil {
		e.mu.Unlock()
		return e.logger.Errorf("capture converter: %v", err)
	}
	if err := e.capture.Start(); err != nil {
		e.mu.Unlock()
		conv.Close()
		return &AudioConfigError{Mode: RouteVoiceSession, Err: err}
	}
	done := make(chan struct{})
	e.recording = true
	e.captureDone = done
	playing := e.playing
	e.mu.Unlock()

	e.emit(&IOStateChanged{State: CombineIO(true, playing)})
	go e.captureLoop(conv, done)
	return nil
}

// captureLoop accumulates converted frames and flushes full ones. A partial
// accumulator is flushed when the device stops.
func (e *Engine) captureLoop(conv *resampler.Converter, done chan struct{}) {
	defer close(done)

	var acc []byte
	flush := func(n int) {
		chunk := make([]byte, n)
		copy(chunk, acc)
		acc = acc[n:]
		e.mu.Lock()
		e.captureLevel = pcm.Level(chunk)
		e.mu.Unlock()
		e.emit(&FrameCaptured{Data: chunk})
	}

	for frame := range e.capture.Frames() {
		out, err := conv.Convert(frame)
		if err != nil {
			e.emit(&EngineError{Err: err})
			continue
		}
		acc = append(acc, out...)
		for len(acc) >= captureFlushBytes {
			flush(captureFlushBytes)
		}
	}
	if len(acc) > 0 {
		flush(len(acc))
	}
	conv.Close()
}

// StopCapture stops the microphone tap and flushes any partial frame before
// returning. Stopping while not capturing is a no-op.
func (e *Engine) StopCapture() error {
	e.mu.Lock()
	if !e.recording {
		e.mu.Unlock()
		return nil
	}
	e.recording = false
	done := e.captureDone
	e.captureDone = nil
	playing := e.playing
	e.mu.Unlock()

	if err := e.capture.Stop(); err != nil {
		e.logger.WarnPrintf("capture stop: %v", err)
	}
	<-done

	e.emit(&IOStateChanged{State: CombineIO(false, playing)})
	return nil
}

// QueuePlayback appends downlink audio to the pending queue and makes sure a
// scheduler pass is running. Audio is 16-bit mono 24 kHz PCM.
func (e *Engine) QueuePlayback(b []byte) {
	if len(b) == 0 {
		return
	}
	e.playMu.Lock()
	if _, err := e.pending.Write(b); err != nil {
		e.playMu.Unlock()
		e.emit(&EngineError{Err: e.logger.Errorf("queue playback: %v", err)})
		return
	}
	startScheduler := !e.schedulerOn
	if startScheduler {
		e.schedulerOn = true
	}
	e.playMu.Unlock()

	e.mu.Lock()
	started := !e.playing
	if started {
		e.playing = true
	}
	recording := e.recording
	e.mu.Unlock()

	if started {
		e.emit(&IOStateChanged{State: CombineIO(recording, true)})
	}
	if startScheduler {
		go e.schedule()
	}
}

func (e *Engine) isPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// schedule hands pending audio to the render device in fixed full-size
// chunks, at most maxChunksPerPass per pass with a cooperative yield between
// passes. It exits when less than one full chunk is pending or playback
// stops; a sub-chunk tail stays queued until more audio arrives
// (QueuePlayback restarts the scheduler) or StopPlayback discards it.
func (e *Engine) schedule() {
	for {
		if !e.isPlaying() {
			e.playMu.Lock()
			e.schedulerOn = false
			e.playMu.Unlock()
			return
		}
		for rendered := 0; rendered < maxChunksPerPass; rendered++ {
			e.playMu.Lock()
			if e.pending.Len() < playbackChunkBytes {
				e.schedulerOn = false
				e.playMu.Unlock()
				return
			}
			chunk := make([]byte, playbackChunkBytes)
			if _, err := e.pending.TryRead(chunk); err != nil {
				e.schedulerOn = false
				e.playMu.Unlock()
				return
			}
			err := e.render.Render(chunk)
			e.playMu.Unlock()
			if err != nil {
				// Skip the failed chunk; the stream continues.
				e.emit(&EngineError{Err: e.logger.Errorf("render chunk: %v", err)})
				continue
			}
			e.mu.Lock()
			e.renderLevel = pcm.Level(chunk)
			e.mu.Unlock()
		}
		time.Sleep(schedulingYield)
	}
}

// StopPlayback stops the render device and drains the pending queue. The
// drain is atomic with respect to scheduler chunk pops: once StopPlayback
// returns, no queued audio from before the call will reach the device.
func (e *Engine) StopPlayback() {
	e.mu.Lock()
	wasPlaying := e.playing
	e.playing = false
	recording := e.recording
	e.mu.Unlock()

	e.playMu.Lock()
	e.pending.Reset()
	e.playMu.Unlock()

	if err := e.render.Stop(); err != nil {
		e.logger.DebugPrintf("render stop: %v", err)
	}
	if wasPlaying {
		e.emit(&IOStateChanged{State: CombineIO(recording, false)})
	}
	e.mu.Lock()
	e.renderLevel = 0
	e.mu.Unlock()
}

// HandleInterruption responds to a system audio interruption (a phone call,
// another app taking the audio session). On begin the engine remembers
// whether it was capturing and fully stops; on end it restarts capture only
// if it was capturing before.
func (e *Engine) HandleInterruption(began bool) {
	if began {
		e.mu.Lock()
		e.wasRecording = e.recording
		e.mu.Unlock()
		if err := e.StopCapture(); err != nil {
			e.logger.WarnPrintf("interruption capture stop: %v", err)
		}
		e.StopPlayback()
		return
	}
	e.mu.Lock()
	resume := e.wasRecording
	e.wasRecording = false
	e.mu.Unlock()
	if resume {
		if err := e.StartCapture(); err != nil {
			e.emit(&EngineError{Err: err})
		}
	}
}

// Close stops both audio paths. The event stream stays open; it simply goes
// quiet.
func (e *Engine) Close() error {
	err := e.StopCapture()
	e.StopPlayback()
	return err
}
