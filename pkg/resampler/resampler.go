package resampler

import (
	"fmt"
	"io"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Converter converts pushed PCM chunks from srcFmt to dstFmt. It supports
// sample rate conversion and mono/stereo conversion. Chunks may arrive with
// arbitrary byte alignment; unaligned remainders are carried to the next push.
//
// A Converter is push-driven to match hardware capture callbacks: each tap
// delivers a native-format chunk and receives the converted bytes back.
type Converter struct {
	srcFmt Format
	dstFmt Format

	mu            sync.Mutex
	closeErr      error
	resampler     resampling.Resampler
	remainder     []byte
	needsResample bool
}

// New creates a Converter from srcFmt to dstFmt. The formats must use 16-bit
// signed integer samples.
func New(srcFmt, dstFmt Format) (*Converter, error) {
	needsResample := srcFmt.SampleRate != dstFmt.SampleRate

	var rs resampling.Resampler
	if needsResample {
		config := &resampling.Config{
			InputRate:  float64(srcFmt.SampleRate),
			OutputRate: float64(dstFmt.SampleRate),
			Channels:   dstFmt.channels(),
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		}
		var err error
		rs, err = resampling.New(config)
		if err != nil {
			return nil, fmt.Errorf("resampler: %w", err)
		}
	}

	return &Converter{
		srcFmt:        srcFmt,
		dstFmt:        dstFmt,
		resampler:     rs,
		needsResample: needsResample,
	}, nil
}

// Convert converts one pushed chunk and returns the converted bytes. The
// returned slice is freshly allocated and owned by the caller. It may be
// empty while the underlying resampler accumulates enough input.
func (c *Converter) Convert(p []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closeErr != nil {
		return nil, c.closeErr
	}

	if len(c.remainder) > 0 {
		p = append(c.remainder, p...)
		c.remainder = nil
	}

	// Carry bytes that do not form a whole source sample frame.
	if mod := len(p) % c.srcFmt.sampleBytes(); mod != 0 {
		c.remainder = append(c.remainder, p[len(p)-mod:]...)
		p = p[:len(p)-mod]
	}
	if len(p) == 0 {
		return nil, nil
	}

	p = c.convertChannels(p)

	if !c.needsResample {
		out := make([]byte, len(p))
		copy(out, p)
		return out, nil
	}

	// Normalize int16 samples to [-1, 1] for the resampler.
	n := len(p) / 2
	input := make([]float64, n)
	for i := 0; i < n; i++ {
		s := int16(p[i*2]) | int16(p[i*2+1])<<8
		input[i] = float64(s) / 32768.0
	}

	output, err := c.resampler.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}
	if len(output) == 0 {
		return nil, nil
	}

	out := make([]byte, len(output)*2)
	for i, s := range output {
		sample := int16(s * 32767.0)
		if s > 1.0 {
			sample = 32767
		} else if s < -1.0 {
			sample = -32768
		}
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out, nil
}

// convertChannels applies mono/stereo conversion in place and returns the
// adjusted slice.
func (c *Converter) convertChannels(p []byte) []byte {
	switch {
	case c.srcFmt.Stereo && !c.dstFmt.Stereo:
		return p[:stereoToMono(p)]
	case !c.srcFmt.Stereo && c.dstFmt.Stereo:
		doubled := make([]byte, len(p)*2)
		copy(doubled, p)
		return doubled[:monoToStereo(doubled)]
	default:
		return p
	}
}

// Close releases resources. Subsequent Convert calls return io.ErrClosedPipe.
func (c *Converter) Close() error {
	return c.CloseWithError(fmt.Errorf("resampler: %w", io.ErrClosedPipe))
}

// CloseWithError releases resources with a custom error returned by
// subsequent Convert calls.
func (c *Converter) CloseWithError(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr == nil {
		c.closeErr = err
	}
	c.resampler = nil
	c.remainder = nil
	return nil
}

// stereoToMono converts stereo 16-bit samples to mono in place by averaging L
// and R channels. Returns the new length in bytes.
func stereoToMono(b []byte) int {
	numFrames := len(b) / 4
	for i := range numFrames {
		j := i * 4
		k := i * 2
		l := int16(b[j]) | int16(b[j+1])<<8
		r := int16(b[j+2]) | int16(b[j+3])<<8
		m := int16((int32(l) + int32(r)) / 2)
		b[k] = byte(m)
		b[k+1] = byte(m >> 8)
	}
	return numFrames * 2
}

// monoToStereo converts mono 16-bit samples to stereo in place by duplicating
// each sample. The slice must already be double the mono length.
func monoToStereo(b []byte) int {
	stereoLen := len(b)
	numSamples := stereoLen / 4
	for i := numSamples - 1; i >= 0; i-- {
		s0, s1 := b[i*2], b[i*2+1]
		j := i * 4
		b[j], b[j+1] = s0, s1
		b[j+2], b[j+3] = s0, s1
	}
	return stereoLen
}
