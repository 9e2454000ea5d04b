package voicesession

import (
	"context"
	"math/rand"
	"time"
)

const (
	// visualizerInterval is the amplitude refresh rate.
	visualizerInterval = 100 * time.Millisecond

	// Base amplitudes. The bars sit higher while the agent is speaking than
	// while the user holds the floor.
	visualizerBaseAgent = 0.65
	visualizerBaseUser  = 0.30

	visualizerJitter = 0.12
)

// Visualizer produces a bounded amplitude sequence for UI feedback while a
// session is listening. The values are decorative: they must keep moving, not
// carry signal. Bars fall off from the center and wiggle within a bounded
// jitter.
type Visualizer struct {
	controller *Controller
	bars       int
	rng        *rand.Rand
}

// NewVisualizer creates a Visualizer with the given bar count.
func NewVisualizer(c *Controller, bars int) *Visualizer {
	if bars <= 0 {
		bars = 7
	}
	return &Visualizer{
		controller: c,
		bars:       bars,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run emits one amplitude frame per tick until ctx is cancelled. While the
// controller is not listening the bars decay to zero instead of freezing.
func (v *Visualizer) Run(ctx context.Context) <-chan []float64 {
	out := make(chan []float64, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(visualizerInterval)
		defer ticker.Stop()
		current := make([]float64, v.bars)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v.step(current)
				frame := make([]float64, v.bars)
				copy(frame, current)
				select {
				case out <- frame:
				default:
				}
			}
		}
	}()
	return out
}

// step advances the amplitude frame in place.
func (v *Visualizer) step(current []float64) {
	listening, agentSpeaking := v.controller.IsListening()
	if !listening {
		for i := range current {
			current[i] *= 0.6
			if current[i] < 0.01 {
				current[i] = 0
			}
		}
		return
	}
	base := visualizerBaseUser
	if agentSpeaking {
		base = visualizerBaseAgent
	}
	center := float64(len(current)-1) / 2
	for i := range current {
		dist := float64(i) - center
		if dist < 0 {
			dist = -dist
		}
		falloff := 1 - dist/(center+1)
		amp := base*falloff + (v.rng.Float64()*2-1)*visualizerJitter
		if amp < 0 {
			amp = 0
		}
		if amp > 1 {
			amp = 1
		}
		current[i] = amp
	}
}
