// Package voicesession orchestrates a live, full-duplex voice conversation
// between a listening device and a remote conversational agent, coordinated
// with local audiobook playback.
//
// The package is built from four pieces:
//
//   - Engine bridges device microphone/speaker hardware to fixed-format PCM
//     byte streams (16-bit mono: 16 kHz uplink, 24 kHz downlink).
//   - Transport manages the real-time room connection carrying bidirectional
//     audio and a reliable control data channel.
//   - The command protocol decodes playback commands the agent sends back
//     and encodes the context_update snapshot sent out.
//   - Controller is the top-level state machine wiring the engine to the
//     transport and sequencing session start/stop against book playback.
//
// Every component exposes a single outbound event stream of tagged variants
// rather than mutable callback properties, so tests can drive them with fake
// event producers.
package voicesession
