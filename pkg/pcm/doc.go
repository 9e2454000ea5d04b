// Package pcm provides format math and sample helpers for the raw PCM audio
// contracts used by voice sessions: 16-bit mono 16 kHz on the capture path and
// 16-bit mono 24 kHz on the playback path. The formats are fixed contract
// values, not negotiated.
package pcm
