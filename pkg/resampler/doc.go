// Package resampler converts captured device audio to the fixed 16-bit mono
// 16 kHz uplink format. It wraps a pure Go resampler (no CGO) and adds
// mono/stereo conversion and remainder carry for push-driven capture taps.
package resampler
