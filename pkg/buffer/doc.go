// Package buffer provides a thread-safe growable FIFO buffer used for the
// pending-byte queues on the capture and playback paths of a voice session.
// Each queue is guarded by a single lock and mutated only through the owning
// component's methods.
package buffer
