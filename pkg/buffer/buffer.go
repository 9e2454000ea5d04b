package buffer

import (
	"fmt"
	"io"
	"sync"
)

// Buffer is a thread-safe growable FIFO buffer. It backs the two pending-byte
// queues of a voice session: the capture accumulation buffer and the playback
// pending queue. Reads block while the buffer is empty; writers unblock them
// through a notification channel.
//
// CloseWrite allows reads to drain remaining data before returning io.EOF;
// CloseWithError unblocks everything immediately with the given error.
type Buffer[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	closeWrite bool
	closeErr   error
	buf        []T
}

// N creates a new Buffer with an initial capacity of n elements. The capacity
// is a hint; the buffer grows beyond it as needed.
func N[T any](n int) *Buffer[T] {
	return &Buffer[T]{
		writeNotify: make(chan struct{}, 1),
		buf:         make([]T, 0, n),
	}
}

// Write appends all of p to the buffer and wakes one waiting reader.
// Returns io.ErrClosedPipe (wrapped) if the buffer is closed for writing.
func (b *Buffer[T]) Write(p []T) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return 0, fmt.Errorf("buffer: write to closed buffer: %w", b.closeErr)
	}
	if b.closeWrite {
		return 0, fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	select {
	case b.writeNotify <- struct{}{}:
	default:
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Read copies up to len(p) elements from the front of the buffer. It blocks
// until at least one element is available or the buffer is closed. Returns
// io.EOF once the buffer is closed for writing and drained.
func (b *Buffer[T]) Read(p []T) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return 0, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
	}
	for len(b.buf) == 0 {
		if b.closeWrite {
			return 0, io.EOF
		}
		b.mu.Unlock()
		<-b.writeNotify
		b.mu.Lock()
		if b.closeErr != nil {
			return 0, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
		}
	}
	n = copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// TryRead copies up to len(p) elements without blocking. It returns n == 0
// when the buffer is empty.
func (b *Buffer[T]) TryRead(p []T) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return 0, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
	}
	if len(b.buf) == 0 {
		if b.closeWrite {
			return 0, io.EOF
		}
		return 0, nil
	}
	n = copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// Discard removes the next n elements without reading them. Discarding more
// than is buffered empties the buffer.
func (b *Buffer[T]) Discard(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return fmt.Errorf("buffer: discard from closed buffer: %w", b.closeErr)
	}
	if n > len(b.buf) {
		b.buf = b.buf[:0]
		return nil
	}
	b.buf = b.buf[n:]
	return nil
}

func (b *Buffer[T]) closeWithErrorLocked(err error) error {
	if b.closeErr != nil {
		return nil
	}
	b.closeErr = err
	b.buf = nil
	if !b.closeWrite {
		b.closeWrite = true
		close(b.writeNotify)
	}
	return nil
}

// CloseWithError closes both ends of the buffer with the specified error.
// Pending operations unblock and return it. A nil err defaults to
// io.ErrClosedPipe.
func (b *Buffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeWithErrorLocked(err)
}

// Close is CloseWithError(io.ErrClosedPipe). Implements io.Closer.
func (b *Buffer[T]) Close() error {
	return b.CloseWithError(io.ErrClosedPipe)
}

// CloseWrite closes the write side, letting readers drain remaining data
// before hitting io.EOF.
func (b *Buffer[T]) CloseWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeWrite {
		return nil
	}
	b.closeWrite = true
	close(b.writeNotify)
	return nil
}

// Error returns the error the buffer was closed with, if any.
func (b *Buffer[T]) Error() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeErr
}

// Reset drops all buffered elements, keeping the underlying capacity. A closed
// buffer stays closed.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = b.buf[:0]
}

// Len returns the number of buffered elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Bytes returns the internal slice. The caller must not modify it and should
// use it before the next concurrent mutation.
func (b *Buffer[T]) Bytes() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf
}
