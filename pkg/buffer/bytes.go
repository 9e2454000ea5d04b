package buffer

var _ BytesBuffer = (*Buffer[byte])(nil)

// BytesBuffer is the interface the audio engine uses for its pending-byte
// queues. Implementations are thread-safe.
type BytesBuffer interface {
	Write(p []byte) (n int, err error)
	Read(p []byte) (n int, err error)
	TryRead(p []byte) (n int, err error)
	Discard(n int) error
	Close() error
	CloseWrite() error
	CloseWithError(err error) error
	Error() error
	Reset()
	Bytes() []byte
	Len() int
}

// Bytes creates a growable byte Buffer with 4KB initial capacity, sized for
// one capture flush.
func Bytes() *Buffer[byte] {
	return N[byte](1 << 12)
}

// BytesN creates a growable byte Buffer with the given initial capacity.
func BytesN(n int) *Buffer[byte] {
	return N[byte](n)
}
