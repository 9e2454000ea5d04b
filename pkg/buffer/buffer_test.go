package buffer

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestBuffer_WriteRead(t *testing.T) {
	b := Bytes()

	data := []byte{1, 2, 3, 4, 5}
	n, err := b.Write(data)
	if err != nil || n != len(data) {
		t.Fatalf("Write = (%d, %v); want (%d, nil)", n, err, len(data))
	}
	if b.Len() != 5 {
		t.Fatalf("Len = %d; want 5", b.Len())
	}

	p := make([]byte, 3)
	n, err = b.Read(p)
	if err != nil || n != 3 {
		t.Fatalf("Read = (%d, %v); want (3, nil)", n, err)
	}
	if p[0] != 1 || p[2] != 3 {
		t.Errorf("Read got %v; want [1 2 3]", p)
	}
	if b.Len() != 2 {
		t.Errorf("Len after read = %d; want 2", b.Len())
	}
}

func TestBuffer_ReadBlocksUntilWrite(t *testing.T) {
	b := Bytes()

	done := make(chan byte, 1)
	go func() {
		p := make([]byte, 1)
		if _, err := b.Read(p); err != nil {
			return
		}
		done <- p[0]
	}()

	select {
	case <-done:
		t.Fatal("Read returned before any write")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := b.Write([]byte{42}); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-done:
		if v != 42 {
			t.Errorf("Read got %d; want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after write")
	}
}

func TestBuffer_TryRead(t *testing.T) {
	b := Bytes()

	p := make([]byte, 4)
	n, err := b.TryRead(p)
	if n != 0 || err != nil {
		t.Fatalf("TryRead on empty = (%d, %v); want (0, nil)", n, err)
	}

	b.Write([]byte{9, 8})
	n, err = b.TryRead(p)
	if n != 2 || err != nil {
		t.Fatalf("TryRead = (%d, %v); want (2, nil)", n, err)
	}

	b.CloseWrite()
	if _, err := b.TryRead(p); err != io.EOF {
		t.Errorf("TryRead after CloseWrite on empty = %v; want io.EOF", err)
	}
}

func TestBuffer_CloseWriteDrains(t *testing.T) {
	b := Bytes()
	b.Write([]byte{1, 2})
	b.CloseWrite()

	if _, err := b.Write([]byte{3}); err == nil {
		t.Error("Write after CloseWrite succeeded; want error")
	}

	p := make([]byte, 4)
	n, err := b.Read(p)
	if n != 2 || err != nil {
		t.Fatalf("Read = (%d, %v); want (2, nil)", n, err)
	}
	if _, err := b.Read(p); err != io.EOF {
		t.Errorf("Read after drain = %v; want io.EOF", err)
	}
}

func TestBuffer_CloseWithError(t *testing.T) {
	b := Bytes()
	b.Write([]byte{1})

	cause := errors.New("session torn down")
	b.CloseWithError(cause)

	if !errors.Is(b.Error(), cause) {
		t.Errorf("Error() = %v; want %v", b.Error(), cause)
	}
	if _, err := b.Read(make([]byte, 1)); !errors.Is(err, cause) {
		t.Errorf("Read after close = %v; want wrapped %v", err, cause)
	}
	if b.Len() != 0 {
		t.Errorf("Len after close = %d; want 0", b.Len())
	}
}

func TestBuffer_Reset(t *testing.T) {
	b := Bytes()
	b.Write([]byte{1, 2, 3})
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len after Reset = %d; want 0", b.Len())
	}
	// Still writable after Reset.
	if _, err := b.Write([]byte{4}); err != nil {
		t.Errorf("Write after Reset = %v; want nil", err)
	}
}

func TestBuffer_Discard(t *testing.T) {
	b := Bytes()
	b.Write([]byte{1, 2, 3, 4})

	if err := b.Discard(2); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 2 {
		t.Errorf("Len after Discard(2) = %d; want 2", b.Len())
	}

	// Discarding past the end empties the buffer.
	if err := b.Discard(100); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 {
		t.Errorf("Len after over-discard = %d; want 0", b.Len())
	}
}
