// Package buffer implements the fixed-capacity ring buffer each half of a
// Connection uses to hold bytes in flight between a non-blocking socket
// and its peer.
package buffer

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"
)

// DefaultCapacity is the per-half buffer size used when a listener
// doesn't override it: four memory pages, "single-page-scale" per
// the per-half buffer contract.
const DefaultCapacity = 16 * 1024

// Buffer is a byte ring of fixed capacity with recv/send helpers and a
// non-consuming peek, matching the ring buffer's contract. It is not safe
// for concurrent use; every Connection's buffers are touched only from
// the single reactor goroutine.
type Buffer struct {
	data []byte
	head int // index of the first pending byte
	len  int // number of pending bytes
}

func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Len returns the number of pending (unsent) bytes.
func (b *Buffer) Len() int { return b.len }

// Room returns the number of bytes that can still be received.
func (b *Buffer) Room() int { return len(b.data) - b.len }

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Peek copies up to len(dst) pending bytes into dst without consuming
// them, returning the number copied. Idempotent: repeated Peek calls
// return the same prefix until Recv or Send advances the cursors, so a
// failed parse can be retried against more data on the next event.
func (b *Buffer) Peek(dst []byte) int {
	n := len(dst)
	if n > b.len {
		n = b.len
	}
	for i := 0; i < n; i++ {
		dst[i] = b.data[(b.head+i)%len(b.data)]
	}
	return n
}

// Recv issues a single non-blocking read from fd sized to the buffer's
// free space. It returns the number of bytes read and a nil error on
// success, (0, nil) if there was no room or the read would block, (0,
// io.EOF) on peer EOF, and (0, err) on any other error.
func (b *Buffer) Recv(fd int) (int, error) {
	room := b.Room()
	if room == 0 {
		return 0, nil
	}

	scratch := make([]byte, room)
	n, err := unix.Read(fd, scratch)
	switch {
	case err != nil && isTemporary(err):
		return 0, nil
	case err != nil:
		return 0, err
	case n == 0:
		return 0, io.EOF
	}

	tail := (b.head + b.len) % len(b.data)
	for i := 0; i < n; i++ {
		b.data[(tail+i)%len(b.data)] = scratch[i]
	}
	b.len += n
	return n, nil
}

// Send issues a single non-blocking write of the pending prefix to fd.
// It returns the number of bytes written and a nil error on success, or
// (0, nil) if there was nothing to send or the write would block.
func (b *Buffer) Send(fd int) (int, error) {
	if b.len == 0 {
		return 0, nil
	}

	// Write only the first contiguous run; a wrapped remainder is picked
	// up on the next Send once the watcher fires again.
	run := b.len
	if b.head+run > len(b.data) {
		run = len(b.data) - b.head
	}

	n, err := unix.Write(fd, b.data[b.head:b.head+run])
	switch {
	case err != nil && isTemporary(err):
		return 0, nil
	case err != nil:
		return 0, err
	}

	b.head = (b.head + n) % len(b.data)
	b.len -= n
	return n, nil
}

func isTemporary(err error) bool {
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINTR)
}
