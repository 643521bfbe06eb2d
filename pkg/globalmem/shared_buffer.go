package globalmem

import (
	"fmt"
	"sync"
)

// DefaultCapacity is the capacity used when none is configured.
const DefaultCapacity = 0x1000

// SharedBuffer is a fixed-capacity byte array guarded by a mutex.
//
// Reads and writes address the array by offset. A request that runs past
// the end is truncated at capacity; the array never grows and offsets never
// wrap. Offsets at or beyond capacity are rejected before the lock is taken.
type SharedBuffer struct {
	signal *WriteSignal

	mu  sync.Mutex
	buf []byte
}

// NewSharedBuffer creates a SharedBuffer of the given capacity. Writes
// notify signal once the buffer lock is released; signal may be nil.
// A non-positive size selects DefaultCapacity.
func NewSharedBuffer(size int, signal *WriteSignal) *SharedBuffer {
	if size <= 0 {
		size = DefaultCapacity
	}
	return &SharedBuffer{
		signal: signal,
		buf:    make([]byte, size),
	}
}

// Cap returns the buffer capacity.
func (sb *SharedBuffer) Cap() int {
	return len(sb.buf)
}

// span validates offset and returns the start index and the number of bytes
// available for a request of n bytes. The backing array never changes size,
// so no lock is needed.
func (sb *SharedBuffer) span(offset int64, n int) (int, int, error) {
	if offset < 0 || offset >= int64(len(sb.buf)) {
		return 0, 0, fmt.Errorf("%w: %d not in [0, %d)", ErrOffsetOutOfRange, offset, len(sb.buf))
	}
	off := int(offset)
	return off, min(n, len(sb.buf)-off), nil
}

// Write copies p into the buffer starting at offset.
//
// At most Cap()-offset bytes are written; the rest of p is dropped. Bytes
// outside [offset, offset+n) are not touched. After the lock is released
// every reader waiting on the signal is woken, including for an empty p.
//
// Returns the number of bytes written. If the signal was closed while the
// bytes were copied, they stay in the buffer but no notification is
// recorded and the error is ErrClosed.
func (sb *SharedBuffer) Write(offset int64, p []byte) (int, error) {
	off, n, err := sb.span(offset, len(p))
	if err != nil {
		return 0, err
	}

	sb.mu.Lock()
	copy(sb.buf[off:off+n], p)
	sb.mu.Unlock()

	if sb.signal != nil {
		if err := sb.signal.NotifyAll(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Read copies bytes starting at offset into p. It does not wait for
// writers; see Memory.Read for the blocking read.
//
// At most min(len(p), Cap()-offset) bytes are copied.
func (sb *SharedBuffer) Read(offset int64, p []byte) (int, error) {
	off, n, err := sb.span(offset, len(p))
	if err != nil {
		return 0, err
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	return copy(p[:n], sb.buf[off:off+n]), nil
}

// Snapshot returns a copy of the whole buffer.
func (sb *SharedBuffer) Snapshot() []byte {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	out := make([]byte, len(sb.buf))
	copy(out, sb.buf)
	return out
}
