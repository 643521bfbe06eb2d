package globalmem

import (
	"context"
)

// Options configures a Memory.
type Options struct {
	// Capacity is the buffer size in bytes. Default is DefaultCapacity.
	Capacity int

	// WaitMode selects the reader wait protocol. Default is WaitLatched.
	WaitMode WaitMode
}

// Stat is a point-in-time view of a Memory.
type Stat struct {
	Capacity int      `json:"capacity" yaml:"capacity" msgpack:"capacity"`
	WaitMode WaitMode `json:"wait_mode" yaml:"wait_mode" msgpack:"wait_mode"`
	Writes   uint64   `json:"writes" yaml:"writes" msgpack:"writes"`
	Waiters  int      `json:"waiters" yaml:"waiters" msgpack:"waiters"`
	Closed   bool     `json:"closed" yaml:"closed" msgpack:"closed"`
}

// Memory is the single shared state behind the device: one SharedBuffer
// and the WriteSignal its writes notify. Create one per device instance and
// hand the pointer to every file.
type Memory struct {
	buf    *SharedBuffer
	signal *WriteSignal
}

// New creates a Memory. Pass nil for default options.
func New(opts *Options) *Memory {
	var o Options
	if opts != nil {
		o = *opts
	}
	signal := NewWriteSignal(o.WaitMode)
	return &Memory{
		buf:    NewSharedBuffer(o.Capacity, signal),
		signal: signal,
	}
}

// Buffer returns the shared buffer.
func (m *Memory) Buffer() *SharedBuffer {
	return m.buf
}

// Signal returns the write signal.
func (m *Memory) Signal() *WriteSignal {
	return m.signal
}

// Write copies p into the buffer at offset and notifies blocked readers.
// It never waits for a reader. A Write racing Close either fails before
// copying or copies and returns ErrClosed; either way the write count is
// not bumped after Close.
func (m *Memory) Write(offset int64, p []byte) (int, error) {
	if m.signal.isClosed() {
		return 0, ErrClosed
	}
	return m.buf.Write(offset, p)
}

// Read waits on the write signal and then copies from the buffer at offset
// into p. An invalid offset fails before waiting.
//
// Read has no deadline: without a writer it never returns. Use ReadContext
// to bound it.
func (m *Memory) Read(offset int64, p []byte) (int, error) {
	if _, _, err := m.buf.span(offset, len(p)); err != nil {
		return 0, err
	}
	if err := m.signal.Wait(); err != nil {
		return 0, err
	}
	return m.buf.Read(offset, p)
}

// ReadContext is Read with cancellation. If ctx ends while waiting, it
// returns an error wrapping ErrInterrupted and nothing is copied.
func (m *Memory) ReadContext(ctx context.Context, offset int64, p []byte) (int, error) {
	if _, _, err := m.buf.span(offset, len(p)); err != nil {
		return 0, err
	}
	if err := m.signal.WaitContext(ctx); err != nil {
		return 0, err
	}
	return m.buf.Read(offset, p)
}

// Stat reports capacity, wait mode and signal counters.
func (m *Memory) Stat() Stat {
	m.signal.mu.Lock()
	defer m.signal.mu.Unlock()
	return Stat{
		Capacity: m.buf.Cap(),
		WaitMode: m.signal.mode,
		Writes:   m.signal.generation,
		Waiters:  m.signal.waiters,
		Closed:   m.signal.closed,
	}
}

// Close wakes blocked readers with ErrClosed and rejects later reads and
// writes.
func (m *Memory) Close() error {
	return m.signal.Close()
}
