package globalmem

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// WaitMode selects how readers wait on a WriteSignal.
type WaitMode int

const (
	// WaitLatched blocks only until the first write has completed. After
	// that, waits return immediately.
	WaitLatched WaitMode = iota

	// WaitUnconditional blocks every wait until the next notification. A
	// notification sent before the reader started waiting is not seen.
	WaitUnconditional
)

// String returns the config spelling of the mode.
func (m WaitMode) String() string {
	switch m {
	case WaitLatched:
		return "latched"
	case WaitUnconditional:
		return "unconditional"
	default:
		return fmt.Sprintf("WaitMode(%d)", int(m))
	}
}

// ParseWaitMode parses "latched" or "unconditional". The empty string maps
// to WaitLatched.
func ParseWaitMode(s string) (WaitMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latched":
		return WaitLatched, nil
	case "unconditional", "literal":
		return WaitUnconditional, nil
	default:
		return 0, fmt.Errorf("globalmem: unknown wait mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m WaitMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *WaitMode) UnmarshalText(b []byte) error {
	v, err := ParseWaitMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// WriteSignal wakes readers when a write completes.
//
// It is a condition variable plus the lock the condition variable needs.
// Every NotifyAll bumps a generation counter; waiters use the counter to
// tell a real notification apart from a wake-up caused by another waiter
// giving up.
type WriteSignal struct {
	cond *sync.Cond

	mu sync.Mutex
	// writeCompleted latches on the first NotifyAll.
	writeCompleted bool
	mode           WaitMode
	generation     uint64
	waiters        int
	closed         bool
}

// NewWriteSignal creates a WriteSignal using the given wait mode.
func NewWriteSignal(mode WaitMode) *WriteSignal {
	s := &WriteSignal{mode: mode}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Mode returns the wait mode.
func (s *WriteSignal) Mode() WaitMode {
	return s.mode
}

// Wait blocks until a write notification satisfies the wait mode, or the
// signal is closed. There is no timeout.
func (s *WriteSignal) Wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitLocked(nil)
}

// WaitContext is Wait with cancellation. When ctx ends first it returns an
// error wrapping both ErrInterrupted and ctx.Err().
func (s *WriteSignal) WaitContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cond.Broadcast()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitLocked(ctx)
}

func (s *WriteSignal) waitLocked(ctx context.Context) error {
	start := s.generation
	s.waiters++
	defer func() { s.waiters-- }()

	for {
		if s.closed {
			return ErrClosed
		}
		switch s.mode {
		case WaitUnconditional:
			if s.generation != start {
				return nil
			}
		default:
			if s.writeCompleted {
				return nil
			}
		}
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrInterrupted, err)
			}
		}
		s.cond.Wait()
	}
}

// NotifyAll records a completed write and wakes every blocked reader. It
// does not wait for anyone. After Close it records nothing and returns
// ErrClosed.
func (s *WriteSignal) NotifyAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.generation++
	s.writeCompleted = true
	s.cond.Broadcast()
	return nil
}

// Generation returns the number of notifications since creation.
func (s *WriteSignal) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Waiters returns the number of readers currently blocked.
func (s *WriteSignal) Waiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters
}

// Close wakes every waiter with ErrClosed. Later waits fail immediately.
func (s *WriteSignal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	return nil
}

func (s *WriteSignal) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
