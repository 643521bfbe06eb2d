package globalmem

import "errors"

var (
	// ErrOffsetOutOfRange is returned when an offset is negative or not below
	// the buffer capacity. Nothing is locked, copied or notified.
	ErrOffsetOutOfRange = errors.New("globalmem: offset out of range")

	// ErrInterrupted is returned when a wait is abandoned because its context
	// ended. No bytes are copied.
	ErrInterrupted = errors.New("globalmem: interrupted")

	// ErrClosed is returned by operations on a closed Memory. Readers blocked
	// at close time wake up with it.
	ErrClosed = errors.New("globalmem: closed")
)
