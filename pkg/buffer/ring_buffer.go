package buffer

import (
	"slices"
	"sync"
)

// RingBuffer is a thread-safe ring of elements. When full, a new element
// overwrites the oldest one. Reads never consume: Bytes returns a copy of
// the retained window.
//
// head and tail count elements ever added; tail-head is the number retained.
type RingBuffer[T any] struct {
	mu         sync.Mutex
	buf        []T
	head, tail int64
}

// RingN creates a RingBuffer that retains the last size elements. A size
// below one is raised to one.
func RingN[T any](size int) *RingBuffer[T] {
	return &RingBuffer[T]{buf: make([]T, max(size, 1))}
}

// Add appends t, overwriting the oldest element if the buffer is full.
func (rb *RingBuffer[T]) Add(t T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.addLocked(t)
}

func (rb *RingBuffer[T]) addLocked(t T) {
	size := int64(len(rb.buf))
	rb.buf[rb.tail%size] = t
	rb.tail++
	rb.head = max(rb.head, rb.tail-size)
}

// Write appends every element of p in order. Only the last len(buf)
// elements can survive, so the rest are counted but not copied.
func (rb *RingBuffer[T]) Write(p []T) (int, error) {
	n := len(p)
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if skip := len(p) - len(rb.buf); skip > 0 {
		rb.tail += int64(skip)
		p = p[skip:]
	}
	for _, t := range p {
		rb.addLocked(t)
	}
	return n, nil
}

// Bytes returns a copy of the retained elements, oldest first, or nil when
// the buffer is empty.
func (rb *RingBuffer[T]) Bytes() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.head == rb.tail {
		return nil
	}
	size := int64(len(rb.buf))
	h := rb.head % size
	t := rb.tail % size
	if h < t {
		return slices.Clone(rb.buf[h:t])
	}
	return slices.Concat(rb.buf[h:], rb.buf[:t])
}

// Len returns the number of elements currently retained.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.tail - rb.head)
}

// Total returns the number of elements ever added, including those that
// have been overwritten.
func (rb *RingBuffer[T]) Total() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.tail
}
