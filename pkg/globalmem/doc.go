// Package globalmem implements a shared fixed-size memory device.
//
// A Memory owns exactly one SharedBuffer and one WriteSignal. Every file
// opened against the device shares them, whatever minor it was opened on:
//
//   - SharedBuffer: a fixed-capacity byte array guarded by a mutex. Writes and
//     reads take an explicit offset and are truncated at capacity, never
//     wrapped. There is no per-file cursor.
//
//   - WriteSignal: a condition variable with its companion lock. A completed
//     write notifies every blocked reader. Readers wait on the signal before
//     they touch the buffer, so a read blocks until a write has happened.
//
// The buffer lock and the signal lock are separate. A reader never holds the
// buffer lock while it waits, and a writer never holds the signal lock while
// it copies.
//
// Two wait modes are provided. WaitLatched (the default) guards the wait with
// a completed-write flag that latches on the first notification: once any
// write has completed, reads return without blocking. WaitUnconditional
// reproduces the plain protocol where every read waits for the next
// notification, so a read issued after the last write blocks until another
// write arrives. Only WaitUnconditional consults the write generation.
//
// Read has no deadline. Without a writer it blocks forever; use ReadContext
// (or a File opened through a chrdev.Registration) to bound the wait.
//
// Example usage:
//
//	mem := globalmem.New(nil)
//	defer mem.Close()
//
//	go mem.Write(0, []byte("hello"))
//
//	p := make([]byte, 5)
//	n, err := mem.Read(0, p) // blocks until the write above completes
package globalmem
