package globalmem

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/haivivi/globalmem/pkg/chrdev"
)

var (
	_ chrdev.Device = (*Device)(nil)
	_ chrdev.File   = (*File)(nil)
)

// Device exposes a Memory through the chrdev interfaces. One Device may be
// registered on any number of minors; all of them share the Memory.
type Device struct {
	mem    *Memory
	logger *slog.Logger
}

// NewDevice creates a Device over mem. A nil logger uses slog.Default().
func NewDevice(mem *Memory, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{mem: mem, logger: logger}
}

// Open implements chrdev.Device. It always succeeds.
func (d *Device) Open(_ context.Context, minor int) (chrdev.File, error) {
	f := &File{
		id:     uuid.New(),
		minor:  minor,
		mem:    d.mem,
		logger: d.logger,
	}
	d.logger.Info("globalmem: open device", "minor", minor, "file", f.id)
	return f, nil
}

// File is one open session on the device. It keeps no offset of its own.
type File struct {
	id     uuid.UUID
	minor  int
	mem    *Memory
	logger *slog.Logger
	closed atomic.Bool
}

// ID returns the session identifier.
func (f *File) ID() uuid.UUID {
	return f.id
}

// Minor returns the minor the file was opened on.
func (f *File) Minor() int {
	return f.minor
}

// Write implements chrdev.File. It never waits for readers; ctx is unused.
func (f *File) Write(_ context.Context, offset int64, p []byte) (int, error) {
	if f.closed.Load() {
		return 0, chrdev.ErrFileClosed
	}
	n, err := f.mem.Write(offset, p)
	if err != nil {
		return 0, err
	}
	f.logger.Debug("globalmem: write", "file", f.id, "offset", offset, "n", n)
	return n, nil
}

// Read implements chrdev.File. It waits for a write notification, then
// copies from the buffer. The wait ends early only when ctx does.
func (f *File) Read(ctx context.Context, offset int64, p []byte) (int, error) {
	if f.closed.Load() {
		return 0, chrdev.ErrFileClosed
	}
	f.logger.Info("globalmem: wait read", "file", f.id, "offset", offset, "len", len(p))
	n, err := f.mem.ReadContext(ctx, offset, p)
	if err != nil {
		return 0, err
	}
	f.logger.Debug("globalmem: read", "file", f.id, "offset", offset, "n", n)
	return n, nil
}

// Close implements chrdev.File. The Memory is not affected.
func (f *File) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		f.logger.Debug("globalmem: release device", "file", f.id)
	}
	return nil
}
