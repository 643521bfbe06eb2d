package chrdev

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registration owns a range of minors [Base, Base+Count) under one name.
type Registration struct {
	name   string
	base   int
	logger *slog.Logger

	mu      sync.RWMutex
	devices []Device
	next    int
}

// NewRegistration reserves count minors starting at base. A nil logger
// uses slog.Default().
func NewRegistration(name string, base, count int, logger *slog.Logger) *Registration {
	if count < 1 {
		count = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registration{
		name:    name,
		base:    base,
		logger:  logger,
		devices: make([]Device, count),
	}
}

// Name returns the registration name.
func (r *Registration) Name() string {
	return r.name
}

// Count returns the number of reserved minors.
func (r *Registration) Count() int {
	return len(r.devices)
}

// Register binds dev to the next free minor and returns that minor.
func (r *Registration) Register(dev Device) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.devices) {
		return 0, fmt.Errorf("%w: %s has %d minors", ErrBusy, r.name, len(r.devices))
	}
	r.devices[r.next] = dev
	minor := r.base + r.next
	r.next++
	r.logger.Debug("chrdev: registered", "name", r.name, "minor", minor)
	return minor, nil
}

// Unregister removes every device. Files already open stay usable; new
// opens fail with ErrNoDevice.
func (r *Registration) Unregister() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.devices)
	r.next = 0
	r.logger.Debug("chrdev: unregistered", "name", r.name)
}

// Minors returns the minors that currently have a device.
func (r *Registration) Minors() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var minors []int
	for i, dev := range r.devices {
		if dev != nil {
			minors = append(minors, r.base+i)
		}
	}
	return minors
}

// Open dispatches to the device registered on minor.
func (r *Registration) Open(ctx context.Context, minor int) (File, error) {
	r.mu.RLock()
	var dev Device
	if i := minor - r.base; i >= 0 && i < len(r.devices) {
		dev = r.devices[i]
	}
	r.mu.RUnlock()

	if dev == nil {
		return nil, fmt.Errorf("%w: %s minor %d", ErrNoDevice, r.name, minor)
	}
	return dev.Open(ctx, minor)
}
