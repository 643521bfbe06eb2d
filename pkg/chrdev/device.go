package chrdev

import (
	"context"
	"errors"
)

var (
	// ErrNoDevice is returned when opening a minor that has no device.
	ErrNoDevice = errors.New("chrdev: no such device")

	// ErrBusy is returned when registering on a full Registration.
	ErrBusy = errors.New("chrdev: no free minor")

	// ErrFileClosed is returned by operations on a released File.
	ErrFileClosed = errors.New("chrdev: file already closed")
)

// Device is the driver side of a character device. Open is called once per
// client open of a minor the device is registered on.
type Device interface {
	Open(ctx context.Context, minor int) (File, error)
}

// File is one open session against a Device.
//
// Read and Write receive the byte offset with every call. Read may block;
// ctx bounds the wait. Close releases the session.
type File interface {
	Read(ctx context.Context, offset int64, p []byte) (int, error)
	Write(ctx context.Context, offset int64, p []byte) (int, error)
	Close() error
}

// DeviceFunc adapts a function to the Device interface.
type DeviceFunc func(ctx context.Context, minor int) (File, error)

// Open implements Device.
func (f DeviceFunc) Open(ctx context.Context, minor int) (File, error) {
	return f(ctx, minor)
}
