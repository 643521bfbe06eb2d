package devnode

import (
	"errors"
	"fmt"

	"github.com/haivivi/globalmem/pkg/chrdev"
	"github.com/haivivi/globalmem/pkg/globalmem"
)

var (
	// ErrBadHandle is returned for a handle the session does not know.
	ErrBadHandle = errors.New("devnode: bad handle")

	// ErrBadRequest is returned for a malformed or unknown request.
	ErrBadRequest = errors.New("devnode: bad request")

	// ErrClosed is returned when the connection is gone.
	ErrClosed = errors.New("devnode: connection closed")
)

// Code identifies an error across the wire.
type Code string

const (
	CodeOffsetOutOfRange Code = "offset_out_of_range"
	CodeInterrupted      Code = "interrupted"
	CodeClosed           Code = "closed"
	CodeNoDevice         Code = "no_device"
	CodeBusy             Code = "busy"
	CodeFileClosed       Code = "file_closed"
	CodeBadHandle        Code = "bad_handle"
	CodeBadRequest       Code = "bad_request"
	CodeInternal         Code = "internal"
)

var codeErrors = []struct {
	code Code
	err  error
}{
	{CodeOffsetOutOfRange, globalmem.ErrOffsetOutOfRange},
	{CodeInterrupted, globalmem.ErrInterrupted},
	{CodeClosed, globalmem.ErrClosed},
	{CodeNoDevice, chrdev.ErrNoDevice},
	{CodeBusy, chrdev.ErrBusy},
	{CodeFileClosed, chrdev.ErrFileClosed},
	{CodeBadHandle, ErrBadHandle},
	{CodeBadRequest, ErrBadRequest},
}

// codeOf maps err to its wire code.
func codeOf(err error) Code {
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}
	return CodeInternal
}

// RemoteError is an error reported by the server. It unwraps to the
// matching sentinel, so errors.Is works the same as in-process.
type RemoteError struct {
	Code    Code
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("devnode: remote %s: %s", e.Code, e.Message)
}

// Unwrap returns the sentinel for e.Code, or nil for CodeInternal.
func (e *RemoteError) Unwrap() error {
	for _, ce := range codeErrors {
		if ce.code == e.Code {
			return ce.err
		}
	}
	return nil
}
