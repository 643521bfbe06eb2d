package devnode

import (
	"github.com/haivivi/globalmem/pkg/chrdev"
	"github.com/haivivi/globalmem/pkg/globalmem"
)

// Subprotocol is the websocket subprotocol spoken by Server and Client.
const Subprotocol = "globalmem.v1"

// Op names a request operation.
type Op string

const (
	OpOpen   Op = "open"
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpClose  Op = "close"
	OpPeek   Op = "peek"
	OpStat   Op = "stat"
	OpDmesg  Op = "dmesg"
	OpCancel Op = "cancel"
)

// Request is one client frame. Every frame is a msgpack-encoded Request
// sent as a binary websocket message.
type Request struct {
	ID     uint64 `msgpack:"id"`
	Op     Op     `msgpack:"op"`
	Minor  int    `msgpack:"minor,omitempty"`
	Handle string `msgpack:"handle,omitempty"`
	Offset int64  `msgpack:"offset,omitempty"`
	Len    int    `msgpack:"len,omitempty"`
	Data   []byte `msgpack:"data,omitempty"`
	// Target is the request ID an OpCancel refers to.
	Target uint64 `msgpack:"target,omitempty"`
}

// Response answers the Request with the same ID. A non-empty Code marks a
// failure.
type Response struct {
	ID      uint64          `msgpack:"id"`
	N       int             `msgpack:"n,omitempty"`
	Data    []byte          `msgpack:"data,omitempty"`
	Handle  string          `msgpack:"handle,omitempty"`
	Stat    *globalmem.Stat `msgpack:"stat,omitempty"`
	Log     []chrdev.Entry  `msgpack:"log,omitempty"`
	Code    Code            `msgpack:"code,omitempty"`
	Message string          `msgpack:"message,omitempty"`
}

// Err returns the error carried by r, or nil.
func (r *Response) Err() error {
	if r.Code == "" {
		return nil
	}
	return &RemoteError{Code: r.Code, Message: r.Message}
}
