package devnode

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/globalmem/pkg/chrdev"
	"github.com/haivivi/globalmem/pkg/globalmem"
)

// Client is a connection to a Server. It is safe for concurrent use; calls
// are matched to responses by request ID.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan *Response
	err     error
	done    chan struct{}
}

// Dial connects to a Server at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{
		Subprotocols: []string{Subprotocol},
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("devnode: dial %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		pending: make(map[uint64]chan *Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	var err error
	defer func() {
		c.mu.Lock()
		c.err = fmt.Errorf("%w: %w", ErrClosed, err)
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		var data []byte
		_, data, err = c.conn.ReadMessage()
		if err != nil {
			return
		}
		var resp Response
		if uerr := msgpack.Unmarshal(data, &resp); uerr != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (c *Client) write(req *Request) error {
	data, err := msgpack.Marshal(req)
	if err != nil {
		return fmt.Errorf("devnode: encode request: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return nil
}

// call sends req and waits for its response. If ctx ends first, a cancel
// request is sent so the server stops waiting too.
func (c *Client) call(ctx context.Context, req *Request) (*Response, error) {
	ch := make(chan *Response, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	req.ID = c.nextID
	c.pending[req.ID] = ch
	c.mu.Unlock()

	if err := c.write(req); err != nil {
		c.forget(req.ID)
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, resp.Err()
	case <-ctx.Done():
		c.forget(req.ID)
		c.write(&Request{Op: OpCancel, Target: req.ID})
		return nil, fmt.Errorf("%w: %w", globalmem.ErrInterrupted, ctx.Err())
	case <-c.done:
		// The read loop delivers a response before it closes done.
		select {
		case resp := <-ch:
			return resp, resp.Err()
		default:
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.err
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Open opens minor on the server.
func (c *Client) Open(ctx context.Context, minor int) (*RemoteFile, error) {
	resp, err := c.call(ctx, &Request{Op: OpOpen, Minor: minor})
	if err != nil {
		return nil, err
	}
	return &RemoteFile{c: c, handle: resp.Handle, minor: minor}, nil
}

// Stat returns the server's memory stat.
func (c *Client) Stat(ctx context.Context) (globalmem.Stat, error) {
	resp, err := c.call(ctx, &Request{Op: OpStat})
	if err != nil {
		return globalmem.Stat{}, err
	}
	if resp.Stat == nil {
		return globalmem.Stat{}, fmt.Errorf("%w: stat response without stat", ErrBadRequest)
	}
	return *resp.Stat, nil
}

// Peek reads up to n bytes at offset without waiting for a write.
func (c *Client) Peek(ctx context.Context, offset int64, n int) ([]byte, error) {
	resp, err := c.call(ctx, &Request{Op: OpPeek, Offset: offset, Len: n})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Dmesg returns the server's kernel log.
func (c *Client) Dmesg(ctx context.Context) ([]chrdev.Entry, error) {
	resp, err := c.call(ctx, &Request{Op: OpDmesg})
	if err != nil {
		return nil, err
	}
	return resp.Log, nil
}

// Close closes the connection. Files opened through it are released by the
// server.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

var _ chrdev.File = (*RemoteFile)(nil)

// RemoteFile is a file opened through a Client.
type RemoteFile struct {
	c      *Client
	handle string
	minor  int
}

// Handle returns the server-side handle.
func (f *RemoteFile) Handle() string {
	return f.handle
}

// Minor returns the minor the file was opened on.
func (f *RemoteFile) Minor() int {
	return f.minor
}

// Read reads up to len(p) bytes at offset. It blocks like a local read;
// cancelling ctx cancels the read on the server.
func (f *RemoteFile) Read(ctx context.Context, offset int64, p []byte) (int, error) {
	resp, err := f.c.call(ctx, &Request{Op: OpRead, Handle: f.handle, Offset: offset, Len: len(p)})
	if err != nil {
		return 0, err
	}
	return copy(p, resp.Data), nil
}

// Write writes p at offset.
func (f *RemoteFile) Write(ctx context.Context, offset int64, p []byte) (int, error) {
	resp, err := f.c.call(ctx, &Request{Op: OpWrite, Handle: f.handle, Offset: offset, Data: p})
	if err != nil {
		return 0, err
	}
	return resp.N, nil
}

// Close releases the file on the server.
func (f *RemoteFile) Close() error {
	_, err := f.c.call(context.Background(), &Request{Op: OpClose, Handle: f.handle})
	return err
}
