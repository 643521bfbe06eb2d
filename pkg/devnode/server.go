package devnode

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/globalmem/pkg/chrdev"
	"github.com/haivivi/globalmem/pkg/globalmem"
)

// DefaultMaxRead caps the length of a single remote read.
const DefaultMaxRead = 1 << 20

// frameOverhead is the room left in a client frame for everything but the
// payload.
const frameOverhead = 512

// Backend is what a Server exposes. *globalmem.Module implements it.
type Backend interface {
	Open(ctx context.Context, minor int) (chrdev.File, error)
	Peek(offset int64, p []byte) (int, error)
	Stat() globalmem.Stat
	KernelLog() *chrdev.KernelLog
}

// ServerOptions configures a Server.
type ServerOptions struct {
	// Logger receives connection logs. Default is slog.Default().
	Logger *slog.Logger

	// MaxRead caps a single read or peek request. Client frames larger
	// than MaxRead plus a small header end the session, so it also bounds
	// write payloads. Default is DefaultMaxRead.
	MaxRead int
}

// Server serves a Backend to websocket clients. Each connection is a
// session: files opened on it are private to it and are closed when it
// ends. Requests within a session run concurrently, so a blocked read does
// not hold up writes on the same connection.
type Server struct {
	backend  Backend
	logger   *slog.Logger
	maxRead  int
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a Server for b. Pass nil for default options.
func NewServer(b Backend, opts *ServerOptions) *Server {
	var o ServerOptions
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.MaxRead <= 0 {
		o.MaxRead = DefaultMaxRead
	}
	return &Server{
		backend: b,
		logger:  o.Logger,
		maxRead: o.MaxRead,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{Subprotocol},
			CheckOrigin:  func(r *http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the session until the client
// disconnects or the server is closed.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, "devnode: server closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("devnode: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(int64(s.maxRead) + frameOverhead)

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:       uuid.New(),
		srv:      s,
		conn:     conn,
		cancel:   cancel,
		files:    make(map[string]chrdev.File),
		inflight: make(map[uint64]context.CancelFunc),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		conn.Close()
		return
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.logger.Info("devnode: session start", "session", sess.id, "remote", r.RemoteAddr)
	sess.run(ctx)

	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	s.logger.Info("devnode: session end", "session", sess.id)
}

// Close disconnects every session and waits for them to end. Blocked reads
// are cancelled and answered before the connection is closed, and all files
// opened through the server are closed.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.cancel()
		// Unblocks the session's ReadMessage; the session closes the
		// connection once its in-flight requests have answered.
		sess.conn.SetReadDeadline(time.Now())
	}
	s.wg.Wait()
	return nil
}

type session struct {
	id     uuid.UUID
	srv    *Server
	conn   *websocket.Conn
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu       sync.Mutex
	files    map[string]chrdev.File
	inflight map[uint64]context.CancelFunc
	wg       sync.WaitGroup
}

func (ss *session) run(ctx context.Context) {
	defer func() {
		ss.cancel()
		ss.wg.Wait()
		ss.mu.Lock()
		for h, f := range ss.files {
			f.Close()
			delete(ss.files, h)
		}
		ss.mu.Unlock()
		ss.conn.Close()
	}()

	for {
		mt, data, err := ss.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		var req Request
		if err := msgpack.Unmarshal(data, &req); err != nil {
			ss.send(&Response{Code: CodeBadRequest, Message: err.Error()})
			continue
		}

		if req.Op == OpCancel {
			ss.mu.Lock()
			if cancel, ok := ss.inflight[req.Target]; ok {
				cancel()
			}
			ss.mu.Unlock()
			continue
		}

		ss.mu.Lock()
		if _, dup := ss.inflight[req.ID]; dup {
			ss.mu.Unlock()
			err := fmt.Errorf("%w: request %d already in flight", ErrBadRequest, req.ID)
			ss.send(&Response{ID: req.ID, Code: codeOf(err), Message: err.Error()})
			continue
		}
		reqCtx, cancel := context.WithCancel(ctx)
		ss.inflight[req.ID] = cancel
		ss.mu.Unlock()

		ss.wg.Go(func() {
			resp := ss.handle(reqCtx, &req)
			ss.mu.Lock()
			delete(ss.inflight, req.ID)
			ss.mu.Unlock()
			cancel()
			ss.send(resp)
		})
	}
}

func (ss *session) send(resp *Response) {
	data, err := msgpack.Marshal(resp)
	if err != nil {
		ss.srv.logger.Error("devnode: encode response", "session", ss.id, "error", err)
		return
	}
	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()
	if err := ss.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		ss.srv.logger.Debug("devnode: send failed", "session", ss.id, "error", err)
	}
}

func (ss *session) handle(ctx context.Context, req *Request) *Response {
	resp, err := ss.dispatch(ctx, req)
	if err != nil {
		return &Response{ID: req.ID, Code: codeOf(err), Message: err.Error()}
	}
	resp.ID = req.ID
	return resp
}

func (ss *session) dispatch(ctx context.Context, req *Request) (*Response, error) {
	switch req.Op {
	case OpOpen:
		f, err := ss.srv.backend.Open(ctx, req.Minor)
		if err != nil {
			return nil, err
		}
		h := uuid.NewString()
		ss.mu.Lock()
		ss.files[h] = f
		ss.mu.Unlock()
		return &Response{Handle: h}, nil

	case OpRead:
		f, err := ss.file(req.Handle)
		if err != nil {
			return nil, err
		}
		if req.Len < 0 {
			return nil, fmt.Errorf("%w: negative read length %d", ErrBadRequest, req.Len)
		}
		p := make([]byte, min(req.Len, ss.srv.maxRead))
		n, err := f.Read(ctx, req.Offset, p)
		if err != nil {
			return nil, err
		}
		return &Response{N: n, Data: p[:n]}, nil

	case OpWrite:
		f, err := ss.file(req.Handle)
		if err != nil {
			return nil, err
		}
		n, err := f.Write(ctx, req.Offset, req.Data)
		if err != nil {
			return nil, err
		}
		return &Response{N: n}, nil

	case OpClose:
		ss.mu.Lock()
		f, ok := ss.files[req.Handle]
		delete(ss.files, req.Handle)
		ss.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadHandle, req.Handle)
		}
		return &Response{}, f.Close()

	case OpPeek:
		if req.Len < 0 {
			return nil, fmt.Errorf("%w: negative peek length %d", ErrBadRequest, req.Len)
		}
		p := make([]byte, min(req.Len, ss.srv.maxRead))
		n, err := ss.srv.backend.Peek(req.Offset, p)
		if err != nil {
			return nil, err
		}
		return &Response{N: n, Data: p[:n]}, nil

	case OpStat:
		st := ss.srv.backend.Stat()
		return &Response{Stat: &st}, nil

	case OpDmesg:
		return &Response{Log: ss.srv.backend.KernelLog().Entries()}, nil

	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrBadRequest, req.Op)
	}
}

func (ss *session) file(handle string) (chrdev.File, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	f, ok := ss.files[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadHandle, handle)
	}
	return f, nil
}
