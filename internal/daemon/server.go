package daemon

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"time"
)

// Handler answers one decoded Request for a live *Server.
type Handler func(ctx context.Context, s *Server, req Request) Response

// Server is the long-lived hook daemon: one Unix-domain socket listener,
// a registry of hook handlers, and the per-project caches every handler
// shares (spec §4.H).
type Server struct {
	SocketPath string
	Logger     *slog.Logger
	Benchmark  *benchmarkSink

	handlers map[string]Handler
	comps    *componentCache
	tasks    *taskListingCache

	listener net.Listener
	// mutateMu serializes state-mutating RPCs across connections. Each
	// engine already takes the state store's own cross-process file lock,
	// so this is a cheaper in-process queue in front of that lock rather
	// than the sole source of correctness — it keeps concurrent hook
	// calls from one host session from piling up against the file lock
	// at once (spec §4.H: "serialize state-mutating RPCs").
	mutateMu chan struct{}
}

// mutatingHooks names the RPCs that write state and must be serialized.
var mutatingHooks = map[string]bool{
	"user_messages":    true,
	"sessions_enforce": true,
	"post_tool_use":    true,
	"session_start":    true,
	"subagent_hooks":   true,
}

// New constructs a Server. Call Listen to bind the socket before Serve.
func New(socketPath string, logger *slog.Logger, benchmark *benchmarkSink) *Server {
	s := &Server{
		SocketPath: socketPath,
		Logger:     logger,
		Benchmark:  benchmark,
		comps:      newComponentCache(),
		tasks:      newTaskListingCache(),
		mutateMu:   make(chan struct{}, 1),
	}
	s.mutateMu <- struct{}{}
	s.handlers = defaultHandlers()
	return s
}

// Listen removes any stale socket file at s.SocketPath and binds a fresh
// Unix-domain listener, chmod'd 0600 so only the owning user can connect
// (spec §4.H).
func (s *Server) Listen() error {
	if _, err := os.Stat(s.SocketPath); err == nil {
		_ = os.Remove(s.SocketPath)
	}
	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.SocketPath, 0o600); err != nil {
		ln.Close()
		return err
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until ctx is canceled or the listener is
// closed. Each connection is handled synchronously, one request at a
// time, in its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

// Close removes the socket file and stops accepting connections.
func (s *Server) Close() error {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	return os.Remove(s.SocketPath)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	for {
		req, err := readRequest(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.Logger.Warn("daemon: reading request failed", "error", err)
			}
			return
		}

		resp := s.dispatch(ctx, req)
		if err := writeResponse(conn, resp); err != nil {
			s.Logger.Warn("daemon: writing response failed", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	handler, ok := s.handlers[req.Hook]
	if !ok {
		return Response{RequestID: req.RequestID, ExitCode: 1, Stderr: "daemon: unknown hook " + req.Hook}
	}

	if mutatingHooks[req.Hook] {
		<-s.mutateMu
		defer func() { s.mutateMu <- struct{}{} }()
	}

	start := time.Now()
	resp := handler(ctx, s, req)
	resp.RequestID = req.RequestID

	if s.Benchmark != nil {
		s.Benchmark.record(benchmarkRecord{
			Hook:       req.Hook,
			DurationMS: float64(time.Since(start).Microseconds()) / 1000.0,
			ExitCode:   resp.ExitCode,
		})
	}
	return resp
}
