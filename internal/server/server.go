// Package server exposes the orchestration facade over HTTP and WebSocket.
//
// Routes:
//   - GET /api/status: version, tool counts, memory status and client count
//   - GET /api/tools: providers and their tools
//   - GET /api/memory, DELETE /api/memory: session memory status and reset
//   - /ws: JSON frames, see protocol.go
//
// A Server is also an engine.EventSink: every progress event is broadcast to
// the connected WebSocket clients.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/internal/engine"
	"github.com/ShayCichocki/jit/internal/orchestrator"
	"github.com/ShayCichocki/jit/internal/state"
)

const shutdownTimeout = 5 * time.Second

// Responder answers one request. *orchestrator.Facade implements it.
type Responder interface {
	Respond(ctx context.Context, request string) *orchestrator.Response
}

// Memory is the session memory the API reports on and clears.
type Memory interface {
	Status() (state.MemoryStatus, error)
	Clear() error
}

// RequiredConfig contains the minimal required configuration for a Server.
type RequiredConfig struct {
	// Responder handles chat messages.
	Responder Responder
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	memory   Memory
	registry func() *capability.Registry
	version  string
	origins  []string
	logger   *engine.DebugLogger
}

// WithMemory enables /api/memory.
func WithMemory(m Memory) Option {
	return func(o *serverOptions) { o.memory = m }
}

// WithRegistrySource sets where /api/tools and /api/status read tools from.
func WithRegistrySource(fn func() *capability.Registry) Option {
	return func(o *serverOptions) { o.registry = fn }
}

// WithVersion sets the version reported by /api/status.
func WithVersion(v string) Option {
	return func(o *serverOptions) { o.version = v }
}

// WithAllowedOrigins lets browsers on these origin hosts open the
// WebSocket. Patterns follow path.Match, e.g. "localhost:*". Without it
// only same-origin and non-browser clients are accepted.
func WithAllowedOrigins(patterns ...string) Option {
	return func(o *serverOptions) { o.origins = patterns }
}

// WithLogger sets the debug logger.
func WithLogger(l *engine.DebugLogger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// Server serves the API and the WebSocket endpoint.
type Server struct {
	responder Responder
	memory    Memory
	registry  func() *capability.Registry
	version   string
	origins   []string
	logger    *engine.DebugLogger

	mu      sync.RWMutex
	clients map[*client]struct{}
	dropped atomic.Int64
}

// New creates a server.
func New(cfg RequiredConfig, opts ...Option) *Server {
	o := &serverOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = engine.NopLogger()
	}
	if o.registry == nil {
		o.registry = func() *capability.Registry { return nil }
	}

	return &Server{
		responder: cfg.Responder,
		memory:    o.memory,
		registry:  o.registry,
		version:   o.version,
		origins:   o.origins,
		logger:    o.logger,
		clients:   make(map[*client]struct{}),
	}
}

// Handler returns the HTTP handler with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("GET /api/memory", s.handleMemoryStatus)
	mux.HandleFunc("DELETE /api/memory", s.handleMemoryClear)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Log("[server] listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Log("[server] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// Emit implements engine.EventSink by broadcasting e to every client.
// Clients whose send buffer is full miss the event.
func (s *Server) Emit(e engine.Event) {
	frame, err := encodeFrame(OutgoingFrame{Type: FrameEvent, Event: &e})
	if err != nil {
		s.logger.Log("[server] encode event: %v", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if !c.enqueue(frame) {
			s.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// DroppedEvents returns how many event frames were dropped for slow clients.
func (s *Server) DroppedEvents() int64 {
	return s.dropped.Load()
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Log("[server] client %s connected (total: %d)", c.id, n)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Log("[server] client %s disconnected (total: %d)", c.id, n)
}

var _ engine.EventSink = (*Server)(nil)
