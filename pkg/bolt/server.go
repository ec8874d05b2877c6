// Package bolt implements the server side of the Bolt v5.1-5.4 wire
// protocol: version handshake, chunk-framed message exchange, and the
// per-connection session state machine that turns client requests into
// calls against a pkg/backend.Backend (spec.md §4).
package bolt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
)

// ShutdownStats reports what a graceful Shutdown waited for.
type ShutdownStats struct {
	// SessionsDrained is how many sessions were still open when ctx
	// expired (0 if every session finished on its own).
	SessionsDrained int
	TimedOut        bool
}

// Server accepts Bolt connections and runs one Session per connection.
type Server struct {
	config    Config
	telemetry *telemetry

	mu       sync.Mutex
	listener net.Listener
	sessions map[*Session]struct{}
	sem      chan struct{} // nil when Config.MaxSessions == 0
	closed   bool
	wg       sync.WaitGroup
}

// New constructs a Server. cfg.Backend and cfg.Auth must be set; every
// other field falls back to DefaultConfig's values when zero.
func New(cfg Config) *Server {
	def := DefaultConfig()
	if cfg.MaxMessageBytes == 0 {
		cfg.MaxMessageBytes = def.MaxMessageBytes
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if len(cfg.SupportedVersions) == 0 {
		cfg.SupportedVersions = def.SupportedVersions
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}

	srv := &Server{
		config:   cfg,
		sessions: make(map[*Session]struct{}),
	}
	srv.telemetry = newTelemetry(cfg)
	if cfg.MaxSessions > 0 {
		srv.sem = make(chan struct{}, cfg.MaxSessions)
	}
	return srv
}

// ListenAndServe opens cfg.ListenAddr and calls Serve on it.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("bolt: listen on %s: %w", s.config.ListenAddr, err)
	}
	if s.config.TLSConfig != nil {
		ln = tls.NewListener(ln, s.config.TLSConfig)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln, one Session goroutine per connection,
// until Shutdown or Close is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return ErrServerClosed
			}
			return fmt.Errorf("bolt: accept: %w", err)
		}
		s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	if s.sem != nil {
		select {
		case s.sem <- struct{}{}:
		default:
			s.config.logger()("bolt: session limit reached, rejecting %s", conn.RemoteAddr())
			_ = conn.Close()
			return
		}
	}

	sess := newSession(conn, s)
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.sem != nil {
			defer func() { <-s.sem }()
		}
		sess.run(context.Background())
	}()
}

// forget removes a session from the registry once its connection closes.
func (s *Server) forget(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops accepting new connections and closes the listener
// immediately, without waiting for in-flight sessions to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		return ln.Close()
	}
	return nil
}

// Shutdown stops accepting new connections and waits for open sessions to
// finish on their own (each finishes its current message and typically
// sees GOODBYE or a client disconnect) until ctx is done.
func (s *Server) Shutdown(ctx context.Context) ShutdownStats {
	_ = s.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return ShutdownStats{SessionsDrained: 0, TimedOut: false}
	case <-ctx.Done():
		return ShutdownStats{SessionsDrained: s.sessionCount(), TimedOut: true}
	}
}

// IsClosed reports whether Close or Shutdown has been called.
func (s *Server) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
