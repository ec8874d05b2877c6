package bolt

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nornicgraph/boltd/pkg/auth"
	"github.com/nornicgraph/boltd/pkg/demobackend"
)

func newDemoConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = demobackend.New()
	cfg.Auth = auth.NewAuthenticator(auth.DefaultConfig())
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxMessageBytes <= 0 {
		t.Error("expected a positive default MaxMessageBytes")
	}
	if len(cfg.SupportedVersions) == 0 {
		t.Error("expected default supported versions")
	}
	if cfg.logger() == nil {
		t.Error("expected a default logger")
	}
}

func TestNewFillsDefaults(t *testing.T) {
	srv := New(Config{Backend: demobackend.New(), Auth: auth.NewAuthenticator(auth.DefaultConfig())})
	if srv.config.MaxMessageBytes == 0 {
		t.Error("expected New to fill MaxMessageBytes from defaults")
	}
	if len(srv.config.SupportedVersions) == 0 {
		t.Error("expected New to fill SupportedVersions from defaults")
	}
}

func TestServerCloseBeforeServe(t *testing.T) {
	srv := New(newDemoConfig())
	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !srv.IsClosed() {
		t.Error("expected IsClosed to be true after Close")
	}
}

func TestServeReturnsErrServerClosedAfterClose(t *testing.T) {
	srv := New(newDemoConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	_ = srv.Close()

	if err := srv.Serve(ln); err != ErrServerClosed {
		t.Fatalf("expected ErrServerClosed, got %v", err)
	}
}

func TestListenAndServeStartAndClose(t *testing.T) {
	srv := New(newDemoConfig())
	srv.config.ListenAddr = "127.0.0.1:0"

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	time.Sleep(50 * time.Millisecond)
	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-errCh:
		if err != ErrServerClosed {
			t.Fatalf("expected ErrServerClosed from ListenAndServe, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Close")
	}
}

func TestListenAndServeListenError(t *testing.T) {
	srv := New(newDemoConfig())
	srv.config.ListenAddr = "bad-address-no-port"
	if err := srv.ListenAndServe(); err == nil {
		t.Fatal("expected a listen error for a malformed address")
	}
}

func TestMaxSessionsRejectsOverCapacity(t *testing.T) {
	cfg := newDemoConfig()
	cfg.MaxSessions = 1
	srv := New(cfg)

	c1a, c1b := net.Pipe()
	srv.handleConnection(c1b)
	defer c1a.Close()

	c2a, c2b := net.Pipe()
	srv.handleConnection(c2b)

	// The rejected connection should be closed by the server almost
	// immediately rather than ever completing a handshake.
	_ = c2a.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := c2a.Read(buf); err == nil {
		t.Fatal("expected the over-capacity connection to be closed without a handshake reply")
	}
}

func TestShutdownWaitsForSessionsToFinish(t *testing.T) {
	srv := New(newDemoConfig())

	clientConn, serverConn := net.Pipe()
	srv.handleConnection(serverConn)

	// Closing the client side makes the server's read fail and the
	// session's run loop return, letting Shutdown's WaitGroup drain.
	_ = clientConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stats := srv.Shutdown(ctx)
	if stats.TimedOut {
		t.Fatal("expected Shutdown to observe the session finishing on its own")
	}
}

func TestShutdownTimesOutOnStuckSession(t *testing.T) {
	srv := New(newDemoConfig())

	_, serverConn := net.Pipe()
	srv.handleConnection(serverConn)
	// Neither side of the pipe is driven further, so the session's
	// handshake read blocks until Shutdown's deadline.

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	stats := srv.Shutdown(ctx)
	if !stats.TimedOut {
		t.Fatal("expected Shutdown to time out on a stuck session")
	}
	if stats.SessionsDrained == 0 {
		t.Error("expected at least one session still counted as open")
	}
}

func TestSessionCountTracksConnections(t *testing.T) {
	srv := New(newDemoConfig())
	if srv.sessionCount() != 0 {
		t.Fatalf("expected 0 sessions initially, got %d", srv.sessionCount())
	}

	_, serverConn := net.Pipe()
	srv.handleConnection(serverConn)
	time.Sleep(20 * time.Millisecond)
	if srv.sessionCount() != 1 {
		t.Fatalf("expected 1 session after handleConnection, got %d", srv.sessionCount())
	}

	_ = srv.Close()
}
