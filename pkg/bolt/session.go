package bolt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/nornicgraph/boltd/pkg/audit"
	"github.com/nornicgraph/boltd/pkg/backend"
	"github.com/nornicgraph/boltd/pkg/chunk"
	"github.com/nornicgraph/boltd/pkg/message"
	"github.com/nornicgraph/boltd/pkg/packstream"
	"github.com/nornicgraph/boltd/pkg/stream"
)

// errGoodbye signals the read loop to close the connection without
// logging it as a failure: the client asked to leave.
var errGoodbye = errors.New("bolt: client said goodbye")

// encodable is anything in pkg/message the session can write as a chunked
// reply.
type encodable interface {
	Encode() ([]byte, error)
}

// Session is one connection's worth of Bolt protocol state (spec.md §4.4).
// A Session is only ever driven by its own run goroutine; nothing about it
// is safe for concurrent use from outside that goroutine.
type Session struct {
	id         string
	conn       net.Conn
	remoteAddr string
	server     *Server

	reader *chunk.Reader
	writer *chunk.Writer

	version Version
	state   State

	sessionHandle backend.SessionHandle
	sessionCfg    backend.SessionConfig
	tx            backend.TransactionHandle
	streams       *stream.Table

	principal string // captured from LOGON's auth dict, for audit only
}

func newSession(conn net.Conn, srv *Server) *Session {
	return &Session{
		id:         uuid.NewString(),
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		server:     srv,
		reader:     chunk.NewReader(srv.config.MaxMessageBytes),
		writer:     chunk.NewWriter(srv.config.ChunkSize),
		state:      StateNegotiating,
		streams:    stream.NewTable(),
	}
}

// run drives the session's entire lifecycle: handshake, then the
// read-decode-dispatch loop, until the connection closes for any reason.
func (s *Session) run(ctx context.Context) {
	ctx, span := s.server.telemetry.connectionSpan(ctx, s.remoteAddr)
	defer span.End()
	s.server.telemetry.sessionsActive.Add(ctx, 1)
	defer s.server.telemetry.sessionsActive.Add(ctx, -1)
	defer s.teardown(ctx)

	v, err := negotiateVersion(s.conn, s.server.config.SupportedVersions)
	if err != nil {
		s.server.config.logger()("bolt: handshake with %s failed: %v", s.remoteAddr, err)
		return
	}
	s.version = v
	s.state = StateUnauthenticated

	for {
		if s.server.config.IdleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.config.IdleTimeout))
		}

		raw, err := s.reader.ReadMessage(s.conn)
		if err != nil {
			if errors.Is(err, chunk.ErrMessageTooLarge) {
				_ = s.sendFailure(backend.CodeResourceExhausted, "bolt: message exceeds maximum size")
			}
			return
		}

		msg, err := message.Decode(raw)
		if err != nil {
			_ = s.sendFailure(backend.CodeRequestInvalid, fmt.Sprintf("bolt: malformed message: %v", err))
			s.state = StateFailed
			continue
		}

		tag := messageTag(msg)
		mctx, mspan := s.server.telemetry.messageSpan(ctx, tag)
		start := time.Now()
		dispatchErr := s.dispatch(mctx, msg)
		s.server.telemetry.recordMessage(ctx, tag, float64(time.Since(start).Microseconds())/1000)
		mspan.End()

		if dispatchErr != nil {
			if !errors.Is(dispatchErr, errGoodbye) {
				s.server.config.logger()("bolt: session %s (%s) closing: %v", s.id, s.remoteAddr, dispatchErr)
			}
			return
		}
		if s.state == StateClosed {
			return
		}
	}
}

// dispatch routes one decoded message through the state machine (spec.md
// §4.4). RESET and GOODBYE are valid from every non-Closed state and are
// handled before the Failed/Interrupted catch-all; everything else is
// IGNORED while the session is Failed or Interrupted.
func (s *Session) dispatch(ctx context.Context, msg any) error {
	switch m := msg.(type) {
	case *message.Reset:
		return s.handleReset(ctx, m)
	case *message.Goodbye:
		return s.handleGoodbye(ctx, m)
	}

	if s.state == StateFailed || s.state == StateInterrupted {
		return s.sendIgnored()
	}

	switch m := msg.(type) {
	case *message.Hello:
		return s.guarded(ctx, "HELLO", m, func() error { return s.handleHello(ctx, m) })
	case *message.Logon:
		return s.guarded(ctx, "LOGON", m, func() error { return s.handleLogon(ctx, m) })
	case *message.Logoff:
		return s.guarded(ctx, "LOGOFF", m, func() error { return s.handleLogoff(ctx, m) })
	case *message.Run:
		return s.guarded(ctx, "RUN", m, func() error { return s.handleRun(ctx, m) })
	case *message.Pull:
		return s.guarded(ctx, "PULL", m, func() error { return s.handlePull(ctx, m) })
	case *message.Discard:
		return s.guarded(ctx, "DISCARD", m, func() error { return s.handleDiscard(ctx, m) })
	case *message.Begin:
		return s.guarded(ctx, "BEGIN", m, func() error { return s.handleBegin(ctx, m) })
	case *message.Commit:
		return s.guarded(ctx, "COMMIT", m, func() error { return s.handleCommit(ctx, m) })
	case *message.Rollback:
		return s.guarded(ctx, "ROLLBACK", m, func() error { return s.handleRollback(ctx, m) })
	case *message.Route:
		return s.guarded(ctx, "ROUTE", m, func() error { return s.handleRoute(ctx, m) })
	case *message.Telemetry:
		return s.guarded(ctx, "TELEMETRY", m, func() error { return s.handleTelemetry(ctx, m) })
	default:
		return s.protocolViolation(fmt.Errorf("unexpected message type %T in state %s", msg, s.state))
	}
}

// guarded checks that msg's type is allowed from s's current state, runs
// fn, and classifies any error it returns: a backend.Failure (or any
// other handler error) moves the session to Failed and replies FAILURE
// without closing the connection; a disallowed state is a protocol
// violation, which does close it.
func (s *Session) guarded(ctx context.Context, tag string, msg any, fn func() error) error {
	allowed := allowedStates[typeKey(msg)]
	if !contains(allowed, s.state) {
		return s.protocolViolation(fmt.Errorf("%s not allowed in state %s", tag, s.state))
	}
	if err := fn(); err != nil {
		return s.onHandlerError(ctx, err)
	}
	return nil
}

func typeKey(msg any) string {
	return fmt.Sprintf("%T", msg)
}

// protocolViolation sends a best-effort FAILURE and ends the connection:
// spec.md §7's Protocol error kind is not RESET-recoverable.
func (s *Session) protocolViolation(err error) error {
	_ = s.sendFailure(backend.CodeRequestInvalid, err.Error())
	s.state = StateClosed
	return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
}

// onHandlerError reports a backend or auth failure via FAILURE and moves
// the session to Failed, per spec.md §4.4's generic failure-handling rule
// (there is no carve-out for auth specifically: a failed LOGON takes this
// same path). The connection stays open; only RESET recovers it. A write
// error while sending FAILURE is treated as fatal, since the socket is no
// longer usable either way.
func (s *Session) onHandlerError(ctx context.Context, err error) error {
	code := backend.CodeDatabaseError
	if f, ok := backend.AsFailure(err); ok {
		code = f.Code
	}
	s.state = StateFailed
	s.server.telemetry.sessionsFailed.Add(ctx, 1)
	return s.sendFailure(code, err.Error())
}

func (s *Session) writeMessage(m encodable) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("bolt: encoding %T: %w", m, err)
	}
	return s.writer.WriteMessage(s.conn, data)
}

func (s *Session) sendSuccess(meta *packstream.Dictionary) error {
	if meta == nil {
		meta = packstream.NewDictionary()
	}
	return s.writeMessage(&message.Success{Metadata: meta})
}

func (s *Session) sendFailure(code, msg string) error {
	meta := packstream.NewDictionary()
	meta.Set("code", code)
	meta.Set("message", msg)
	return s.writeMessage(&message.Failure{Metadata: meta})
}

func (s *Session) sendRecord(rec backend.Record) error {
	return s.writeMessage(&message.Record{Fields: []any(rec)})
}

func (s *Session) sendIgnored() error {
	return s.writeMessage(&message.Ignored{})
}

// inTransaction reports whether a transaction is currently open.
func (s *Session) inTransaction() bool {
	return s.tx != nil
}

// teardown releases backend and bookkeeping resources when a connection
// ends, however it ends.
func (s *Session) teardown(ctx context.Context) {
	if s.tx != nil {
		_ = s.server.config.Backend.Rollback(ctx, s.tx)
		s.tx = nil
	}
	if s.sessionHandle != nil {
		_ = s.server.config.Backend.CloseSession(ctx, s.sessionHandle)
	}
	s.server.config.Audit.LogSession(audit.EventGoodbye, s.id, "", s.principal, s.remoteAddr, true, "connection closed")
	_ = s.conn.Close()
	s.server.forget(s)
}

func messageTag(msg any) string {
	switch msg.(type) {
	case *message.Hello:
		return "HELLO"
	case *message.Logon:
		return "LOGON"
	case *message.Logoff:
		return "LOGOFF"
	case *message.Goodbye:
		return "GOODBYE"
	case *message.Reset:
		return "RESET"
	case *message.Run:
		return "RUN"
	case *message.Pull:
		return "PULL"
	case *message.Discard:
		return "DISCARD"
	case *message.Begin:
		return "BEGIN"
	case *message.Commit:
		return "COMMIT"
	case *message.Rollback:
		return "ROLLBACK"
	case *message.Route:
		return "ROUTE"
	case *message.Telemetry:
		return "TELEMETRY"
	default:
		return "UNKNOWN"
	}
}
