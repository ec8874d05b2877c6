package bolt

import (
	"context"
	"errors"
	"fmt"

	"github.com/nornicgraph/boltd/pkg/audit"
	"github.com/nornicgraph/boltd/pkg/backend"
	"github.com/nornicgraph/boltd/pkg/message"
	"github.com/nornicgraph/boltd/pkg/packstream"
	"github.com/nornicgraph/boltd/pkg/stream"
)

// serverAgent is the value HELLO's SUCCESS reports in "server", matching
// the "<product>/<version>" shape real Bolt clients parse.
const serverAgent = "boltd/1.0"

func (s *Session) handleHello(ctx context.Context, m *message.Hello) error {
	s.sessionCfg = sessionConfigFromHello(m.Extra, s.server.config.NotificationsMinimum, s.server.config.NotificationsExclude)
	s.state = StateAuthentication

	meta := packstream.NewDictionary()
	meta.Set("server", serverAgent)
	meta.Set("connection_id", s.id)
	return s.sendSuccess(meta)
}

func (s *Session) handleLogon(ctx context.Context, m *message.Logon) error {
	authDict := m.Auth
	s.principal = message.String(authDict, "principal", "")

	authCtx, err := s.server.config.Auth.Validate(ctx, dictToMap(authDict))
	if err != nil {
		event := audit.EventLogonFailed
		if f, ok := backend.AsFailure(err); ok && f.Kind == backend.FailureKindForbidden {
			event = audit.EventAccessDenied
		}
		s.server.config.Audit.LogSession(event, s.id, "", s.principal, s.remoteAddr, false, err.Error())
		return err
	}

	s.sessionCfg.AuthContext = authCtx
	handle, err := s.server.config.Backend.CreateSession(ctx, s.sessionCfg)
	if err != nil {
		return err
	}
	s.sessionHandle = handle
	s.state = StateReady
	s.server.config.Audit.LogSession(audit.EventLogon, s.id, "", s.principal, s.remoteAddr, true, "")
	return s.sendSuccess(nil)
}

func (s *Session) handleLogoff(ctx context.Context, m *message.Logoff) error {
	if s.sessionHandle != nil {
		if err := s.server.config.Backend.CloseSession(ctx, s.sessionHandle); err != nil {
			return err
		}
	}
	s.sessionHandle = nil
	s.sessionCfg.AuthContext = nil
	s.state = StateAuthentication
	s.server.config.Audit.LogSession(audit.EventLogoff, s.id, "", s.principal, s.remoteAddr, true, "")
	return s.sendSuccess(nil)
}

func (s *Session) handleRun(ctx context.Context, m *message.Run) error {
	txCfg := txConfigFromExtra(m.Extra, s.sessionCfg.DefaultDatabase, s.sessionCfg.ImpersonatedUser)
	rs, err := s.server.config.Backend.Run(ctx, s.sessionHandle, s.tx, m.Query, dictToMap(m.Parameters), txCfg)
	if err != nil {
		return err
	}

	st := s.streams.Open(rs)
	if s.inTransaction() {
		s.state = StateTxStreaming
	} else {
		s.state = StateStreaming
	}

	meta := packstream.NewDictionary()
	meta.Set("fields", stringsToAny(st.FieldNames()))
	meta.Set("qid", st.QueryID)
	return s.sendSuccess(meta)
}

func (s *Session) handlePull(ctx context.Context, m *message.Pull) error {
	return s.drain(ctx, m.Extra, true)
}

func (s *Session) handleDiscard(ctx context.Context, m *message.Discard) error {
	return s.drain(ctx, m.Extra, false)
}

// drain implements PULL (emit=true) and DISCARD (emit=false): both pull a
// quota of records off the named stream and reply with has-more or the
// trailing summary (spec.md §4.5).
func (s *Session) drain(ctx context.Context, extra *packstream.Dictionary, emit bool) error {
	qid := message.Qid(extra)
	n := message.N(extra)

	st, err := s.streams.Lookup(qid)
	if err != nil {
		if errors.Is(err, stream.ErrUnknownQueryID) {
			return backend.NewFailure(backend.FailureKindClientError, backend.CodeRequestInvalid, err.Error())
		}
		return err
	}

	var hasMore bool
	var summary backend.Summary
	if emit {
		hasMore, summary, err = st.Pull(ctx, n, func(rec backend.Record) error { return s.sendRecord(rec) })
	} else {
		hasMore, summary, err = st.Discard(ctx, n)
	}
	if err != nil {
		return err
	}

	if !hasMore {
		s.streams.Close(st.QueryID)
		if s.inTransaction() {
			s.state = StateTxReady
		} else {
			s.state = StateReady
		}
	}
	return s.sendSuccess(summaryMetadata(hasMore, summary))
}

func (s *Session) handleBegin(ctx context.Context, m *message.Begin) error {
	txCfg := txConfigFromExtra(m.Extra, s.sessionCfg.DefaultDatabase, s.sessionCfg.ImpersonatedUser)
	tx, err := s.server.config.Backend.Begin(ctx, s.sessionHandle, txCfg)
	if err != nil {
		return err
	}
	s.tx = tx
	s.state = StateTxReady
	return s.sendSuccess(nil)
}

func (s *Session) handleCommit(ctx context.Context, m *message.Commit) error {
	bookmark, err := s.server.config.Backend.Commit(ctx, s.tx)
	if err != nil {
		return err
	}
	s.tx = nil
	s.streams.CloseAll()
	s.state = StateReady

	meta := packstream.NewDictionary()
	if bookmark != "" {
		meta.Set("bookmark", bookmark)
	}
	return s.sendSuccess(meta)
}

func (s *Session) handleRollback(ctx context.Context, m *message.Rollback) error {
	err := s.server.config.Backend.Rollback(ctx, s.tx)
	s.tx = nil
	s.streams.CloseAll()
	s.state = StateReady
	if err != nil {
		return err
	}
	return s.sendSuccess(nil)
}

func (s *Session) handleRoute(ctx context.Context, m *message.Route) error {
	database := message.String(m.Extra, "db", s.sessionCfg.DefaultDatabase)
	rt, err := s.server.config.Backend.Route(ctx, stringMapOrNil(m.Routing), m.Bookmarks, database)
	if err != nil {
		if errors.Is(err, backend.ErrRoutingUnsupported) {
			return backend.NewFailure(backend.FailureKindClientError, backend.CodeRoutingUnsupported, err.Error())
		}
		return err
	}
	return s.sendSuccess(routingTableToMeta(rt))
}

func (s *Session) handleTelemetry(ctx context.Context, m *message.Telemetry) error {
	return s.sendSuccess(nil)
}

// handleReset discards pending streams, rolls back any open transaction,
// and always returns the session to Ready (or Unauthenticated, if LOGON
// never completed) with exactly one SUCCESS (spec.md §4.4). Because this
// server processes one message per connection at a time rather than
// pipelining reads, RESET can only ever arrive at a message boundary; it
// is modeled as passing through Interrupted rather than as a true
// mid-stream preemption (see DESIGN.md).
func (s *Session) handleReset(ctx context.Context, m *message.Reset) error {
	if s.state == StateClosed {
		return s.protocolViolation(fmt.Errorf("RESET on a closed session"))
	}
	if s.state == StateStreaming || s.state == StateTxStreaming {
		s.state = StateInterrupted
	}

	s.streams.CloseAll()
	if s.tx != nil {
		_ = s.server.config.Backend.Rollback(ctx, s.tx)
		s.tx = nil
	}

	if s.sessionHandle != nil {
		s.state = StateReady
	} else {
		s.state = StateUnauthenticated
	}

	s.server.config.Audit.LogSession(audit.EventReset, s.id, "", s.principal, s.remoteAddr, true, "")
	return s.sendSuccess(nil)
}

// handleGoodbye closes the session cooperatively: no reply is sent, and
// dispatch's caller treats errGoodbye as a normal connection end rather
// than a failure to log.
func (s *Session) handleGoodbye(ctx context.Context, m *message.Goodbye) error {
	s.state = StateClosed
	return errGoodbye
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func stringMapOrNil(d *packstream.Dictionary) map[string]string {
	if d == nil || d.Len() == 0 {
		return nil
	}
	return stringMap(d)
}
