package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/nornicgraph/boltd/pkg/audit"
	"github.com/nornicgraph/boltd/pkg/auth"
	"github.com/nornicgraph/boltd/pkg/backend"
	"github.com/nornicgraph/boltd/pkg/chunk"
	"github.com/nornicgraph/boltd/pkg/demobackend"
	"github.com/nornicgraph/boltd/pkg/message"
	"github.com/nornicgraph/boltd/pkg/packstream"
)

// testClient drives one side of a net.Pipe like a Bolt driver would: raw
// handshake bytes, then chunk-framed messages in both directions.
type testClient struct {
	t    *testing.T
	conn net.Conn
	w    *chunk.Writer
	r    *chunk.Reader
}

func newTestClient(t *testing.T, conn net.Conn) *testClient {
	return &testClient{t: t, conn: conn, w: chunk.NewWriter(0), r: chunk.NewReader(0)}
}

func (c *testClient) handshake(major, minor, rnge byte) Version {
	t := c.t
	t.Helper()
	if _, err := c.conn.Write(magic); err != nil {
		t.Fatalf("writing magic: %v", err)
	}
	words := append([]byte{}, proposalWord(major, minor, rnge)...)
	words = append(words, make([]byte, 12)...)
	if _, err := c.conn.Write(words); err != nil {
		t.Fatalf("writing proposed versions: %v", err)
	}
	var reply [4]byte
	n, err := c.conn.Read(reply[:])
	if err != nil || n != 4 {
		t.Fatalf("reading handshake reply: n=%d err=%v", n, err)
	}
	return Version{Major: int(reply[3]), Minor: int(reply[2])}
}

func (c *testClient) send(m encodable) {
	c.t.Helper()
	data, err := m.Encode()
	if err != nil {
		c.t.Fatalf("encoding %T: %v", m, err)
	}
	if err := c.w.WriteMessage(c.conn, data); err != nil {
		c.t.Fatalf("writing %T: %v", m, err)
	}
}

func (c *testClient) recv() any {
	c.t.Helper()
	raw, err := c.r.ReadMessage(c.conn)
	if err != nil {
		c.t.Fatalf("reading message: %v", err)
	}
	msg, err := message.Decode(raw)
	if err != nil {
		c.t.Fatalf("decoding message: %v", err)
	}
	return msg
}

func newTestServer(t *testing.T) (*Server, func()) {
	a := auth.NewAuthenticator(auth.DefaultConfig())
	if _, err := a.CreateUser("alice", "hunter2pass", []auth.Role{auth.RoleAdmin}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	auditLogger := audit.NewLoggerWithWriter(discardWriter{}, audit.Config{})

	cfg := DefaultConfig()
	cfg.Backend = demobackend.New()
	cfg.Auth = a
	cfg.Audit = auditLogger
	srv := New(cfg)
	return srv, func() { auditLogger.Close() }
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func helloExtra() *packstream.Dictionary {
	d := packstream.NewDictionary()
	d.Set("user_agent", "test-client/1.0")
	return d
}

func logonAuth(user, pass string) *packstream.Dictionary {
	d := packstream.NewDictionary()
	d.Set("scheme", "basic")
	d.Set("principal", user)
	d.Set("credentials", pass)
	return d
}

func asSuccess(t *testing.T, m any) *message.Success {
	t.Helper()
	s, ok := m.(*message.Success)
	if !ok {
		t.Fatalf("expected *message.Success, got %T (%+v)", m, m)
	}
	return s
}

func asFailure(t *testing.T, m any) *message.Failure {
	t.Helper()
	f, ok := m.(*message.Failure)
	if !ok {
		t.Fatalf("expected *message.Failure, got %T (%+v)", m, m)
	}
	return f
}

// TestHappyPathHelloLogonRunPull drives scenario 3: HELLO, LOGON, RUN,
// PULL, GOODBYE, asserting the exact state traversal spec.md §8 names.
func TestHappyPathHelloLogonRunPull(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	clientConn, serverConn := net.Pipe()
	sess := newSession(serverConn, srv)
	done := make(chan struct{})
	go func() {
		sess.run(context.Background())
		close(done)
	}()

	c := newTestClient(t, clientConn)
	v := c.handshake(5, 4, 3)
	if v.Major != 5 || v.Minor < 1 || v.Minor > 4 {
		t.Fatalf("unexpected negotiated version: %s", v)
	}

	c.send(&message.Hello{Extra: helloExtra()})
	asSuccess(t, c.recv())

	c.send(&message.Logon{Auth: logonAuth("alice", "hunter2pass")})
	asSuccess(t, c.recv())

	c.send(&message.Run{Query: "RETURN 1 AS x", Parameters: packstream.NewDictionary(), Extra: packstream.NewDictionary()})
	runOK := asSuccess(t, c.recv())
	fields, _ := runOK.Metadata.Get("fields")
	if list, ok := fields.([]any); !ok || len(list) != 1 || list[0] != "x" {
		t.Fatalf("unexpected fields metadata: %v", fields)
	}

	pullExtra := packstream.NewDictionary()
	pullExtra.Set("n", int64(-1))
	c.send(&message.Pull{Extra: pullExtra})

	rec, ok := c.recv().(*message.Record)
	if !ok {
		t.Fatalf("expected *message.Record")
	}
	if len(rec.Fields) != 1 || rec.Fields[0] != int64(1) {
		t.Fatalf("unexpected record fields: %v", rec.Fields)
	}
	pullOK := asSuccess(t, c.recv())
	if _, ok := pullOK.Metadata.Get("has_more"); ok {
		t.Fatal("expected has_more to be absent once the stream is exhausted")
	}
	if typ, _ := pullOK.Metadata.Get("type"); typ != "r" {
		t.Fatalf("expected summary type r, got %v", typ)
	}

	c.send(&message.Goodbye{})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close after GOODBYE")
	}
}

// TestFailureRecoversViaReset drives scenario 4: an invalid RUN moves the
// session to Failed, a following message is IGNORED, and RESET recovers it
// to Ready for a subsequent successful RUN.
func TestFailureRecoversViaReset(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	clientConn, serverConn := net.Pipe()
	sess := newSession(serverConn, srv)
	done := make(chan struct{})
	go func() {
		sess.run(context.Background())
		close(done)
	}()

	c := newTestClient(t, clientConn)
	c.handshake(5, 4, 3)
	c.send(&message.Hello{Extra: helloExtra()})
	asSuccess(t, c.recv())
	c.send(&message.Logon{Auth: logonAuth("alice", "hunter2pass")})
	asSuccess(t, c.recv())

	c.send(&message.Run{Query: "MATCH (n) RETURN n", Parameters: packstream.NewDictionary(), Extra: packstream.NewDictionary()})
	asFailure(t, c.recv())

	pullExtra := packstream.NewDictionary()
	c.send(&message.Pull{Extra: pullExtra})
	if _, ok := c.recv().(*message.Ignored); !ok {
		t.Fatal("expected IGNORED while session is Failed")
	}

	c.send(&message.Reset{})
	asSuccess(t, c.recv())

	c.send(&message.Run{Query: "RETURN 1", Parameters: packstream.NewDictionary(), Extra: packstream.NewDictionary()})
	asSuccess(t, c.recv())

	c.send(&message.Goodbye{})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close after GOODBYE")
	}
}

func TestProtocolViolationClosesConnection(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	clientConn, serverConn := net.Pipe()
	sess := newSession(serverConn, srv)
	done := make(chan struct{})
	go func() {
		sess.run(context.Background())
		close(done)
	}()

	c := newTestClient(t, clientConn)
	c.handshake(5, 4, 3)

	// RUN before HELLO/LOGON is a state-machine violation, not a backend
	// error: it must close the connection, not merely enter Failed.
	c.send(&message.Run{Query: "RETURN 1", Parameters: packstream.NewDictionary(), Extra: packstream.NewDictionary()})
	asFailure(t, c.recv())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected connection to close after a protocol violation")
	}
}

// TestLockedAccountLogonIsForbiddenAndAudited drives a LOGON against an
// account locked out by prior failed attempts: the reply must carry
// Forbidden (not Unauthorized, since the credentials on this attempt are
// correct), and the audit trail must record ACCESS_DENIED rather than
// LOGON_FAILED for it.
func TestLockedAccountLogonIsForbiddenAndAudited(t *testing.T) {
	authCfg := auth.DefaultConfig()
	authCfg.MaxFailedLogins = 1
	a := auth.NewAuthenticator(authCfg)
	if _, err := a.CreateUser("bob", "correcthorse1", nil); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	var auditLog bytes.Buffer
	auditLogger := audit.NewLoggerWithWriter(&auditLog, audit.Config{})
	defer auditLogger.Close()

	cfg := DefaultConfig()
	cfg.Backend = demobackend.New()
	cfg.Auth = a
	cfg.Audit = auditLogger
	srv := New(cfg)

	clientConn, serverConn := net.Pipe()
	sess := newSession(serverConn, srv)
	done := make(chan struct{})
	go func() {
		sess.run(context.Background())
		close(done)
	}()

	c := newTestClient(t, clientConn)
	c.handshake(5, 4, 3)
	c.send(&message.Hello{Extra: helloExtra()})
	asSuccess(t, c.recv())

	// One wrong attempt trips MaxFailedLogins and locks the account.
	c.send(&message.Logon{Auth: logonAuth("bob", "wrong")})
	asFailure(t, c.recv())

	// A failed LOGON leaves the session Failed; RESET (then a fresh
	// HELLO, since RESET with no session handle drops to Unauthenticated)
	// is needed before a second LOGON attempt is even allowed.
	c.send(&message.Reset{})
	asSuccess(t, c.recv())
	c.send(&message.Hello{Extra: helloExtra()})
	asSuccess(t, c.recv())

	// A second LOGON with the right password still fails, now as
	// Forbidden rather than Unauthorized, since the account is locked.
	c.send(&message.Logon{Auth: logonAuth("bob", "correcthorse1")})
	f := asFailure(t, c.recv())
	if code, _ := f.Metadata.Get("code"); code != backend.CodeForbidden {
		t.Fatalf("expected code %q, got %v", backend.CodeForbidden, code)
	}

	c.send(&message.Goodbye{})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close after GOODBYE")
	}

	lines := strings.Split(strings.TrimSpace(auditLog.String()), "\n")
	var events []audit.Event
	for _, line := range lines {
		var e audit.Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("unmarshaling audit line %q: %v", line, err)
		}
		events = append(events, e)
	}

	var logonFailed, accessDenied int
	for _, e := range events {
		switch e.Type {
		case audit.EventLogonFailed:
			logonFailed++
		case audit.EventAccessDenied:
			accessDenied++
		}
	}
	if logonFailed != 1 {
		t.Fatalf("expected exactly one LOGON_FAILED event for the wrong-password attempt, got %d (events: %+v)", logonFailed, events)
	}
	if accessDenied != 1 {
		t.Fatalf("expected exactly one ACCESS_DENIED event for the locked-account attempt, got %d (events: %+v)", accessDenied, events)
	}
}
