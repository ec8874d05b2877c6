package message

import "github.com/nornicgraph/boltd/pkg/packstream"

// Hello is the client's initial connection-metadata message (v5.1+ carries
// no credentials here; those arrive in a following Logon).
type Hello struct {
	Extra *packstream.Dictionary
}

func (m *Hello) Encode() ([]byte, error) {
	return packstream.MarshalStructure(TagHello, dictOrEmpty(m.Extra))
}

// Goodbye tells the server the client is closing the connection.
type Goodbye struct{}

func (m *Goodbye) Encode() ([]byte, error) { return packstream.MarshalStructure(TagGoodbye) }

// Reset is the cooperative cancel/recovery message: valid from any state,
// it discards pending streams, rolls back any open transaction, and
// returns the session to Ready (or Unauthenticated if LOGON never
// completed).
type Reset struct{}

func (m *Reset) Encode() ([]byte, error) { return packstream.MarshalStructure(TagReset) }

// Run starts a new query, optionally inside the current transaction.
type Run struct {
	Query      string
	Parameters *packstream.Dictionary
	Extra      *packstream.Dictionary
}

func (m *Run) Encode() ([]byte, error) {
	return packstream.MarshalStructure(TagRun, m.Query, dictOrEmpty(m.Parameters), dictOrEmpty(m.Extra))
}

// Discard drops up to Extra["n"] pending records of the stream named by
// Extra["qid"] without sending them to the client.
type Discard struct {
	Extra *packstream.Dictionary
}

func (m *Discard) Encode() ([]byte, error) {
	return packstream.MarshalStructure(TagDiscard, dictOrEmpty(m.Extra))
}

// Pull drains up to Extra["n"] pending records of the stream named by
// Extra["qid"], each as a Record, followed by a summary Success.
type Pull struct {
	Extra *packstream.Dictionary
}

func (m *Pull) Encode() ([]byte, error) {
	return packstream.MarshalStructure(TagPull, dictOrEmpty(m.Extra))
}

// Begin opens an explicit transaction.
type Begin struct {
	Extra *packstream.Dictionary
}

func (m *Begin) Encode() ([]byte, error) {
	return packstream.MarshalStructure(TagBegin, dictOrEmpty(m.Extra))
}

// Commit commits the current transaction.
type Commit struct{}

func (m *Commit) Encode() ([]byte, error) { return packstream.MarshalStructure(TagCommit) }

// Rollback rolls back the current transaction.
type Rollback struct{}

func (m *Rollback) Encode() ([]byte, error) { return packstream.MarshalStructure(TagRollback) }

// Logon carries the auth dict (scheme/principal/credentials/realm) that
// HELLO no longer does as of Bolt 5.1.
type Logon struct {
	Auth *packstream.Dictionary
}

func (m *Logon) Encode() ([]byte, error) {
	return packstream.MarshalStructure(TagLogon, dictOrEmpty(m.Auth))
}

// Logoff clears the session's auth context, returning it to Authentication.
type Logoff struct{}

func (m *Logoff) Encode() ([]byte, error) { return packstream.MarshalStructure(TagLogoff) }

// Telemetry reports client-side usage metrics; the core accepts and
// acknowledges it without interpreting the payload.
type Telemetry struct {
	Metrics *packstream.Dictionary
}

func (m *Telemetry) Encode() ([]byte, error) {
	return packstream.MarshalStructure(TagTelemetry, dictOrEmpty(m.Metrics))
}

// Route asks for a routing table. The core rejects it when the backend
// does not implement routing (spec.md §6).
type Route struct {
	Routing   *packstream.Dictionary
	Bookmarks []string
	Extra     *packstream.Dictionary
}

func (m *Route) Encode() ([]byte, error) {
	return packstream.MarshalStructure(TagRoute, dictOrEmpty(m.Routing), stringListToAny(m.Bookmarks), dictOrEmpty(m.Extra))
}

// Success answers a request with metadata describing the outcome.
type Success struct {
	Metadata *packstream.Dictionary
}

func (m *Success) Encode() ([]byte, error) {
	return packstream.MarshalStructure(TagSuccess, dictOrEmpty(m.Metadata))
}

// Record carries one row of a result stream, in RUN's declared field order.
type Record struct {
	Fields []any
}

func (m *Record) Encode() ([]byte, error) {
	fields := m.Fields
	if fields == nil {
		fields = []any{}
	}
	return packstream.MarshalStructure(TagRecord, fields)
}

// Ignored answers a request while the session is Failed or Interrupted.
type Ignored struct{}

func (m *Ignored) Encode() ([]byte, error) { return packstream.MarshalStructure(TagIgnored) }

// Failure answers a request that could not be carried out; Metadata
// carries a Neo4j-style dotted "code" and human-readable "message"
// (spec.md §6).
type Failure struct {
	Metadata *packstream.Dictionary
}

func (m *Failure) Encode() ([]byte, error) {
	return packstream.MarshalStructure(TagFailure, dictOrEmpty(m.Metadata))
}

func dictOrEmpty(d *packstream.Dictionary) *packstream.Dictionary {
	if d == nil {
		return packstream.NewDictionary()
	}
	return d
}

func stringListToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
