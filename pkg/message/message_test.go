package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nornicgraph/boltd/pkg/packstream"
)

func roundTrip(t *testing.T, m interface{ Encode() ([]byte, error) }) any {
	t.Helper()
	enc, err := m.Encode()
	require.NoError(t, err)
	got, err := Decode(enc)
	require.NoError(t, err)
	return got
}

func TestRoundTripHello(t *testing.T) {
	extra := packstream.NewDictionary()
	extra.Set("user_agent", "t/1")
	got := roundTrip(t, &Hello{Extra: extra})
	h, ok := got.(*Hello)
	require.True(t, ok)
	v, ok := h.Extra.Get("user_agent")
	require.True(t, ok)
	assert.Equal(t, "t/1", v)
}

func TestRoundTripGoodbyeResetCommitRollbackLogoffIgnored(t *testing.T) {
	assert.IsType(t, &Goodbye{}, roundTrip(t, &Goodbye{}))
	assert.IsType(t, &Reset{}, roundTrip(t, &Reset{}))
	assert.IsType(t, &Commit{}, roundTrip(t, &Commit{}))
	assert.IsType(t, &Rollback{}, roundTrip(t, &Rollback{}))
	assert.IsType(t, &Logoff{}, roundTrip(t, &Logoff{}))
	assert.IsType(t, &Ignored{}, roundTrip(t, &Ignored{}))
}

func TestRoundTripRun(t *testing.T) {
	params := packstream.NewDictionary()
	params.Set("x", int64(1))
	extra := packstream.NewDictionary()
	extra.Set("mode", "r")
	got := roundTrip(t, &Run{Query: "RETURN $x", Parameters: params, Extra: extra})
	r, ok := got.(*Run)
	require.True(t, ok)
	assert.Equal(t, "RETURN $x", r.Query)
	v, _ := r.Parameters.Get("x")
	assert.Equal(t, int64(1), v)
	assert.Equal(t, "r", String(r.Extra, "mode", ""))
}

func TestRoundTripPullDiscardDefaults(t *testing.T) {
	extra := packstream.NewDictionary()
	extra.Set("n", int64(-1))
	got := roundTrip(t, &Pull{Extra: extra})
	p, ok := got.(*Pull)
	require.True(t, ok)
	assert.Equal(t, AllRemaining, N(p.Extra))
	assert.Equal(t, MostRecentStream, Qid(p.Extra))
}

func TestRoundTripBegin(t *testing.T) {
	extra := packstream.NewDictionary()
	extra.Set("db", "neo4j")
	got := roundTrip(t, &Begin{Extra: extra})
	b, ok := got.(*Begin)
	require.True(t, ok)
	assert.Equal(t, "neo4j", String(b.Extra, "db", ""))
}

func TestRoundTripLogon(t *testing.T) {
	auth := packstream.NewDictionary()
	auth.Set("scheme", "basic")
	auth.Set("principal", "u")
	auth.Set("credentials", "p")
	got := roundTrip(t, &Logon{Auth: auth})
	l, ok := got.(*Logon)
	require.True(t, ok)
	assert.Equal(t, "basic", String(l.Auth, "scheme", ""))
}

func TestRoundTripTelemetry(t *testing.T) {
	metrics := packstream.NewDictionary()
	metrics.Set("unit", int64(4))
	got := roundTrip(t, &Telemetry{Metrics: metrics})
	tm, ok := got.(*Telemetry)
	require.True(t, ok)
	assert.Equal(t, int64(4), Int64(tm.Metrics, "unit", 0))
}

func TestRoundTripRoute(t *testing.T) {
	got := roundTrip(t, &Route{
		Routing:   packstream.NewDictionary(),
		Bookmarks: []string{"bm1", "bm2"},
		Extra:     packstream.NewDictionary(),
	})
	r, ok := got.(*Route)
	require.True(t, ok)
	assert.Equal(t, []string{"bm1", "bm2"}, r.Bookmarks)
}

func TestRoundTripSuccessRecordFailure(t *testing.T) {
	meta := packstream.NewDictionary()
	meta.Set("fields", []any{"x"})
	got := roundTrip(t, &Success{Metadata: meta})
	s, ok := got.(*Success)
	require.True(t, ok)
	v, _ := s.Metadata.Get("fields")
	assert.Equal(t, []any{"x"}, v)

	rec := roundTrip(t, &Record{Fields: []any{int64(1), "two"}})
	r, ok := rec.(*Record)
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), "two"}, r.Fields)

	fmeta := packstream.NewDictionary()
	fmeta.Set("code", "Neo.ClientError.Statement.SyntaxError")
	fmeta.Set("message", "bad query")
	fail := roundTrip(t, &Failure{Metadata: fmeta})
	f, ok := fail.(*Failure)
	require.True(t, ok)
	assert.Equal(t, "Neo.ClientError.Statement.SyntaxError", String(f.Metadata, "code", ""))
}

func TestDecodeTelemetryNotConfusedWithTimeValue(t *testing.T) {
	// TELEMETRY (tag 0x54, 1 field) shares its tag byte with the value
	// type Time (2 fields); decoding must dispatch on field count.
	metrics := packstream.NewDictionary()
	metrics.Set("unit", int64(0))
	enc, err := packstream.MarshalStructure(TagTelemetry, metrics)
	require.NoError(t, err)
	got, err := Decode(enc)
	require.NoError(t, err)
	_, ok := got.(*Telemetry)
	assert.True(t, ok, "expected *Telemetry, got %T", got)
}

func TestDecodeUnknownTagErrors(t *testing.T) {
	enc, err := packstream.MarshalStructure(0x99)
	require.NoError(t, err)
	_, err = Decode(enc)
	assert.ErrorIs(t, err, ErrUnknownMessageTag)
}

func TestDecodeMalformedFieldCountErrors(t *testing.T) {
	enc, err := packstream.MarshalStructure(TagRun, "RETURN 1")
	require.NoError(t, err)
	_, err = Decode(enc)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}
