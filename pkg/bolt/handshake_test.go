package bolt

import (
	"bytes"
	"errors"
	"testing"
)

func proposalWord(major, minor, rnge byte) []byte {
	return []byte{0x00, rnge, minor, major}
}

func handshakeInput(words ...[]byte) []byte {
	buf := append([]byte{}, magic...)
	for _, w := range words {
		buf = append(buf, w...)
	}
	for len(buf) < 4+16 {
		buf = append(buf, proposalWord(0, 0, 0)...)
	}
	return buf
}

func TestNegotiateVersionPicksHighestMutual(t *testing.T) {
	var conn bytes.Buffer
	conn.Write(handshakeInput(
		proposalWord(5, 4, 3), // offers 5.1-5.4
	))

	v, err := negotiateVersion(&conn, []Version{{5, 2}, {5, 3}})
	if err != nil {
		t.Fatalf("negotiateVersion: %v", err)
	}
	if v != (Version{5, 3}) {
		t.Fatalf("expected 5.3, got %s", v)
	}
	reply := conn.Bytes()
	if !bytes.Equal(reply, []byte{0x00, 0x00, 0x03, 0x05}) {
		t.Fatalf("unexpected reply bytes: %x", reply)
	}
}

func TestNegotiateVersionExactMatchNoRange(t *testing.T) {
	var conn bytes.Buffer
	conn.Write(handshakeInput(proposalWord(5, 1, 0)))

	v, err := negotiateVersion(&conn, []Version{{5, 1}})
	if err != nil {
		t.Fatalf("negotiateVersion: %v", err)
	}
	if v != (Version{5, 1}) {
		t.Fatalf("expected 5.1, got %s", v)
	}
}

func TestNegotiateVersionNoMatchWritesZeroesAndErrors(t *testing.T) {
	var conn bytes.Buffer
	conn.Write(handshakeInput(proposalWord(3, 0, 0)))

	_, err := negotiateVersion(&conn, []Version{{5, 1}})
	if err == nil {
		t.Fatal("expected an error for no mutual version")
	}
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
	if !bytes.Equal(conn.Bytes(), []byte{0, 0, 0, 0}) {
		t.Fatalf("expected four zero bytes, got %x", conn.Bytes())
	}
}

func TestNegotiateVersionBadMagic(t *testing.T) {
	var conn bytes.Buffer
	conn.Write([]byte{0x00, 0x00, 0x00, 0x00})
	conn.Write(make([]byte, 16))

	_, err := negotiateVersion(&conn, []Version{{5, 1}})
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
}

func TestNegotiateVersionReadErrorOnTruncatedMagic(t *testing.T) {
	var conn bytes.Buffer
	conn.Write([]byte{0x60, 0x60})

	_, err := negotiateVersion(&conn, []Version{{5, 1}})
	if err == nil {
		t.Fatal("expected an error on truncated magic")
	}
}

func TestProposalCandidatesExpandsRange(t *testing.T) {
	p := proposal{major: 5, minor: 4, rnge: 3}
	got := p.candidates()
	want := []Version{{5, 4}, {5, 3}, {5, 2}, {5, 1}}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestVersionHigher(t *testing.T) {
	if !(Version{5, 2}).higher(Version{5, 1}) {
		t.Error("5.2 should be higher than 5.1")
	}
	if !(Version{5, 0}).higher(Version{4, 9}) {
		t.Error("5.0 should be higher than 4.9")
	}
	if (Version{5, 1}).higher(Version{5, 1}) {
		t.Error("a version is not higher than itself")
	}
}
