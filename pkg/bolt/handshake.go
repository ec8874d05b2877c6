package bolt

import (
	"bytes"
	"fmt"
	"io"
)

// magic is Bolt's fixed 4-byte preamble every client sends before its four
// proposed versions (spec.md §4.1).
var magic = []byte{0x60, 0x60, 0xB0, 0x17}

// Version is a Bolt protocol version. Negotiation only compares
// (Major, Minor); Range only ever appears inside a proposal word, never in
// a server's reply or in Config.SupportedVersions.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// higher reports whether v is strictly preferred over other: bigger major
// first, then bigger minor.
func (v Version) higher(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor > other.Minor
}

// proposal is one of the four 4-byte version words a client offers. Wire
// layout is [reserved, range, minor, major] by byte position (spec.md §4.1
// scenario 1): a non-zero range additionally proposes every minor version
// from minor-range through minor at the same major.
type proposal struct {
	major int
	minor int
	rnge  int
}

func decodeProposal(word [4]byte) proposal {
	return proposal{major: int(word[3]), minor: int(word[2]), rnge: int(word[1])}
}

// candidates expands a proposal into the individual (major, minor) pairs
// it offers, highest minor first.
func (p proposal) candidates() []Version {
	out := make([]Version, 0, p.rnge+1)
	for m := p.minor; m >= p.minor-p.rnge && m >= 0; m-- {
		out = append(out, Version{Major: p.major, Minor: m})
	}
	return out
}

// negotiateVersion performs the Bolt handshake on conn: reads the 4-byte
// magic and four 4-byte version proposals, and writes back either the
// highest version both sides support or four zero bytes before returning
// an error (spec.md §4.1, §8 scenario 1).
func negotiateVersion(rw io.ReadWriter, supported []Version) (Version, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(rw, hdr[:]); err != nil {
		return Version{}, fmt.Errorf("bolt: reading handshake magic: %w", err)
	}
	if !bytes.Equal(hdr[:], magic) {
		return Version{}, fmt.Errorf("%w: bad magic bytes %x", ErrProtocolViolation, hdr)
	}

	var raw [16]byte
	if _, err := io.ReadFull(rw, raw[:]); err != nil {
		return Version{}, fmt.Errorf("bolt: reading proposed versions: %w", err)
	}

	var best Version
	found := false
	for i := 0; i < 4; i++ {
		var w [4]byte
		copy(w[:], raw[i*4:i*4+4])
		p := decodeProposal(w)
		if p.major == 0 && p.minor == 0 && p.rnge == 0 {
			continue
		}
		for _, c := range p.candidates() {
			if !supportsVersion(supported, c) {
				continue
			}
			if !found || c.higher(best) {
				best = c
				found = true
			}
		}
	}

	if !found {
		if _, err := rw.Write([]byte{0, 0, 0, 0}); err != nil {
			return Version{}, fmt.Errorf("bolt: writing handshake rejection: %w", err)
		}
		return Version{}, fmt.Errorf("%w: no mutually supported version", ErrProtocolViolation)
	}

	reply := []byte{0, 0, byte(best.Minor), byte(best.Major)}
	if _, err := rw.Write(reply); err != nil {
		return Version{}, fmt.Errorf("bolt: writing handshake reply: %w", err)
	}
	return best, nil
}

func supportsVersion(supported []Version, v Version) bool {
	for _, s := range supported {
		if s == v {
			return true
		}
	}
	return false
}
