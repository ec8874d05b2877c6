package packstream

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Structure is the decoded form of any structure tag this package does not
// know how to turn into a typed value (spec.md §4.3's message structures —
// HELLO, RUN, SUCCESS, and so on — share the same tiny-structure marker
// space as Node/Relationship/Path/temporal/point values but are interpreted
// by pkg/message, not here).
type Structure struct {
	Tag    byte
	Fields []any
}

// Decoder decodes PackStream values from a byte slice. It does not own or
// copy its input; the caller is responsible for keeping the slice alive and
// not mutating it while decoding, mirroring how pkg/chunk hands over a
// reassembled message buffer.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder returns a Decoder reading from buf starting at offset 0.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Pos returns the current read offset into the input.
func (d *Decoder) Pos() int {
	return d.pos
}

// Remaining reports how many bytes are left to read.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// Unmarshal decodes exactly one value from buf and errors if trailing bytes
// remain, matching the "one message, one value" framing pkg/message relies
// on.
func Unmarshal(buf []byte) (any, error) {
	d := NewDecoder(buf)
	v, err := d.Decode()
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, fmt.Errorf("packstream: %d trailing bytes after value", d.Remaining())
	}
	return v, nil
}

func (d *Decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, ErrTruncatedInput
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) readN(n int) ([]byte, error) {
	if n < 0 || n > d.Remaining() {
		return nil, ErrTruncatedInput
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Decode reads and returns one PackStream value.
func (d *Decoder) Decode() (any, error) {
	marker, err := d.readByte()
	if err != nil {
		return nil, err
	}
	switch {
	case isTinyPositiveInt(marker):
		return int64(marker), nil
	case isTinyNegativeInt(marker):
		return int64(int8(marker)), nil
	case marker>>4 == markerTinyStringBase>>4:
		return d.decodeString(int(marker & 0x0F))
	case marker>>4 == markerTinyListBase>>4:
		return d.decodeList(int(marker & 0x0F))
	case marker>>4 == markerTinyDictBase>>4:
		return d.decodeDictionary(int(marker & 0x0F))
	case marker>>4 == markerTinyStructBase>>4:
		return d.decodeStructure(int(marker & 0x0F))
	}

	switch marker {
	case markerNull:
		return nil, nil
	case markerTrue:
		return true, nil
	case markerFalse:
		return false, nil
	case markerFloat64:
		b, err := d.readN(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case markerInt8:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return int64(int8(b)), nil
	case markerInt16:
		b, err := d.readN(2)
		if err != nil {
			return nil, err
		}
		return int64(int16(binary.BigEndian.Uint16(b))), nil
	case markerInt32:
		b, err := d.readN(4)
		if err != nil {
			return nil, err
		}
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	case markerInt64:
		b, err := d.readN(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	case markerBytes8:
		n, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return d.decodeRawBytes(int(n))
	case markerBytes16:
		n, err := d.readLen16()
		if err != nil {
			return nil, err
		}
		return d.decodeRawBytes(n)
	case markerBytes32:
		n, err := d.readLen32()
		if err != nil {
			return nil, err
		}
		return d.decodeRawBytes(n)
	case markerString8:
		n, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return d.decodeString(int(n))
	case markerString16:
		n, err := d.readLen16()
		if err != nil {
			return nil, err
		}
		return d.decodeString(n)
	case markerString32:
		n, err := d.readLen32()
		if err != nil {
			return nil, err
		}
		return d.decodeString(n)
	case markerList8:
		n, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return d.decodeList(int(n))
	case markerList16:
		n, err := d.readLen16()
		if err != nil {
			return nil, err
		}
		return d.decodeList(n)
	case markerList32:
		n, err := d.readLen32()
		if err != nil {
			return nil, err
		}
		return d.decodeList(n)
	case markerDict8:
		n, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return d.decodeDictionary(int(n))
	case markerDict16:
		n, err := d.readLen16()
		if err != nil {
			return nil, err
		}
		return d.decodeDictionary(n)
	case markerDict32:
		n, err := d.readLen32()
		if err != nil {
			return nil, err
		}
		return d.decodeDictionary(n)
	}
	return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidMarker, marker)
}

func (d *Decoder) readLen16() (int, error) {
	b, err := d.readN(2)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(b)), nil
}

func (d *Decoder) readLen32() (int, error) {
	b, err := d.readN(4)
	if err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(b)
	if n > uint32(1<<31-1) {
		return 0, ErrOversizedCollection
	}
	return int(n), nil
}

// checkBudget rejects a declared length that could not possibly be
// satisfied by what remains of the input, so a corrupt or hostile length
// prefix can't force a huge allocation before decoding fails anyway.
func (d *Decoder) checkBudget(n int) error {
	if n < 0 || n > d.Remaining() {
		return ErrOversizedCollection
	}
	return nil
}

func (d *Decoder) decodeRawBytes(n int) ([]byte, error) {
	if err := d.checkBudget(n); err != nil {
		return nil, err
	}
	raw, err := d.readN(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, raw)
	return out, nil
}

func (d *Decoder) decodeString(n int) (string, error) {
	if err := d.checkBudget(n); err != nil {
		return "", err
	}
	raw, err := d.readN(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", ErrInvalidUTF8
	}
	return string(raw), nil
}

func (d *Decoder) decodeList(n int) ([]any, error) {
	// A list of n items needs at least n bytes of input (the smallest
	// possible encoding of a value is one marker byte).
	if err := d.checkBudget(n); err != nil {
		return nil, err
	}
	items := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.Decode()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func (d *Decoder) decodeDictionary(n int) (*Dictionary, error) {
	// Each entry is at least a one-byte key marker and a one-byte value
	// marker.
	if err := d.checkBudget(n * 2); err != nil {
		return nil, err
	}
	dict := NewDictionary()
	for i := 0; i < n; i++ {
		keyVal, err := d.Decode()
		if err != nil {
			return nil, err
		}
		key, ok := keyVal.(string)
		if !ok {
			return nil, ErrNonStringKey
		}
		if _, exists := dict.Get(key); exists {
			return nil, ErrDuplicateKey
		}
		val, err := d.Decode()
		if err != nil {
			return nil, err
		}
		dict.Set(key, val)
	}
	return dict, nil
}

func (d *Decoder) decodeStructure(fieldCount int) (any, error) {
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}
	fields := make([]any, 0, fieldCount)
	for i := 0; i < fieldCount; i++ {
		v, err := d.Decode()
		if err != nil {
			return nil, err
		}
		fields = append(fields, v)
	}
	return buildStructure(tag, fields)
}

// structureFieldCounts names the exact field count each known value tag
// requires. Tag 0x54 is shared on the wire between the value type Time (2
// fields) and the message codec's TELEMETRY (1 field); checking the count
// before committing to a typed value keeps that collision from misparsing
// a TELEMETRY message as a malformed Time.
var structureFieldCounts = map[byte]int{
	TagNode:                4,
	TagRelationship:        8,
	TagUnboundRelationship: 4,
	TagPath:                3,
	TagDate:                1,
	TagTime:                2,
	TagLocalTime:           1,
	TagDateTimeOffset:      3,
	TagDateTimeZoneID:      3,
	TagLocalDateTime:       2,
	TagDuration:            4,
	TagPoint2D:             3,
	TagPoint3D:             4,
}

// buildStructure converts a raw (tag, fields) pair into a typed value for
// the tags this package knows about, or a generic Structure otherwise (the
// message layer's request/response shapes, which share some tag bytes with
// value types but never with a matching field count).
func buildStructure(tag byte, f []any) (any, error) {
	want, known := structureFieldCounts[tag]
	if !known || want != len(f) {
		return &Structure{Tag: tag, Fields: f}, nil
	}
	switch tag {
	case TagNode:
		return asNode(f)
	case TagRelationship:
		return asRelationship(f)
	case TagUnboundRelationship:
		return asUnboundRelationship(f)
	case TagPath:
		return asPath(f)
	case TagDate:
		return asDate(f)
	case TagTime:
		return asTime(f)
	case TagLocalTime:
		return asLocalTime(f)
	case TagDateTimeOffset:
		return asDateTime(f)
	case TagDateTimeZoneID:
		return asDateTimeZoneID(f)
	case TagLocalDateTime:
		return asLocalDateTime(f)
	case TagDuration:
		return asDuration(f)
	case TagPoint2D:
		return asPoint2D(f)
	case TagPoint3D:
		return asPoint3D(f)
	default:
		return &Structure{Tag: tag, Fields: f}, nil
	}
}
