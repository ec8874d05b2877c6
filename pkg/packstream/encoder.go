package packstream

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder serializes BoltValues into PackStream's binary form. It owns a
// reusable scratch buffer so repeated Encode calls on the same connection
// don't allocate a fresh slice each time (spec.md §9's allocation-reuse
// design note) — callers that need to keep the bytes past the next Encode
// call must copy them out first.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with an empty scratch buffer.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Reset clears the scratch buffer without releasing its backing array.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the bytes written since the last Reset. The slice aliases
// the Encoder's internal buffer.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Encode appends the PackStream encoding of v to the scratch buffer and
// returns the buffer's full contents.
func (e *Encoder) Encode(v any) ([]byte, error) {
	if err := e.encodeValue(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Marshal encodes a single value into a freshly allocated slice. Prefer a
// reused Encoder on hot paths (e.g. per-message in pkg/bolt).
func Marshal(v any) ([]byte, error) {
	e := NewEncoder()
	return e.Encode(v)
}

func (e *Encoder) encodeValue(v any) error {
	switch val := v.(type) {
	case nil:
		e.buf = append(e.buf, markerNull)
		return nil
	case bool:
		if val {
			e.buf = append(e.buf, markerTrue)
		} else {
			e.buf = append(e.buf, markerFalse)
		}
		return nil
	case int:
		return e.encodeInt(int64(val))
	case int64:
		return e.encodeInt(val)
	case float64:
		e.buf = append(e.buf, markerFloat64)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(val))
		e.buf = append(e.buf, tmp[:]...)
		return nil
	case string:
		return e.encodeString(val)
	case []byte:
		return e.encodeBytes(val)
	case []any:
		return e.encodeList(val)
	case *Dictionary:
		return e.encodeDictionary(val)
	case *Node:
		return e.encodeNode(val)
	case *Relationship:
		return e.encodeRelationship(val)
	case *UnboundRelationship:
		return e.encodeUnboundRelationship(val)
	case *Path:
		return e.encodePath(val)
	case Date:
		return e.encodeStruct(TagDate, int64(val.Days))
	case Time:
		return e.encodeStruct(TagTime, val.Nanos, int64(val.OffsetSeconds))
	case LocalTime:
		return e.encodeStruct(TagLocalTime, val.Nanos)
	case DateTime:
		return e.encodeStruct(TagDateTimeOffset, val.Seconds, int64(val.Nanos), int64(val.OffsetSeconds))
	case DateTimeZoneID:
		return e.encodeStruct(TagDateTimeZoneID, val.Seconds, int64(val.Nanos), val.ZoneID)
	case LocalDateTime:
		return e.encodeStruct(TagLocalDateTime, val.Seconds, int64(val.Nanos))
	case Duration:
		return e.encodeStruct(TagDuration, val.Months, val.Days, val.Seconds, int64(val.Nanos))
	case Point2D:
		return e.encodeStruct(TagPoint2D, int64(val.SRID), val.X, val.Y)
	case Point3D:
		return e.encodeStruct(TagPoint3D, int64(val.SRID), val.X, val.Y, val.Z)
	default:
		return fmt.Errorf("packstream: cannot encode value of type %T", v)
	}
}

func (e *Encoder) encodeInt(n int64) error {
	switch {
	case n >= 0 && n <= int64(markerTinyIntMax):
		e.buf = append(e.buf, byte(n))
	case n < 0 && n >= -16:
		e.buf = append(e.buf, byte(int8(n)))
	case n >= math.MinInt8 && n <= math.MaxInt8:
		e.buf = append(e.buf, markerInt8, byte(int8(n)))
	case n >= math.MinInt16 && n <= math.MaxInt16:
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(int16(n)))
		e.buf = append(e.buf, markerInt16)
		e.buf = append(e.buf, tmp[:]...)
	case n >= math.MinInt32 && n <= math.MaxInt32:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(int32(n)))
		e.buf = append(e.buf, markerInt32)
		e.buf = append(e.buf, tmp[:]...)
	default:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(n))
		e.buf = append(e.buf, markerInt64)
		e.buf = append(e.buf, tmp[:]...)
	}
	return nil
}

func (e *Encoder) encodeString(s string) error {
	n := len(s)
	switch {
	case n <= 15:
		e.buf = append(e.buf, markerTinyStringBase|byte(n))
	case n <= 0xFF:
		e.buf = append(e.buf, markerString8, byte(n))
	case n <= 0xFFFF:
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(n))
		e.buf = append(e.buf, markerString16)
		e.buf = append(e.buf, tmp[:]...)
	case uint64(n) <= 0xFFFFFFFF:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(n))
		e.buf = append(e.buf, markerString32)
		e.buf = append(e.buf, tmp[:]...)
	default:
		return fmt.Errorf("packstream: string too long to encode (%d bytes)", n)
	}
	e.buf = append(e.buf, s...)
	return nil
}

func (e *Encoder) encodeBytes(b []byte) error {
	n := len(b)
	switch {
	case n <= 0xFF:
		e.buf = append(e.buf, markerBytes8, byte(n))
	case n <= 0xFFFF:
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(n))
		e.buf = append(e.buf, markerBytes16)
		e.buf = append(e.buf, tmp[:]...)
	case uint64(n) <= 0xFFFFFFFF:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(n))
		e.buf = append(e.buf, markerBytes32)
		e.buf = append(e.buf, tmp[:]...)
	default:
		return fmt.Errorf("packstream: byte array too long to encode (%d bytes)", n)
	}
	e.buf = append(e.buf, b...)
	return nil
}

func (e *Encoder) encodeList(items []any) error {
	if err := e.writeContainerHeader(markerTinyListBase, markerList8, markerList16, markerList32, len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := e.encodeValue(item); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeDictionary(d *Dictionary) error {
	n := d.Len()
	if err := e.writeContainerHeader(markerTinyDictBase, markerDict8, markerDict16, markerDict32, n); err != nil {
		return err
	}
	var encodeErr error
	d.Range(func(key string, value any) bool {
		if err := e.encodeString(key); err != nil {
			encodeErr = err
			return false
		}
		if err := e.encodeValue(value); err != nil {
			encodeErr = err
			return false
		}
		return true
	})
	return encodeErr
}

// writeContainerHeader appends the marker+length prefix shared by lists and
// dictionaries (whose length counts entries, not bytes).
func (e *Encoder) writeContainerHeader(tinyBase, m8, m16, m32 byte, n int) error {
	switch {
	case n <= 15:
		e.buf = append(e.buf, tinyBase|byte(n))
	case n <= 0xFF:
		e.buf = append(e.buf, m8, byte(n))
	case n <= 0xFFFF:
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(n))
		e.buf = append(e.buf, m16)
		e.buf = append(e.buf, tmp[:]...)
	case uint64(n) <= 0xFFFFFFFF:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(n))
		e.buf = append(e.buf, m32)
		e.buf = append(e.buf, tmp[:]...)
	default:
		return fmt.Errorf("packstream: container too large to encode (%d entries)", n)
	}
	return nil
}

// encodeStructHeader appends a structure marker for fieldCount fields
// tagged with tag. PackStream's tiny-structure marker's low nibble is the
// only field-count carrier defined, so fieldCount must fit in 4 bits.
func (e *Encoder) encodeStructHeader(tag byte, fieldCount int) error {
	if fieldCount > 15 {
		return ErrTooManyFields
	}
	e.buf = append(e.buf, markerTinyStructBase|byte(fieldCount), tag)
	return nil
}

// encodeStruct encodes a fixed-shape structure (the temporal/spatial value
// types) from already-typed field values.
func (e *Encoder) encodeStruct(tag byte, fields ...any) error {
	if err := e.encodeStructHeader(tag, len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := e.encodeValue(f); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeNode(n *Node) error {
	if err := e.encodeStructHeader(TagNode, 4); err != nil {
		return err
	}
	if err := e.encodeInt(n.ID); err != nil {
		return err
	}
	labels := make([]any, len(n.Labels))
	for i, l := range n.Labels {
		labels[i] = l
	}
	if err := e.encodeList(labels); err != nil {
		return err
	}
	props := n.Properties
	if props == nil {
		props = NewDictionary()
	}
	if err := e.encodeDictionary(props); err != nil {
		return err
	}
	return e.encodeString(n.ElementID)
}

func (e *Encoder) encodeRelationship(r *Relationship) error {
	if err := e.encodeStructHeader(TagRelationship, 8); err != nil {
		return err
	}
	for _, id := range []int64{r.ID, r.StartID, r.EndID} {
		if err := e.encodeInt(id); err != nil {
			return err
		}
	}
	if err := e.encodeString(r.Type); err != nil {
		return err
	}
	props := r.Properties
	if props == nil {
		props = NewDictionary()
	}
	if err := e.encodeDictionary(props); err != nil {
		return err
	}
	for _, s := range []string{r.ElementID, r.StartElementID, r.EndElementID} {
		if err := e.encodeString(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeUnboundRelationship(r *UnboundRelationship) error {
	if err := e.encodeStructHeader(TagUnboundRelationship, 4); err != nil {
		return err
	}
	if err := e.encodeInt(r.ID); err != nil {
		return err
	}
	if err := e.encodeString(r.Type); err != nil {
		return err
	}
	props := r.Properties
	if props == nil {
		props = NewDictionary()
	}
	if err := e.encodeDictionary(props); err != nil {
		return err
	}
	return e.encodeString(r.ElementID)
}

func (e *Encoder) encodePath(p *Path) error {
	if err := e.encodeStructHeader(TagPath, 3); err != nil {
		return err
	}
	nodes := make([]any, len(p.Nodes))
	for i, n := range p.Nodes {
		nodes[i] = n
	}
	if err := e.encodeList(nodes); err != nil {
		return err
	}
	rels := make([]any, len(p.Rels))
	for i, r := range p.Rels {
		rels[i] = r
	}
	if err := e.encodeList(rels); err != nil {
		return err
	}
	indices := make([]any, len(p.Indices))
	for i, idx := range p.Indices {
		indices[i] = idx
	}
	return e.encodeList(indices)
}
