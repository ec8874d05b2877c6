package packstream

// EncodeStructure appends an arbitrary tagged structure to the scratch
// buffer. It is the primitive pkg/message builds request/response messages
// on top of: the message codec owns the tag→shape mapping, this package
// only knows how to lay a (tag, fields) pair out on the wire.
func (e *Encoder) EncodeStructure(tag byte, fields ...any) ([]byte, error) {
	if err := e.encodeStruct(tag, fields...); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// MarshalStructure encodes a single tagged structure into a freshly
// allocated slice.
func MarshalStructure(tag byte, fields ...any) ([]byte, error) {
	e := NewEncoder()
	return e.EncodeStructure(tag, fields...)
}
