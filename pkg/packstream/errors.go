package packstream

import "errors"

// Decoding errors, per spec.md §4.1's decoding contract.
var (
	// ErrInvalidMarker is returned when a byte does not correspond to any
	// known PackStream marker.
	ErrInvalidMarker = errors.New("packstream: invalid marker")

	// ErrTruncatedInput is returned when the input ends before a value's
	// declared length is satisfied.
	ErrTruncatedInput = errors.New("packstream: truncated input")

	// ErrInvalidUTF8 is returned when a string's bytes are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("packstream: invalid UTF-8 in string")

	// ErrOversizedCollection is returned when a declared length exceeds the
	// remaining input budget. The decoder never allocates a container
	// larger than what the remaining input could possibly fill.
	ErrOversizedCollection = errors.New("packstream: collection length exceeds input budget")

	// ErrUnknownStructureTag is returned when a structure with a known value
	// tag and field count has a field of the wrong type. A tag this package
	// does not know decodes to a generic *Structure, not to this error.
	ErrUnknownStructureTag = errors.New("packstream: unknown structure tag")

	// ErrDuplicateKey is returned when a dictionary has a repeated key.
	ErrDuplicateKey = errors.New("packstream: duplicate dictionary key")

	// ErrNonStringKey is returned when a dictionary key is not a string.
	ErrNonStringKey = errors.New("packstream: dictionary key must be a string")

	// ErrIntegerOutOfRange is returned when an integer value cannot be
	// represented in the signed 64-bit range the wire format supports.
	ErrIntegerOutOfRange = errors.New("packstream: integer out of representable range")

	// ErrTooManyFields is returned when a structure would need more than
	// 15 fields to encode (the tiny-structure marker's low nibble is the
	// only field-count carrier PackStream defines).
	ErrTooManyFields = errors.New("packstream: structure has too many fields")
)
