// Package packstream implements PackStream, the self-describing binary
// value encoding used by the Bolt protocol.
package packstream

// Marker bytes. Tiny-value ranges encode the value directly in the marker;
// everything else names a size class followed by a length and payload.
const (
	markerTinyIntMax = 0x7F // 0x00..0x7F: tiny positive int, value = marker
	markerTinyIntMin = 0xF0 // 0xF0..0xFF: tiny negative int, sign-extended low nibble

	markerTinyStringBase = 0x80 // 0x80..0x8F: tiny string, length = low nibble
	markerTinyListBase   = 0x90 // 0x90..0x9F: tiny list
	markerTinyDictBase   = 0xA0 // 0xA0..0xAF: tiny dict
	markerTinyStructBase = 0xB0 // 0xB0..0xBF: structure, low nibble = field count

	markerNull    = 0xC0
	markerFloat64 = 0xC1
	markerFalse   = 0xC2
	markerTrue    = 0xC3

	markerInt8  = 0xC8
	markerInt16 = 0xC9
	markerInt32 = 0xCA
	markerInt64 = 0xCB

	markerBytes8  = 0xCC
	markerBytes16 = 0xCD
	markerBytes32 = 0xCE

	markerString8  = 0xD0
	markerString16 = 0xD1
	markerString32 = 0xD2

	markerList8  = 0xD4
	markerList16 = 0xD5
	markerList32 = 0xD6

	markerDict8  = 0xD8
	markerDict16 = 0xD9
	markerDict32 = 0xDA
)

// Structure tag bytes, shared between the value layer (temporal/spatial/
// graph types) and the message layer (request/response structures).
const (
	TagNode                = 0x4E
	TagRelationship        = 0x52
	TagUnboundRelationship = 0x72
	TagPath                = 0x50
	TagDate                = 0x44
	TagTime                = 0x54
	TagLocalTime           = 0x74
	TagDateTimeOffset      = 0x49
	TagDateTimeZoneID      = 0x69
	TagLocalDateTime       = 0x64
	TagDuration            = 0x45
	TagPoint2D             = 0x58
	TagPoint3D             = 0x59
)

// isTinyPositiveInt and isTinyNegativeInt report whether marker m in
// 0x00..0x7F or 0xF0..0xFF, respectively, encodes a tiny integer directly.
func isTinyPositiveInt(m byte) bool { return m <= markerTinyIntMax }
func isTinyNegativeInt(m byte) bool { return m >= markerTinyIntMin }
