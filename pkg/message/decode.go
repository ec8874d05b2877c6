package message

import (
	"errors"
	"fmt"

	"github.com/nornicgraph/boltd/pkg/packstream"
)

// ErrUnknownMessageTag is returned when a decoded structure's tag does not
// correspond to any message this package knows.
var ErrUnknownMessageTag = errors.New("message: unknown message tag")

// ErrMalformedMessage is returned when a structure has the right tag but
// the wrong field shape for that message.
var ErrMalformedMessage = errors.New("message: malformed message fields")

// Decode reassembles a chunk-framer message buffer into a typed message
// value: one of the Client-request or Server-response struct pointers
// defined in this package.
func Decode(raw []byte) (any, error) {
	v, err := packstream.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	s, ok := v.(*packstream.Structure)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is not a structure (%T)", ErrMalformedMessage, v)
	}
	switch s.Tag {
	case TagHello:
		return decodeHello(s.Fields)
	case TagGoodbye:
		if err := checkArity(s, 0); err != nil {
			return nil, err
		}
		return &Goodbye{}, nil
	case TagReset:
		if err := checkArity(s, 0); err != nil {
			return nil, err
		}
		return &Reset{}, nil
	case TagRun:
		return decodeRun(s.Fields)
	case TagDiscard:
		return decodeDiscard(s.Fields)
	case TagPull:
		return decodePull(s.Fields)
	case TagBegin:
		return decodeBegin(s.Fields)
	case TagCommit:
		if err := checkArity(s, 0); err != nil {
			return nil, err
		}
		return &Commit{}, nil
	case TagRollback:
		if err := checkArity(s, 0); err != nil {
			return nil, err
		}
		return &Rollback{}, nil
	case TagLogon:
		return decodeLogon(s.Fields)
	case TagLogoff:
		if err := checkArity(s, 0); err != nil {
			return nil, err
		}
		return &Logoff{}, nil
	case TagTelemetry:
		return decodeTelemetry(s.Fields)
	case TagRoute:
		return decodeRoute(s.Fields)
	case TagSuccess:
		return decodeSuccess(s.Fields)
	case TagRecord:
		return decodeRecord(s.Fields)
	case TagIgnored:
		if err := checkArity(s, 0); err != nil {
			return nil, err
		}
		return &Ignored{}, nil
	case TagFailure:
		return decodeFailure(s.Fields)
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownMessageTag, s.Tag)
	}
}

func checkArity(s *packstream.Structure, want int) error {
	if len(s.Fields) != want {
		return fmt.Errorf("%w: tag 0x%02X expects %d fields, got %d", ErrMalformedMessage, s.Tag, want, len(s.Fields))
	}
	return nil
}

func dictField(fields []any, i int) (*packstream.Dictionary, error) {
	if i >= len(fields) {
		return nil, fmt.Errorf("%w: missing field %d", ErrMalformedMessage, i)
	}
	d, ok := fields[i].(*packstream.Dictionary)
	if !ok {
		return nil, fmt.Errorf("%w: field %d must be a dictionary, got %T", ErrMalformedMessage, i, fields[i])
	}
	return d, nil
}

func stringField(fields []any, i int) (string, error) {
	if i >= len(fields) {
		return "", fmt.Errorf("%w: missing field %d", ErrMalformedMessage, i)
	}
	s, ok := fields[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: field %d must be a string, got %T", ErrMalformedMessage, i, fields[i])
	}
	return s, nil
}

func listField(fields []any, i int) ([]any, error) {
	if i >= len(fields) {
		return nil, fmt.Errorf("%w: missing field %d", ErrMalformedMessage, i)
	}
	l, ok := fields[i].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: field %d must be a list, got %T", ErrMalformedMessage, i, fields[i])
	}
	return l, nil
}

func stringListField(fields []any, i int) ([]string, error) {
	l, err := listField(fields, i)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(l))
	for j, v := range l {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: field %d entry %d must be a string, got %T", ErrMalformedMessage, i, j, v)
		}
		out[j] = s
	}
	return out, nil
}

func decodeHello(f []any) (*Hello, error) {
	if len(f) != 1 {
		return nil, fmt.Errorf("%w: HELLO expects 1 field, got %d", ErrMalformedMessage, len(f))
	}
	extra, err := dictField(f, 0)
	if err != nil {
		return nil, err
	}
	return &Hello{Extra: extra}, nil
}

func decodeRun(f []any) (*Run, error) {
	if len(f) != 3 {
		return nil, fmt.Errorf("%w: RUN expects 3 fields, got %d", ErrMalformedMessage, len(f))
	}
	query, err := stringField(f, 0)
	if err != nil {
		return nil, err
	}
	params, err := dictField(f, 1)
	if err != nil {
		return nil, err
	}
	extra, err := dictField(f, 2)
	if err != nil {
		return nil, err
	}
	return &Run{Query: query, Parameters: params, Extra: extra}, nil
}

func decodeDiscard(f []any) (*Discard, error) {
	if len(f) != 1 {
		return nil, fmt.Errorf("%w: DISCARD expects 1 field, got %d", ErrMalformedMessage, len(f))
	}
	extra, err := dictField(f, 0)
	if err != nil {
		return nil, err
	}
	return &Discard{Extra: extra}, nil
}

func decodePull(f []any) (*Pull, error) {
	if len(f) != 1 {
		return nil, fmt.Errorf("%w: PULL expects 1 field, got %d", ErrMalformedMessage, len(f))
	}
	extra, err := dictField(f, 0)
	if err != nil {
		return nil, err
	}
	return &Pull{Extra: extra}, nil
}

func decodeBegin(f []any) (*Begin, error) {
	if len(f) != 1 {
		return nil, fmt.Errorf("%w: BEGIN expects 1 field, got %d", ErrMalformedMessage, len(f))
	}
	extra, err := dictField(f, 0)
	if err != nil {
		return nil, err
	}
	return &Begin{Extra: extra}, nil
}

func decodeLogon(f []any) (*Logon, error) {
	if len(f) != 1 {
		return nil, fmt.Errorf("%w: LOGON expects 1 field, got %d", ErrMalformedMessage, len(f))
	}
	auth, err := dictField(f, 0)
	if err != nil {
		return nil, err
	}
	return &Logon{Auth: auth}, nil
}

func decodeTelemetry(f []any) (*Telemetry, error) {
	if len(f) != 1 {
		return nil, fmt.Errorf("%w: TELEMETRY expects 1 field, got %d", ErrMalformedMessage, len(f))
	}
	metrics, err := dictField(f, 0)
	if err != nil {
		return nil, err
	}
	return &Telemetry{Metrics: metrics}, nil
}

func decodeRoute(f []any) (*Route, error) {
	if len(f) != 3 {
		return nil, fmt.Errorf("%w: ROUTE expects 3 fields, got %d", ErrMalformedMessage, len(f))
	}
	routing, err := dictField(f, 0)
	if err != nil {
		return nil, err
	}
	bookmarks, err := stringListField(f, 1)
	if err != nil {
		return nil, err
	}
	extra, err := dictField(f, 2)
	if err != nil {
		return nil, err
	}
	return &Route{Routing: routing, Bookmarks: bookmarks, Extra: extra}, nil
}

func decodeSuccess(f []any) (*Success, error) {
	if len(f) != 1 {
		return nil, fmt.Errorf("%w: SUCCESS expects 1 field, got %d", ErrMalformedMessage, len(f))
	}
	metadata, err := dictField(f, 0)
	if err != nil {
		return nil, err
	}
	return &Success{Metadata: metadata}, nil
}

func decodeRecord(f []any) (*Record, error) {
	if len(f) != 1 {
		return nil, fmt.Errorf("%w: RECORD expects 1 field, got %d", ErrMalformedMessage, len(f))
	}
	fields, err := listField(f, 0)
	if err != nil {
		return nil, err
	}
	return &Record{Fields: fields}, nil
}

func decodeFailure(f []any) (*Failure, error) {
	if len(f) != 1 {
		return nil, fmt.Errorf("%w: FAILURE expects 1 field, got %d", ErrMalformedMessage, len(f))
	}
	metadata, err := dictField(f, 0)
	if err != nil {
		return nil, err
	}
	return &Failure{Metadata: metadata}, nil
}
