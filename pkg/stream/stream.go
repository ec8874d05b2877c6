// Package stream implements result streaming: PULL/DISCARD quota
// accounting, record batching, and has-more signalling on top of a
// pkg/backend.ResultStream (spec.md §4.5).
package stream

import (
	"context"
	"errors"

	"github.com/nornicgraph/boltd/pkg/backend"
)

// ErrUnknownQueryID is returned when a PULL/DISCARD names a query-id that
// doesn't correspond to any open stream in the session — spec.md §9's
// open question, resolved as FAILURE rather than silent IGNORED.
var ErrUnknownQueryID = errors.New("stream: unknown or closed query id")

// Stream wraps a backend.ResultStream with the query-id and field-name
// bookkeeping a Session needs, plus the has-more state PULL/DISCARD report.
type Stream struct {
	QueryID   int64
	fields    []string
	backend   backend.ResultStream
	exhausted bool
	hasMore   bool
}

// New wraps a freshly created backend stream under queryID.
func New(queryID int64, b backend.ResultStream) *Stream {
	return &Stream{QueryID: queryID, fields: b.FieldNames(), backend: b, hasMore: true}
}

// FieldNames returns the result's column names.
func (s *Stream) FieldNames() []string {
	return s.fields
}

// Exhausted reports whether the stream has produced its final summary.
func (s *Stream) Exhausted() bool {
	return s.exhausted
}

// Pull drains up to n records (n == AllRemaining meaning "all"), calling
// emit for each one in order. It returns the resulting has-more flag and,
// once the stream is exhausted, the backend's summary (nil otherwise).
//
// Per spec.md §4.5, at most one record is ever in flight to the wire per
// accounting unit: emit is called synchronously and its error aborts the
// drain immediately, preserving response ordering on the connection.
func (s *Stream) Pull(ctx context.Context, n int64, emit func(backend.Record) error) (hasMore bool, summary backend.Summary, err error) {
	if s.exhausted {
		return false, s.backend.Summary(), nil
	}
	count := int64(0)
	for n < 0 || count < n {
		rec, ok, err := s.backend.Next(ctx)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			s.exhausted = true
			s.hasMore = false
			return false, s.backend.Summary(), nil
		}
		if err := emit(rec); err != nil {
			return false, nil, err
		}
		count++
	}
	s.hasMore = true
	return true, nil, nil
}

// Discard drops up to n records without emitting them. n == AllRemaining
// drops everything and is equivalent to DiscardAll.
func (s *Stream) Discard(ctx context.Context, n int64) (hasMore bool, summary backend.Summary, err error) {
	if s.exhausted {
		return false, s.backend.Summary(), nil
	}
	if n < 0 {
		sum, err := s.backend.DiscardAll(ctx)
		if err != nil {
			return false, nil, err
		}
		s.exhausted = true
		s.hasMore = false
		return false, sum, nil
	}
	return s.Pull(ctx, n, func(backend.Record) error { return nil })
}

// Table is the per-session collection of open streams, keyed by query-id,
// with "most recently opened" resolution for qid == MostRecentStream.
type Table struct {
	streams []*Stream
	byID    map[int64]*Stream
	nextID  int64
}

// NewTable returns an empty stream table.
func NewTable() *Table {
	return &Table{byID: make(map[int64]*Stream)}
}

// Open allocates the next query-id and registers a new Stream for it.
func (t *Table) Open(b backend.ResultStream) *Stream {
	id := t.nextID
	t.nextID++
	s := New(id, b)
	t.streams = append(t.streams, s)
	t.byID[id] = s
	return s
}

// Lookup resolves qid to a Stream. qid == -1 (MostRecentStream) resolves
// to the last-opened still-tracked stream.
func (t *Table) Lookup(qid int64) (*Stream, error) {
	if qid < 0 {
		if len(t.streams) == 0 {
			return nil, ErrUnknownQueryID
		}
		return t.streams[len(t.streams)-1], nil
	}
	s, ok := t.byID[qid]
	if !ok {
		return nil, ErrUnknownQueryID
	}
	return s, nil
}

// Close removes a stream from the table once it's exhausted or discarded.
func (t *Table) Close(qid int64) {
	delete(t.byID, qid)
	for i, s := range t.streams {
		if s.QueryID == qid {
			t.streams = append(t.streams[:i], t.streams[i+1:]...)
			return
		}
	}
}

// CloseAll discards every open stream's bookkeeping (used by RESET,
// COMMIT and ROLLBACK). It does not call the backend; callers that must
// release backend resources should drain or rollback first.
func (t *Table) CloseAll() {
	t.streams = nil
	t.byID = make(map[int64]*Stream)
}

// Len reports how many streams are currently open.
func (t *Table) Len() int {
	return len(t.streams)
}
