package demobackend

import (
	"context"

	"github.com/nornicgraph/boltd/pkg/backend"
)

// staticStream is a backend.ResultStream over a fixed, already-materialized
// record set — enough to answer the narrow statement shapes this package
// recognizes without pretending to be a real execution engine.
type staticStream struct {
	fields  []string
	records []backend.Record
	pos     int
	summary backend.Summary
}

func newStaticStream(fields []string, records []backend.Record, summary backend.Summary) *staticStream {
	return &staticStream{fields: fields, records: records, summary: summary}
}

func (s *staticStream) FieldNames() []string { return s.fields }

func (s *staticStream) Next(ctx context.Context) (backend.Record, bool, error) {
	if s.pos >= len(s.records) {
		return nil, false, nil
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, true, nil
}

func (s *staticStream) DiscardAll(ctx context.Context) (backend.Summary, error) {
	s.pos = len(s.records)
	return s.summary, nil
}

func (s *staticStream) Summary() backend.Summary {
	return s.summary
}
