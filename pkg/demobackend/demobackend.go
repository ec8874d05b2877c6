// Package demobackend is a reference backend.Backend good enough to drive
// the concrete scenarios in spec.md §8 end to end: literal RETURN queries,
// single-node CREATE, transaction bracketing, and fabricated bookmarks.
//
// It is explicitly a test/demo fixture, in the spirit of the teacher's own
// mockExecutor test double — not a query-language implementation. It
// recognizes a handful of literal statement shapes by direct parsing of
// that narrow grammar and answers anything else with
// Neo.ClientError.Statement.SyntaxError.
package demobackend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nornicgraph/boltd/pkg/backend"
)

// Backend is an in-memory, concurrency-safe backend.Backend.
type Backend struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
	nodeSeq  int64
}

type sessionState struct {
	id              string
	cfg             backend.SessionConfig
	bookmarkCounter int64
}

type txHandle struct {
	session *sessionState
	open    bool
}

// New returns an empty demo backend.
func New() *Backend {
	return &Backend{sessions: make(map[string]*sessionState)}
}

func (b *Backend) CreateSession(ctx context.Context, cfg backend.SessionConfig) (backend.SessionHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &sessionState{id: uuid.NewString(), cfg: cfg}
	b.sessions[s.id] = s
	return s, nil
}

func (b *Backend) CloseSession(ctx context.Context, session backend.SessionHandle) error {
	s, err := asSession(session)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, s.id)
	return nil
}

func (b *Backend) Begin(ctx context.Context, session backend.SessionHandle, cfg backend.TxConfig) (backend.TransactionHandle, error) {
	s, err := asSession(session)
	if err != nil {
		return nil, err
	}
	return &txHandle{session: s, open: true}, nil
}

func (b *Backend) Commit(ctx context.Context, tx backend.TransactionHandle) (string, error) {
	t, err := asTx(tx)
	if err != nil {
		return "", err
	}
	t.open = false
	return b.nextBookmark(t.session), nil
}

func (b *Backend) Rollback(ctx context.Context, tx backend.TransactionHandle) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	t.open = false
	return nil
}

func (b *Backend) Route(ctx context.Context, routingContext map[string]string, bookmarks []string, database string) (*backend.RoutingTable, error) {
	return nil, backend.ErrRoutingUnsupported
}

func (b *Backend) Run(ctx context.Context, session backend.SessionHandle, tx backend.TransactionHandle, query string, params map[string]any, cfg backend.TxConfig) (backend.ResultStream, error) {
	if _, err := asSession(session); err != nil {
		return nil, err
	}
	stmt, err := parseStatement(query, params)
	if err != nil {
		return nil, err
	}
	switch s := stmt.(type) {
	case *returnStatement:
		return newStaticStream(s.fields, []backend.Record{s.values}, backend.Summary{
			"type": "r",
		}), nil
	case *createNodeStatement:
		id := atomic.AddInt64(&b.nodeSeq, 1) - 1
		node := s.build(id)
		return newStaticStream([]string{s.returnAlias}, []backend.Record{{node}}, backend.Summary{
			"type":          "w",
			"nodes_created": int64(1),
		}), nil
	default:
		return nil, backend.NewFailure(backend.FailureKindSyntaxError, backend.CodeSyntaxError,
			fmt.Sprintf("demobackend: cannot parse statement: %q", query))
	}
}

func (b *Backend) nextBookmark(s *sessionState) string {
	n := atomic.AddInt64(&s.bookmarkCounter, 1)
	return fmt.Sprintf("demo:%d", n)
}

func asSession(h backend.SessionHandle) (*sessionState, error) {
	s, ok := h.(*sessionState)
	if !ok {
		return nil, fmt.Errorf("demobackend: invalid session handle %T", h)
	}
	return s, nil
}

func asTx(h backend.TransactionHandle) (*txHandle, error) {
	t, ok := h.(*txHandle)
	if !ok {
		return nil, fmt.Errorf("demobackend: invalid transaction handle %T", h)
	}
	if !t.open {
		return nil, backend.NewFailure(backend.FailureKindClientError, backend.CodeTransactionNotFound,
			"demobackend: transaction already closed")
	}
	return t, nil
}
