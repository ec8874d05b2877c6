// Package backend defines the narrow contract the session core requires
// from an external query-execution implementer (spec.md §6). It holds
// nothing but interfaces and value types: the core is agnostic to what
// answers them, and this package must stay free of third-party imports so
// any backend can depend on it without inheriting the core's stack.
package backend

import "context"

// SessionHandle is an opaque token a Backend hands back from CreateSession
// and expects unmodified in every later call for that session.
type SessionHandle any

// TransactionHandle is an opaque token a Backend hands back from Begin.
// The core guarantees it calls exactly one of Commit or Rollback on a
// TransactionHandle before dropping its reference (spec.md §3 Ownership).
type TransactionHandle any

// SessionConfig carries the connection metadata HELLO/LOGON supply that a
// backend might need to honor (default database, impersonation, routing
// context, notification filtering).
type SessionConfig struct {
	UserAgent            string
	BoltAgent            map[string]string
	RoutingContext       map[string]string
	DefaultDatabase      string
	ImpersonatedUser     string
	NotificationsMinimum string
	NotificationsExclude []string
	AuthContext          AuthContext
}

// TxConfig carries BEGIN/auto-commit RUN's transaction-scoped options.
type TxConfig struct {
	Bookmarks        []string
	Timeout          *int64 // milliseconds; nil means backend default
	Metadata         map[string]any
	Mode             string // "r" or "w"
	Database         string
	ImpersonatedUser string
}

// Record is one row of a result stream, positionally matching the field
// names the stream declared.
type Record []any

// Summary is the trailing metadata a stream reports once exhausted: at
// minimum a bookmark (for writes) and a query type; backends may add
// counters, timings, or notifications under additional keys.
type Summary map[string]any

// ResultStream is the backend-side iterator produced by Run. The core
// layers PULL/DISCARD quota accounting (pkg/stream) on top of it; the
// backend only needs to produce records and a final Summary.
type ResultStream interface {
	// FieldNames returns the result's column names, in RUN's RETURN order.
	FieldNames() []string

	// Next advances the stream and returns the next record. ok is false
	// once the stream is exhausted; callers must not call Next again
	// after that.
	Next(ctx context.Context) (rec Record, ok bool, err error)

	// DiscardAll drops every remaining record without materializing it
	// and returns the stream's summary.
	DiscardAll(ctx context.Context) (Summary, error)

	// Summary returns the stream's trailing metadata. Only valid after
	// Next has returned ok=false or after DiscardAll.
	Summary() Summary
}

// RoutingTable is the result of a successful Route call: server addresses
// grouped by role, with a time-to-live.
type RoutingTable struct {
	TTLSeconds int64
	Readers    []string
	Writers    []string
	Routers    []string
	Database   string
}

// AuthContext is an opaque token an AuthValidator hands back from Validate
// and the core threads through SessionConfig without inspecting it.
type AuthContext any

// AuthValidator validates a Bolt LOGON auth dict (spec.md §6).
type AuthValidator interface {
	Validate(ctx context.Context, auth map[string]any) (AuthContext, error)
}

// Backend is the full capability set the session core requires from an
// external query-execution implementer (spec.md §6). Route is optional in
// spirit: an implementation that doesn't support routing should return
// ErrRoutingUnsupported so the core can answer ROUTE with FAILURE instead
// of panicking on a nil method.
type Backend interface {
	CreateSession(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
	CloseSession(ctx context.Context, session SessionHandle) error

	Begin(ctx context.Context, session SessionHandle, cfg TxConfig) (TransactionHandle, error)
	Commit(ctx context.Context, tx TransactionHandle) (bookmark string, err error)
	Rollback(ctx context.Context, tx TransactionHandle) error

	// Run executes query with params. tx is nil for an auto-commit query
	// outside any transaction.
	Run(ctx context.Context, session SessionHandle, tx TransactionHandle, query string, params map[string]any, cfg TxConfig) (ResultStream, error)

	Route(ctx context.Context, routingContext map[string]string, bookmarks []string, database string) (*RoutingTable, error)
}
