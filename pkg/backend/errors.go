package backend

import "errors"

// ErrRoutingUnsupported is the sentinel a Backend.Route implementation
// returns when it doesn't support routing at all; the core answers ROUTE
// with FAILURE instead of treating it as a transient backend error
// (spec.md §6: "absent ⇒ feature rejected").
var ErrRoutingUnsupported = errors.New("backend: routing not supported")

// FailureKind classifies a Failure for the parts of the core (auth, in
// particular) that need to branch on more than the dotted code string.
type FailureKind int

const (
	FailureKindUnknown FailureKind = iota
	FailureKindUnauthorized
	FailureKindCredentialsExpired
	FailureKindForbidden
	FailureKindSyntaxError
	FailureKindClientError
	FailureKindTransientError
	FailureKindDatabaseError
)

// Neo4j-style dotted error codes (spec.md §6/§7/§8), reused verbatim by
// pkg/bolt and pkg/demobackend so FAILURE metadata matches what a real
// Bolt client expects to parse.
const (
	CodeUnauthorized       = "Neo.ClientError.Security.Unauthorized"
	CodeCredentialsExpired = "Neo.ClientError.Security.CredentialsExpired"
	CodeForbidden          = "Neo.ClientError.Security.Forbidden"
	CodeSyntaxError        = "Neo.ClientError.Statement.SyntaxError"
	CodeRequestInvalid     = "Neo.ClientError.Request.Invalid"
	CodeInvalidBookmark    = "Neo.ClientError.Transaction.InvalidBookmark"
	CodeTransactionNotFound = "Neo.ClientError.Transaction.TransactionNotFound"
	CodeResourceExhausted  = "Neo.ClientError.Request.ResourceExhausted"
	CodeDatabaseError      = "Neo.DatabaseError.General.UnknownError"
	CodeTransientError     = "Neo.TransientError.General.DatabaseUnavailable"
	CodeRoutingUnsupported = "Neo.ClientError.Request.Invalid"
)

// Failure is the error type a Backend or AuthValidator returns to signal a
// structured, client-visible failure rather than an internal fault. The
// core translates it directly into FAILURE metadata (spec.md §6).
type Failure struct {
	Kind    FailureKind
	Code    string
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// NewFailure builds a Failure with the given dotted code and message.
func NewFailure(kind FailureKind, code, message string) *Failure {
	return &Failure{Kind: kind, Code: code, Message: message}
}

// AsFailure reports whether err is (or wraps) a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
