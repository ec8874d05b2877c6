package bolt

import "errors"

// Sentinel errors classifying why a connection or message handling ended,
// matching the error kinds in spec.md §7.

var (
	// ErrProtocolViolation marks a framing or state-machine violation: bad
	// handshake, malformed chunk, message sent from a disallowed state.
	// The connection closes after a best-effort FAILURE.
	ErrProtocolViolation = errors.New("bolt: protocol violation")

	// ErrSessionLimitReached names the MaxSessions-at-capacity condition.
	// Server does not return it: an over-limit connection is logged and
	// closed.
	ErrSessionLimitReached = errors.New("bolt: session limit reached")

	// ErrServerClosed is returned by ListenAndServe/Serve after Shutdown
	// or Close has been called.
	ErrServerClosed = errors.New("bolt: server closed")
)
