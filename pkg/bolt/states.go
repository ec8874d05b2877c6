package bolt

// State is a session's position in the Bolt state machine (spec.md §4.4).
type State int

const (
	StateNegotiating State = iota
	StateUnauthenticated
	StateAuthentication
	StateReady
	StateStreaming
	StateTxReady
	StateTxStreaming
	StateFailed
	StateInterrupted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "NEGOTIATING"
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAuthentication:
		return "AUTHENTICATION"
	case StateReady:
		return "READY"
	case StateStreaming:
		return "STREAMING"
	case StateTxReady:
		return "TX_READY"
	case StateTxStreaming:
		return "TX_STREAMING"
	case StateFailed:
		return "FAILED"
	case StateInterrupted:
		return "INTERRUPTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// allowedStates lists, per incoming message type, the states from which
// the core will actually run the handler. RESET and GOODBYE are valid
// from every non-Closed state and are special-cased in dispatch rather
// than listed here (spec.md §4.4).
var allowedStates = map[string][]State{
	"*message.Hello":     {StateUnauthenticated},
	"*message.Logon":     {StateAuthentication},
	"*message.Logoff":    {StateReady},
	"*message.Run":       {StateReady, StateTxReady, StateTxStreaming},
	"*message.Pull":      {StateStreaming, StateTxStreaming},
	"*message.Discard":   {StateStreaming, StateTxStreaming},
	"*message.Begin":     {StateReady},
	"*message.Commit":    {StateTxReady, StateTxStreaming},
	"*message.Rollback":  {StateTxReady, StateTxStreaming},
	"*message.Route":     {StateReady},
	"*message.Telemetry": {StateReady, StateTxReady},
}

func contains(states []State, s State) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}
