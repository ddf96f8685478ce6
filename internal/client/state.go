package client

// State is a step of the exchange lifecycle. States only advance; any step
// may move to StateFailed, which is terminal.
type State int

const (
	StateCreated State = iota
	StateBound
	StateAssociated
	StateEncoded
	StateSent
	StateReceived
	StateDecoded
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateBound:
		return "BOUND"
	case StateAssociated:
		return "ASSOCIATED"
	case StateEncoded:
		return "ENCODED"
	case StateSent:
		return "SENT"
	case StateReceived:
		return "RECEIVED"
	case StateDecoded:
		return "DECODED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
