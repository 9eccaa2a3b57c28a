package server

// State is the connection lifecycle state of the protocol server.
//
// Transitions: Created -> Initialized -> Serving -> ShuttingDown -> Stopped.
// Stopped is terminal.
type State int32

const (
	StateCreated State = iota
	StateInitialized
	StateServing
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateServing:
		return "serving"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
