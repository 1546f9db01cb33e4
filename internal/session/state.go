package session

import "fmt"

type State int

const (
	StateAwaitingStart State = iota
	StateStreaming
	StateAwaitingToolResult
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "AWAITING_START"
	case StateStreaming:
		return "STREAMING"
	case StateAwaitingToolResult:
		return "AWAITING_TOOL_RESULT"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// FAILED is reachable from every non-terminal state and is checked apart.
var transitions = map[State][]State{
	StateAwaitingStart:      {StateStreaming},
	StateStreaming:          {StateAwaitingToolResult, StateCompleted},
	StateAwaitingToolResult: {StateStreaming, StateCompleted},
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
