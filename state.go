package lexis

import "fmt"

// State is a step of the server lifecycle. A server only moves forward:
// Created, Running, Initialized, Shutdown, Exited.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateInitialized
	StateShutdown
	StateExited
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateInitialized:
		return "initialized"
	case StateShutdown:
		return "shutdown"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// transition moves from one of the allowed states to next and returns the
// state it left. ok is false when the current state is not in from.
func (s *Server) transition(next State, from ...State) (prev State, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.state
	for _, f := range from {
		if prev == f {
			s.state = next
			return prev, true
		}
	}
	return prev, false
}
