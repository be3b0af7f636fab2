package ws

import (
	"fmt"
	"sync"
)

// State is the lifecycle stage of a realtime session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateConnected
	StateDisconnected
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var transitions = map[State][]State{
	StateUnauthenticated: {StateAuthenticating},
	StateAuthenticating:  {StateConnected, StateRejected},
	StateConnected:       {StateDisconnected},
}

// Session tracks the lifecycle of one websocket. Only a Connected session
// accepts inbound events.
type Session struct {
	mu    sync.Mutex
	state State
}

func NewSession() *Session { return &Session{state: StateUnauthenticated} }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next, failing if the lifecycle does not
// allow it.
func (s *Session) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid session transition %s -> %s", s.state, next)
}

func (s *Session) Accepts() bool { return s.State() == StateConnected }
