package pressurecycle

import (
	"sync"

	"go.viam.com/rdk/logging"
)

// CycleState is the phase of the pressure cycle.
type CycleState int

const (
	// StateUnset is the state before the controller starts.
	StateUnset CycleState = iota
	StateVented
	StateInflating
	StateHolding
	StateDeflating
)

func (s CycleState) String() string {
	switch s {
	case StateVented:
		return "VENTED"
	case StateInflating:
		return "INFLATING"
	case StateHolding:
		return "HOLDING"
	case StateDeflating:
		return "DEFLATING"
	default:
		return "UNSET"
	}
}

type stateMachine struct {
	logger logging.Logger

	mu    sync.RWMutex
	state CycleState
}

// change moves to next and logs the transition. Changing to the current state does nothing.
func (m *stateMachine) change(next CycleState) bool {
	m.mu.Lock()
	if next == m.state {
		m.mu.Unlock()
		return false
	}
	m.state = next
	m.mu.Unlock()
	m.logger.Infof("STATE: %s", next)
	return true
}

func (m *stateMachine) current() CycleState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
