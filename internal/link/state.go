// internal/link/state.go
package link

import "sync"

// State is the externally visible connection state of a link.
type State int

const (
	None State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	default:
		return "NONE"
	}
}

// Machine holds one connection state and reports every actual transition
// exactly once. Reads are snapshots; writers are serialized so that
// notifications arrive in the order the transitions happened.
//
// The notify callback runs on the goroutine that performed the transition.
// It may read State() but must not call Set on the same Machine.
type Machine struct {
	emitMu sync.Mutex // serializes Set (transition + notify)
	mu     sync.Mutex // guards state
	state  State

	notify func(from, to State)
}

// NewMachine returns a Machine in state None.
// notify may be nil.
func NewMachine(notify func(from, to State)) *Machine {
	return &Machine{notify: notify}
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Set moves the machine to the given state.
// Returns true and notifies only if the state actually changed.
func (m *Machine) Set(to State) bool {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	if from == to {
		return false
	}
	if m.notify != nil {
		m.notify(from, to)
	}
	return true
}

// SetIf moves the machine to `to` only when the current state is `from`.
// Used for conditional demotion/promotion where another worker may have
// already moved the state elsewhere.
func (m *Machine) SetIf(from, to State) bool {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if m.state != from || from == to {
		m.mu.Unlock()
		return false
	}
	m.state = to
	m.mu.Unlock()

	if m.notify != nil {
		m.notify(from, to)
	}
	return true
}
