package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/zpp/internal/bus"
)

// State represents the event-queue connection state.
type State string

const (
	Booting      State = "BOOTING"
	Registering  State = "REGISTERING"
	Polling      State = "POLLING"
	Reconnecting State = "RECONNECTING"
	Stopped      State = "STOPPED"
	Error        State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:      {Registering, Stopped, Error},
	Registering:  {Polling, Reconnecting, Stopped, Error},
	Polling:      {Registering, Reconnecting, Stopped, Error},
	Reconnecting: {Registering, Polling, Stopped, Error},
	Stopped:      {Registering},
	Error:        {Booting, Registering},
}

// Machine tracks and enforces event-queue state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	pub     bus.Publisher
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(pub bus.Publisher) *Machine {
	return &Machine{
		current: Booting,
		since:   time.Now(),
		pub:     pub,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Is reports whether the machine is in any of the given states.
func (m *Machine) Is(states ...State) bool {
	return slices.Contains(states, m.Current())
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Moving to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	if m.pub != nil {
		m.pub.Publish(bus.Event{
			Kind:      bus.QueueStatusChanged,
			Timestamp: m.since,
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
