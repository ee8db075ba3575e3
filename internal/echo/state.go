package echo

import (
	"fmt"
	"slices"
)

// State is the lifecycle position of one tracked send.
type State string

const (
	PendingLocal  State = "PENDING_LOCAL"
	LocallyEchoed State = "LOCALLY_ECHOED"
	TrackedOnly   State = "TRACKED_ONLY"
	Reified       State = "REIFIED"
	EchoFailed    State = "ECHO_FAILED"
	Failed        State = "FAILED"
)

var validTransitions = map[State][]State{
	PendingLocal:  {LocallyEchoed, TrackedOnly},
	LocallyEchoed: {Reified, EchoFailed},
	TrackedOnly:   {Reified, Failed},
	EchoFailed:    {LocallyEchoed},
}

// Terminal reports whether no further transition is expected without a
// manual resend.
func (s State) Terminal() bool {
	return s == Reified || s == Failed || s == EchoFailed
}

func transition(from, to State) error {
	if !slices.Contains(validTransitions[from], to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}
