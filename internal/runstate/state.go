package runstate

import "fmt"

// State is the execution state of the bot compiled from a workspace snapshot.
type State int

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Signal is a notification published by an execution coordinator: either a
// run-state transition or a reset request from the user.
type Signal struct {
	State          State
	ResetRequested bool
}

// Coordinator is the execution side of the bot: it owns the run state and
// tells subscribers about transitions and reset requests.
type Coordinator interface {
	RunState() State
	// Subscribe registers fn for future signals and returns a function that
	// removes it. Calling the returned function more than once is safe.
	Subscribe(fn func(Signal)) (cancel func())
	// Snapshot returns the serialized program the current run was compiled
	// from, or nil when nothing has run.
	Snapshot() []byte
}
