package runstate

import (
	"sync"

	"bot-builder-go/internal/event"
	"go.uber.org/zap"
)

// Guard decides whether an edit made while a bot is running must warn the
// user that the running bot will not pick it up.
//
// The decision depends only on the run state and on whether the user has
// acknowledged a reset since the run started. The kind of edit is ignored.
type Guard struct {
	mu                sync.Mutex
	logger            *zap.Logger
	state             State
	resetAcknowledged bool
}

// NewGuard creates a guard in the idle state.
func NewGuard(logger *zap.Logger) *Guard {
	return &Guard{logger: logger.Named("runstate")}
}

// OnRunStateChanged records a run-state transition. Entering Running clears
// any earlier reset acknowledgement.
func (g *Guard) OnRunStateChanged(next State) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if next == Running && g.state != Running {
		g.resetAcknowledged = false
	}
	if next != g.state {
		g.logger.Debug("Run state changed",
			zap.Stringer("from", g.state),
			zap.Stringer("to", next),
			zap.Bool("reset_acknowledged", g.resetAcknowledged))
	}
	g.state = next
}

// Reset forgets the recorded state and acknowledgement, as for a fresh
// session that has not seen any run yet.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Idle
	g.resetAcknowledged = false
}

// OnResetRequested records that the user acknowledged a reset. It silences
// the warning for the rest of the current run.
func (g *Guard) OnResetRequested() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetAcknowledged = true
}

// OnChangeEvent returns true when the caller must show the "changes will not
// affect the running bot" warning for ev: the bot is running and no reset has
// been acknowledged since it started.
func (g *Guard) OnChangeEvent(_ event.ChangeEvent) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == Running && !g.resetAcknowledged
}

// State returns the last recorded run state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// ResetAcknowledged reports whether a reset was acknowledged during the current run.
func (g *Guard) ResetAcknowledged() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resetAcknowledged
}
