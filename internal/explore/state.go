// Package explore implements the per-player exploration core: a
// long-lived context driving one player's hex-grid movement, food and
// health economy, event-trigger pump, and persistence against the
// platform peer and the SQL store.
package explore

import (
	"fmt"
	"time"
)

// Phase is one state of the exploration state machine (§4.6).
type Phase uint8

const (
	PhaseLoading Phase = iota
	PhaseExploring
	PhaseReconnecting
	PhaseDisconnected
	PhaseFinished
	PhaseFailed
	PhaseCreateFail
	PhaseUnexpectedError
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "Loading"
	case PhaseExploring:
		return "Exploring"
	case PhaseReconnecting:
		return "Reconnecting"
	case PhaseDisconnected:
		return "Disconnected"
	case PhaseFinished:
		return "Finished"
	case PhaseFailed:
		return "Failed"
	case PhaseCreateFail:
		return "CreateFail"
	case PhaseUnexpectedError:
		return "UnexpectedError"
	case PhaseClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Phase(%d)", p)
	}
}

// State is a Phase plus the time it was entered, giving phases that carry
// an "age" parameter in the distilled spec (Loading, Reconnecting,
// Disconnected) a concrete clock to measure against.
type State struct {
	Phase Phase
	Since time.Time
}

// NewState returns a State for p entered now.
func NewState(p Phase) State { return State{Phase: p, Since: time.Now()} }

// Age reports how long the exploration has been in this state.
func (s State) Age() time.Duration { return time.Since(s.Since) }

// Terminal reports whether s is one of the two states that trigger the
// end-sync + grace-window shutdown path.
func (s State) Terminal() bool { return s.Phase == PhaseFinished || s.Phase == PhaseFailed }

// persistedExploring/Finished/Failed are the db_explore.state column
// values; anything else maps to PhaseClosed, matching "DB load succeeds
// -> state := value of persisted field (0->Exploring, 1->Finished,
// 2->Failed, otherwise Closed)".
const (
	persistedExploring = 0
	persistedFinished  = 1
	persistedFailed    = 2
)

// PhaseFromPersisted maps a db_explore.state column value to a Phase.
func PhaseFromPersisted(v int) Phase {
	switch v {
	case persistedExploring:
		return PhaseExploring
	case persistedFinished:
		return PhaseFinished
	case persistedFailed:
		return PhaseFailed
	default:
		return PhaseClosed
	}
}

// PersistedFromPhase is the inverse mapping used when writing
// db_explore.state back out.
func PersistedFromPhase(p Phase) int {
	switch p {
	case PhaseExploring:
		return persistedExploring
	case PhaseFinished:
		return persistedFinished
	case PhaseFailed:
		return persistedFailed
	default:
		return 3
	}
}
