package explore

import "github.com/lowtide/hexplore/internal/session"

// EventKind tags the variant of an inbound Event, the exploration
// context's own "control channel" per the design notes' resolution of
// the ad-hoc Template transport: a distinct sum type instead of
// smuggling domain payloads through the wire-typed Transport.
type EventKind uint8

const (
	// EventPlayerHandoff carries a freshly accepted client session
	// handler, handed off by the short-lived session context that caught
	// the player's StartExplore frame.
	EventPlayerHandoff EventKind = iota + 1

	// EventReconnectRequest is CREATE_EXPLORE_REQ arriving for a player
	// id whose exploration already exists — the reconnect path.
	EventReconnectRequest

	// EventFightSuccess is FIGHT_SUCCESS_REQ's result, applied as exp
	// deltas to matching characters.
	EventFightSuccess
)

// ExpDelta is one character's experience award from a resolved fight.
type ExpDelta struct {
	RoleID uint32 `json:"role_id"`
	Exp    int64  `json:"exp"`
}

// Event is one inbound control-plane message for an Explore context.
type Event struct {
	Kind EventKind

	// EventPlayerHandoff
	Handler  *session.Handler
	Token    string
	PlayerID uint64

	// EventFightSuccess
	Success bool
	Deltas  []ExpDelta
}
