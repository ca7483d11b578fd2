package explore

import "github.com/lowtide/hexplore/internal/hexmap"

// TriggerEvent is one pending game-logic event surfaced by the trigger
// pump. The event's own resolution (battle outcome, reward table, …)
// lives outside this package; this type carries just enough to gate
// movement and to route the event id to that resolver.
type TriggerEvent struct {
	EventID   uint32
	EventType int32
	Position  hexmap.Point
}

// TriggerSource decides whether a point carries a trigger. Explore wires
// this to whatever content/event table a deployment loads; the pump
// itself only tracks pending/consumed state.
type TriggerSource func(hexmap.Point) (TriggerEvent, bool)

// TriggerPump holds at most one pending trigger event at a time, gating
// movement while non-empty (§4.6 movement rejection rule 1).
type TriggerPump struct {
	source  TriggerSource
	pending *TriggerEvent
}

// NewTriggerPump builds a pump backed by source. A nil source never
// produces a trigger.
func NewTriggerPump(source TriggerSource) *TriggerPump {
	return &TriggerPump{source: source}
}

// Pending reports whether a trigger event is currently awaiting
// resolution.
func (t *TriggerPump) Pending() bool { return t.pending != nil }

// Peek returns the pending event, if any.
func (t *TriggerPump) Peek() (TriggerEvent, bool) {
	if t.pending == nil {
		return TriggerEvent{}, false
	}
	return *t.pending, true
}

// Consume clears the pending event (e.g. once its resolution has been
// delivered to the client).
func (t *TriggerPump) Consume() {
	t.pending = nil
}

// Pump consults the source for p and, if it produces an event and none
// is already pending, installs it as pending. Returns true if a trigger
// is pending after this call (whether newly installed or already there).
func (t *TriggerPump) Pump(p hexmap.Point) bool {
	if t.pending != nil {
		return true
	}
	if t.source == nil {
		return false
	}
	if ev, ok := t.source(p); ok {
		t.pending = &ev
		return true
	}
	return false
}
