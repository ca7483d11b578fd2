package explore

import (
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/google/uuid"

	"github.com/lowtide/hexplore/internal/hexmap"
	"github.com/lowtide/hexplore/internal/session"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// newTestHandler builds a real session.Handler backed by a net.Pipe, so
// Send.Send can be exercised without a running Session.Run loop.
func newTestHandler(t *testing.T) (session.Handler, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() { local.Close(); remote.Close() })
	_, handler := session.New(local, discardLogger())
	return handler, remote
}

func straightMap(t *testing.T) *hexmap.Map {
	t.Helper()
	return hexmap.NewMap(1, 20, 20, true, nil)
}

type fakeSaver struct {
	snaps []SaveSnapshot
}

func (f *fakeSaver) Save(ctx context.Context, snap SaveSnapshot) ([]FinishedEventRow, error) {
	f.snaps = append(f.snaps, snap)
	return snap.NewlyFinished, nil
}

func newTestExplore(t *testing.T, costs Costs, triggers TriggerSource) *Explore {
	t.Helper()
	grid := straightMap(t)
	e := New(uuid.New(), 42, 7, 100, nil, &fakeSaver{}, grid, costs, triggers, discardLogger())
	t.Cleanup(e.OnClose)
	return e
}

func TestFlushDirtyClearsOnlyRequestedBits(t *testing.T) {
	p := NewExplorePlayer(hexmap.NewPoint(0, 0), 10, 2)
	p.SetDirty(DirtyAttribute | DirtyPosition)

	if !p.FlushDirty(DirtyPosition) {
		t.Fatal("FlushDirty(POSITION) = false, want true")
	}
	if p.FlushDirty(DirtyPosition) {
		t.Fatal("second FlushDirty(POSITION) = true, want false (already cleared)")
	}
	if !p.FlushDirty(DirtyAttribute) {
		t.Fatal("FlushDirty(ATTRIBUTE) = false, want true (untouched by the POSITION flush)")
	}
}

func TestCharacterCostHealthFloorsAtOneAndMarksInjured(t *testing.T) {
	c := NewCharacter(1, 10)
	became := c.CostHealth(50)
	if !became {
		t.Fatal("CostHealth(50) on a 10-health character: want became-injured true")
	}
	if c.Health != 1 {
		t.Fatalf("Health = %d, want floored at 1", c.Health)
	}
	if c.State != CharacterInjured {
		t.Fatalf("State = %v, want Injured", c.State)
	}

	// A character already Injured takes no further cost.
	again := c.CostHealth(5)
	if again {
		t.Fatal("CostHealth on an already-Injured character returned true")
	}
	if c.Health != 1 {
		t.Fatalf("Health = %d after second cost, want still 1", c.Health)
	}
}

func TestHandleMoveFoodCostOverThreeSteps(t *testing.T) {
	e := newTestExplore(t, DefaultCosts(), nil)
	e.BindPlayer(NewExplorePlayer(hexmap.NewPoint(0, 0), 20, 2))

	resp := e.HandleMove(hexmap.NewPoint(3, 0))
	if resp.Result != MoveOK {
		t.Fatalf("Result = %d, want MoveOK", resp.Result)
	}
	// 5 (departure) + 1*3 (per-step) = 8, matching the worked example.
	if resp.Consumption != 8 {
		t.Fatalf("Consumption = %d, want 8", resp.Consumption)
	}
	if resp.Food != 20-8 {
		t.Fatalf("Food = %d, want %d", resp.Food, 20-8)
	}
	if resp.Position != hexmap.NewPoint(3, 0) {
		t.Fatalf("Position = %v, want (3,0)", resp.Position)
	}
}

func TestHandleMoveHealthCostWhenOutOfFoodCanFailExploration(t *testing.T) {
	e := newTestExplore(t, DefaultCosts(), nil)
	player := NewExplorePlayer(hexmap.NewPoint(0, 0), 20, 2)
	player.Food = 0
	player.Characters = []*Character{NewCharacter(1, 6)}
	e.BindPlayer(player)
	e.EnterState(PhaseExploring)

	resp := e.HandleMove(hexmap.NewPoint(3, 0))
	if resp.Result != MoveOK {
		t.Fatalf("Result = %d, want MoveOK", resp.Result)
	}
	// Consumption is a food-only metric: the zero-food branch pays in
	// health instead, so the reported consumption stays 0.
	if resp.Consumption != 0 {
		t.Fatalf("Consumption = %d, want 0 (health path reports no food consumption)", resp.Consumption)
	}
	// The departure cost alone (5 health) floors a 6-health character at
	// 1 and marks it Injured, so the team is no longer viable before the
	// per-step walk even begins: the position never advances.
	if !player.AllInjured() {
		t.Fatal("player.AllInjured() = false, want true after a lethal departure health cost")
	}
	if resp.Position != hexmap.NewPoint(0, 0) {
		t.Fatalf("Position = %v, want unchanged (0,0): the team became unviable before any step", resp.Position)
	}
	if e.Phase() != PhaseFailed {
		t.Fatalf("Phase() = %v, want Failed", e.Phase())
	}
}

func TestHandleMoveBlockedByPendingTrigger(t *testing.T) {
	always := func(p hexmap.Point) (TriggerEvent, bool) {
		return TriggerEvent{EventID: 1, Position: p}, true
	}
	e := newTestExplore(t, DefaultCosts(), always)
	player := NewExplorePlayer(hexmap.NewPoint(0, 0), 20, 2)
	e.BindPlayer(player)

	// Force a trigger to already be pending.
	e.trigger.Pump(hexmap.NewPoint(0, 0))
	if !e.trigger.Pending() {
		t.Fatal("trigger not pending after Pump, test setup broken")
	}

	resp := e.HandleMove(hexmap.NewPoint(3, 0))
	if resp.Result != MoveBlocked {
		t.Fatalf("Result = %d, want MoveBlocked", resp.Result)
	}
	if resp.Position != hexmap.NewPoint(0, 0) {
		t.Fatalf("Position = %v, want unchanged (0,0)", resp.Position)
	}
	if player.Food != 20 {
		t.Fatalf("Food = %d, want unchanged 20", player.Food)
	}
}

func TestHandleMoveNoPathTargetOutsideGrid(t *testing.T) {
	e := newTestExplore(t, DefaultCosts(), nil)
	e.BindPlayer(NewExplorePlayer(hexmap.NewPoint(0, 0), 20, 2))

	resp := e.HandleMove(hexmap.NewPoint(10000, 10000))
	if resp.Result != MoveNoPath {
		t.Fatalf("Result = %d, want MoveNoPath", resp.Result)
	}
}

func TestHandleMoveTriggerDuringWalkStopsEarly(t *testing.T) {
	triggerAtTwo := func(p hexmap.Point) (TriggerEvent, bool) {
		if p == hexmap.NewPoint(2, 0) {
			return TriggerEvent{EventID: 9, Position: p}, true
		}
		return TriggerEvent{}, false
	}
	e := newTestExplore(t, DefaultCosts(), triggerAtTwo)
	player := NewExplorePlayer(hexmap.NewPoint(0, 0), 20, 2)
	e.BindPlayer(player)

	resp := e.HandleMove(hexmap.NewPoint(5, 0))
	if resp.Result != MoveOK {
		t.Fatalf("Result = %d, want MoveOK", resp.Result)
	}
	if resp.Position != hexmap.NewPoint(2, 0) {
		t.Fatalf("Position = %v, want (2,0), the point the trigger fired on", resp.Position)
	}
	if !e.trigger.Pending() {
		t.Fatal("trigger.Pending() = false after a mid-walk trigger fired")
	}
}

func TestEventPlayerHandoffRejectsMismatchWithoutDisturbingState(t *testing.T) {
	e := newTestExplore(t, DefaultCosts(), nil)
	e.BindPlayer(NewExplorePlayer(hexmap.NewPoint(0, 0), 20, 2))
	e.AccessToken = "the-real-token"
	e.EnterState(PhaseExploring)

	badHandler, _ := newTestHandler(t)
	_, err := e.Check(contextWithEvent(e, Event{
		Kind:     EventPlayerHandoff,
		Handler:  &badHandler,
		Token:    "wrong-token",
		PlayerID: e.PlayerID,
	}))
	if err != nil {
		t.Fatalf("Check returned error on mismatched handoff: %v", err)
	}
	if e.Phase() != PhaseExploring {
		t.Fatalf("Phase() = %v, want unchanged Exploring after a mismatched handoff", e.Phase())
	}
}

func TestEventPlayerHandoffBindsOnMatch(t *testing.T) {
	e := newTestExplore(t, DefaultCosts(), nil)
	e.BindPlayer(NewExplorePlayer(hexmap.NewPoint(0, 0), 20, 2))
	e.AccessToken = "tok"
	e.EnterState(PhaseDisconnected)

	goodHandler, _ := newTestHandler(t)
	newHandler, err := e.Check(contextWithEvent(e, Event{
		Kind:     EventPlayerHandoff,
		Handler:  &goodHandler,
		Token:    "tok",
		PlayerID: e.PlayerID,
	}))
	if err != nil {
		t.Fatalf("Check returned error on matching handoff: %v", err)
	}
	if newHandler == nil {
		t.Fatal("Check returned nil handler on a matching handoff")
	}
	if e.Phase() != PhaseExploring {
		t.Fatalf("Phase() = %v, want Exploring", e.Phase())
	}
}

func TestValidateHandoff(t *testing.T) {
	e := newTestExplore(t, DefaultCosts(), nil)
	e.AccessToken = "tok"

	if err := e.ValidateHandoff("tok", e.PlayerID); err != nil {
		t.Fatalf("ValidateHandoff matching pair: %v, want nil", err)
	}
	if err := e.ValidateHandoff("tok", e.PlayerID+1); err != ErrPlayerMismatch {
		t.Fatalf("ValidateHandoff wrong player: %v, want ErrPlayerMismatch", err)
	}
	if err := e.ValidateHandoff("nope", e.PlayerID); err != ErrTokenMismatch {
		t.Fatalf("ValidateHandoff wrong token: %v, want ErrTokenMismatch", err)
	}
}

func TestRotateTokenReusesExploreID(t *testing.T) {
	e := newTestExplore(t, DefaultCosts(), nil)
	e.RotateToken("deadbeef")
	if e.AccessToken == "" {
		t.Fatal("RotateToken left AccessToken empty")
	}
	want := hexNoDashes(e.ID) + "deadbeef"
	if e.AccessToken != want {
		t.Fatalf("AccessToken = %q, want %q", e.AccessToken, want)
	}
}

func TestReconnectRequestEntersReconnecting(t *testing.T) {
	e := newTestExplore(t, DefaultCosts(), nil)
	e.BindPlayer(NewExplorePlayer(hexmap.NewPoint(0, 0), 20, 2))
	e.EnterState(PhaseDisconnected)

	_, err := e.Check(contextWithEvent(e, Event{Kind: EventReconnectRequest, PlayerID: e.PlayerID}))
	if err != nil {
		t.Fatalf("Check returned error on reconnect request: %v", err)
	}
	if e.Phase() != PhaseReconnecting {
		t.Fatalf("Phase() = %v, want Reconnecting", e.Phase())
	}
}

// contextWithEvent pushes ev onto e's inbound channel and returns a
// background context, letting a single Check call observe it
// deterministically in tests (the channel is buffered, so this never
// blocks).
func contextWithEvent(e *Explore, ev Event) context.Context {
	e.inbound <- ev
	return context.Background()
}
