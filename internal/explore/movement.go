package explore

import "github.com/lowtide/hexplore/internal/hexmap"

// Move result codes (§6 EXPLORE_MOVE_RESP).
const (
	MoveOK      = 0
	MoveBlocked = 2 // pending trigger event
	MoveNoPath  = 3 // A* found no path
)

// Costs are the Common.json-tunable movement economy constants consulted
// by HandleMove (§6 Config files).
type Costs struct {
	MoveCost            int32
	MoveUnitCost        int32
	JourneyHealthLimit  int32
	MovementHealthlimit int32
	DisperseFog         int
}

// DefaultCosts mirrors the Common.json defaults named in §6.
func DefaultCosts() Costs {
	return Costs{
		MoveCost:            5,
		MoveUnitCost:        1,
		JourneyHealthLimit:  5,
		MovementHealthlimit: 1,
		DisperseFog:         4,
	}
}

// MoveResponse is the explore->client EXPLORE_MOVE_RESP payload.
type MoveResponse struct {
	Result           int
	Position         hexmap.Point
	Delta            []hexmap.Point
	Food             int32
	MaxFood          int32
	Consumption      int32
	Characters       []*Character
	CharactersSynced bool
}

// HandleMove implements §4.6's movement handling exactly: trigger-pump
// rejection, no-path rejection, departure cost, per-step walk with
// trigger pump + viability checks, and full reply assembly.
func (e *Explore) HandleMove(target hexmap.Point) MoveResponse {
	if e.trigger.Pending() {
		return MoveResponse{Result: MoveBlocked, Position: e.player.Position}
	}

	viable := func(p hexmap.Point) bool { return true }
	path, ok := hexmap.Search(e.grid, e.player.Position, target, viable)
	if !ok {
		return MoveResponse{Result: MoveNoPath, Position: e.player.Position}
	}

	// Departure cost is the flat per-move base (MoveCost / JourneyHealthLimit);
	// the per-unit cost is paid once per step walked below, not folded into
	// the departure lump sum (scenario 3/4: 3 steps -> base + 3*unit).
	var consumption int32
	if e.player.Food > 0 {
		consumption += e.player.CostFood(e.costs.MoveCost)
	} else {
		e.player.CostHealth(e.costs.JourneyHealthLimit)
		e.player.SetDirty(DirtyAttribute)
		e.PackAndMaybeFail()
	}

	var delta []hexmap.Point
	viableTeam := e.player.Food > 0 || e.player.HasActiveCharacter()
	if viableTeam {
		for i := 1; i < len(path); i++ {
			step := path[i]
			e.player.StepCount++
			e.player.SetPosition(step)
			delta = append(delta, e.player.Reveal(e.grid, step, e.costs.DisperseFog)...)

			if e.player.Food > 0 {
				consumption += e.player.CostFood(e.costs.MoveUnitCost)
			} else {
				e.player.CostHealth(e.costs.MovementHealthlimit)
				e.player.SetDirty(DirtyAttribute)
				e.PackAndMaybeFail()
			}

			if e.trigger.Pump(step) {
				break
			}
			if !(e.player.Food > 0 || e.player.HasActiveCharacter()) {
				break
			}
		}
	}

	resp := MoveResponse{
		Result:      MoveOK,
		Position:    e.player.Position,
		Delta:       delta,
		Food:        e.player.Food,
		MaxFood:     e.player.MaxFood,
		Consumption: consumption,
	}
	if e.player.FlushDirty(DirtyCharacter) {
		resp.Characters = e.player.Characters
		resp.CharactersSynced = true
	}
	return resp
}
