package explore

import "github.com/lowtide/hexplore/internal/hexmap"

// Dirty flag bits (§3): values are the literal bitset used by the
// runtime template's pack-on-demand protocol, not sequential bit
// positions.
const (
	DirtyAttribute uint32 = 1
	DirtyCharacter uint32 = 2
	DirtyPosition  uint32 = 16
)

// ExplorePlayer is the per-player game state driven by one Explore
// context (§3).
type ExplorePlayer struct {
	Position       hexmap.Point
	PrevPosition   hexmap.Point
	OriginPosition hexmap.Point

	Food    int32
	MaxFood int32

	Characters    []*Character
	NewCharacters []*Character

	dirty uint32

	StepCount int

	visibility map[uint16]struct{}
	pointSet   map[[2]int]struct{}

	ViewRadius     int
	Speed          int
	TriggerEnabled bool
}

// NewExplorePlayer constructs a player at origin with the given food cap.
func NewExplorePlayer(origin hexmap.Point, maxFood int32, viewRadius int) *ExplorePlayer {
	return &ExplorePlayer{
		Position:       origin,
		PrevPosition:   origin,
		OriginPosition: origin,
		Food:           maxFood,
		MaxFood:        maxFood,
		visibility:     make(map[uint16]struct{}),
		pointSet:       make(map[[2]int]struct{}),
		ViewRadius:     viewRadius,
		Speed:          1,
		TriggerEnabled: true,
	}
}

// SetDirty ORs mask into the player's dirty bitset.
func (p *ExplorePlayer) SetDirty(mask uint32) { p.dirty |= mask }

// FlushDirty reports whether any bit of mask was set, then clears exactly
// that intersection (§4.6, §8 invariant 6).
func (p *ExplorePlayer) FlushDirty(mask uint32) bool {
	had := p.dirty&mask != 0
	p.dirty &^= mask
	return had
}

// HasActiveCharacter reports whether at least one Character is Active
// (§3 ExplorePlayer invariant).
func (p *ExplorePlayer) HasActiveCharacter() bool {
	for _, c := range p.Characters {
		if c.State == CharacterActive {
			return true
		}
	}
	return false
}

// AllInjured reports whether every character has left the Active state.
func (p *ExplorePlayer) AllInjured() bool {
	for _, c := range p.Characters {
		if c.State == CharacterActive {
			return false
		}
	}
	return len(p.Characters) > 0
}

// SetPosition updates Position/PrevPosition and marks POSITION dirty.
func (p *ExplorePlayer) SetPosition(next hexmap.Point) {
	p.PrevPosition = p.Position
	p.Position = next
	p.SetDirty(DirtyPosition)
}

// Reveal marks center and the in-grid points that hexmap.Ring yields for
// radii 1..r as visible, and returns the subset that was newly revealed
// by this call (the "explored-map delta").
func (p *ExplorePlayer) Reveal(m *hexmap.Map, center hexmap.Point, r int) []hexmap.Point {
	var delta []hexmap.Point
	add := func(pt hexmap.Point) {
		key := [2]int{pt.X, pt.Y}
		if _, seen := p.pointSet[key]; seen {
			return
		}
		p.pointSet[key] = struct{}{}
		p.visibility[pt.ID()] = struct{}{}
		delta = append(delta, pt)
	}

	if pt, ok := m.At(center.X, center.Y); ok {
		add(pt)
	}
	for ring := 1; ring <= r; ring++ {
		for _, pt := range hexmap.Ring(center, ring) {
			if at, ok := m.At(pt.X, pt.Y); ok {
				add(at)
			}
		}
	}
	return delta
}

// Visible reports whether a point id has been revealed to this player.
func (p *ExplorePlayer) Visible(id uint16) bool {
	_, ok := p.visibility[id]
	return ok
}

// CostFood subtracts amount from Food, floored at 0, and returns the
// amount actually deducted.
func (p *ExplorePlayer) CostFood(amount int32) int32 {
	if amount <= 0 {
		return 0
	}
	if p.Food <= 0 {
		return 0
	}
	deducted := amount
	if deducted > p.Food {
		deducted = p.Food
	}
	p.Food -= deducted
	if p.Food < 0 {
		p.Food = 0
	}
	return deducted
}

// CostHealth applies amount as a team-HP cost to every Active character,
// returning true if the player has no Active character left afterward.
func (p *ExplorePlayer) CostHealth(amount int32) bool {
	for _, c := range p.Characters {
		c.CostHealth(amount)
	}
	return !p.HasActiveCharacter()
}
