package explore

// CharacterState is one Character's combat viability.
type CharacterState uint8

const (
	CharacterActive CharacterState = iota
	CharacterInjured
	CharacterUnusable
)

func (s CharacterState) String() string {
	switch s {
	case CharacterActive:
		return "Active"
	case CharacterInjured:
		return "Injured"
	case CharacterUnusable:
		return "Unusable"
	default:
		return "Unknown"
	}
}

// AttributeKind indexes a Character's fixed-size attribute array.
type AttributeKind int

const (
	AttrStrength AttributeKind = iota
	AttrAgility
	AttrIntellect
	attrCount
)

// Character is one member of a player's exploring team.
type Character struct {
	ConfigID   uint32
	State      CharacterState
	Health     int32
	MaxHealth  int32
	Experience int64
	attributes [attrCount]int32
	OwnType    int32
}

// NewCharacter builds a Character at full health, Active.
func NewCharacter(configID uint32, maxHealth int32) *Character {
	if maxHealth <= 0 {
		maxHealth = 1
	}
	return &Character{
		ConfigID:  configID,
		State:     CharacterActive,
		Health:    maxHealth,
		MaxHealth: maxHealth,
	}
}

// Attribute reads the attribute of kind k.
func (c *Character) Attribute(k AttributeKind) int32 { return c.attributes[k] }

// SetAttribute writes the attribute of kind k. It does not set the
// player's ATTRIBUTE dirty flag: Character holds no reference to its
// ExplorePlayer.
func (c *Character) SetAttribute(k AttributeKind, v int32) {
	c.attributes[k] = v
}

// SetMaxHealth sets MaxHealth, forcing it to 1 if the caller passes a
// value <= 0 (§3 Character invariant).
func (c *Character) SetMaxHealth(v int32) {
	if v <= 0 {
		v = 1
	}
	c.MaxHealth = v
	if c.Health > c.MaxHealth {
		c.Health = c.MaxHealth
	}
}

// SetHealth sets Health, clamped to [0, MaxHealth], and forces Injured
// once Health drops to 1 or below.
func (c *Character) SetHealth(v int32) {
	if v > c.MaxHealth {
		v = c.MaxHealth
	}
	if v < 0 {
		v = 0
	}
	c.Health = v
	if c.Health <= 1 && c.State == CharacterActive {
		c.State = CharacterInjured
	}
}

// CostHealth applies a team-HP cost of amount to this character: the new
// health is max(Health-amount, 1), and reaching that floor transitions
// the character to Injured. Returns whether the character became Injured
// as a result of this call.
func (c *Character) CostHealth(amount int32) bool {
	if c.State != CharacterActive {
		return false
	}
	next := c.Health - amount
	if next < 1 {
		next = 1
	}
	c.Health = next
	if c.Health <= 1 {
		c.State = CharacterInjured
		return true
	}
	return false
}

// ApplyExp adds exp to the character's experience counter.
func (c *Character) ApplyExp(exp int64) {
	c.Experience += exp
}
