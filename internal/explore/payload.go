package explore

// Payload bodies for the sub-codes in wire_codes.go. The distilled spec
// leaves payload schemas "to the project's message catalogue", so these
// are encoded as JSON (matching how Partner/Common content is handled —
// thin shapes with no wire-compactness requirement of their own, unlike
// the frame header itself).

// PointDelta is one newly-revealed grid point in a move response.
type PointDelta struct {
	X  int    `json:"x"`
	Y  int    `json:"y"`
	ID uint16 `json:"id"`
}

// CharacterSync mirrors the client-facing subset of Character state.
type CharacterSync struct {
	ConfigID   uint32 `json:"config_id"`
	State      uint8  `json:"state"`
	Health     int32  `json:"health"`
	MaxHealth  int32  `json:"max_health"`
	Experience int64  `json:"experience"`
}

// MoveReqPayload is EXPLORE_MOVE_REQ's body.
type MoveReqPayload struct {
	TargetX int `json:"target_x"`
	TargetY int `json:"target_y"`
}

// MoveRespPayload is EXPLORE_MOVE_RESP's body.
type MoveRespPayload struct {
	Result      int             `json:"result"`
	X           int             `json:"x"`
	Y           int             `json:"y"`
	Delta       []PointDelta    `json:"delta,omitempty"`
	Food        int32           `json:"food"`
	MaxFood     int32           `json:"max_food"`
	Consumption int32           `json:"consumption"`
	Characters  []CharacterSync `json:"characters,omitempty"`
}

// CreateExploreReqPayload is CREATE_EXPLORE_REQ's body.
type CreateExploreReqPayload struct {
	PlayerID uint64 `json:"player_id"`
	ConfigID uint32 `json:"config_id"`
	Token    string `json:"token"`
}

// CreateExploreRespPayload is CREATE_EXPLORE_RESP's body.
type CreateExploreRespPayload struct {
	Result    int    `json:"result"`
	ExploreID string `json:"explore_id"`
	PlayerID  uint64 `json:"player_id"`
	Token     string `json:"token"`
}

// FightSuccessReqPayload is FIGHT_SUCCESS_REQ's body.
type FightSuccessReqPayload struct {
	PlayerID uint64 `json:"player_id"`
	Success  bool   `json:"success"`
	Deltas   []ExpDelta `json:"deltas"`
}

// FightSuccessRespPayload acks reward application (§9 open question:
// the source applies exp unconditionally on SUCCESS but never acks it;
// this companion sync is the deliberate addition flagged in DESIGN.md).
type FightSuccessRespPayload struct {
	PlayerID   uint64          `json:"player_id"`
	Applied    bool            `json:"applied"`
	Characters []CharacterSync `json:"characters,omitempty"`
}

// EndSyncPayload is EXPLORE_END_SYNC's body.
type EndSyncPayload struct {
	PlayerID uint64 `json:"player_id"`
	Result   int    `json:"result"`
}
