// Package store persists exploration progress to SQLite via
// database/sql, mirroring the four tables named in §6 of the
// specification: db_explore, db_finished_event,
// global_explore_variables, db_player_character.
package store

const schemaDDL = `
CREATE TABLE IF NOT EXISTS db_explore (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	player_id       INTEGER NOT NULL UNIQUE,
	state           INTEGER NOT NULL,
	explore_id      TEXT NOT NULL,
	max_event       INTEGER NOT NULL DEFAULT 0,
	finished_event  INTEGER NOT NULL DEFAULT 0,
	create_time     INTEGER NOT NULL,
	token           TEXT NOT NULL,
	position        TEXT NOT NULL,
	food            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS db_finished_event (
	player_id       INTEGER NOT NULL,
	scene_type      INTEGER NOT NULL,
	scene_id        INTEGER NOT NULL,
	event_id        INTEGER NOT NULL,
	event_type      INTEGER NOT NULL,
	position        TEXT NOT NULL,
	progress_event  INTEGER NOT NULL,
	PRIMARY KEY (player_id, event_type, event_id)
);

CREATE TABLE IF NOT EXISTS global_explore_variables (
	player_id      INTEGER NOT NULL,
	scene_type     INTEGER NOT NULL,
	scene_id       INTEGER NOT NULL,
	variable_type  INTEGER NOT NULL,
	value          INTEGER NOT NULL,
	PRIMARY KEY (player_id, scene_type, scene_id, variable_type)
);

CREATE TABLE IF NOT EXISTS db_player_character (
	player_id  INTEGER NOT NULL,
	role_id    INTEGER NOT NULL,
	own_type   INTEGER NOT NULL,
	state      INTEGER NOT NULL,
	PRIMARY KEY (player_id, role_id)
);
`

// ExploreRow mirrors db_explore.
type ExploreRow struct {
	PlayerID      uint64
	State         int
	ExploreID     string
	MaxEvent      int64
	FinishedEvent int64
	CreateTime    int64
	Token         string
	Position      string // JSON-encoded {x,y}
	Food          int32
}

// FinishedEventRow mirrors db_finished_event.
type FinishedEventRow struct {
	PlayerID      uint64
	SceneType     int32
	SceneID       int32
	EventID       uint32
	EventType     int32
	Position      string
	ProgressEvent int32
}

// ExploreVariableRow mirrors global_explore_variables.
type ExploreVariableRow struct {
	PlayerID     uint64
	SceneType    int32
	SceneID      int32
	VariableType int32
	Value        int64
}

// PlayerCharacterRow mirrors db_player_character.
type PlayerCharacterRow struct {
	PlayerID uint64
	RoleID   uint32
	OwnType  int32
	State    int32
}
