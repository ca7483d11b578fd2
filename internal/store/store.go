package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups that find no row.
var ErrNotFound = errors.New("store: not found")

// Store is the SQLite-backed persistence layer for exploration progress.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at dsn and applies
// the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw pool for admin/inspection uses.
func (s *Store) DB() *sql.DB { return s.db }

// LoadExplore fetches the db_explore row for playerID. Returns
// ErrNotFound if no row exists yet.
func (s *Store) LoadExplore(ctx context.Context, playerID uint64) (ExploreRow, error) {
	var row ExploreRow
	row.PlayerID = playerID
	err := s.db.QueryRowContext(ctx, `
		SELECT state, explore_id, max_event, finished_event, create_time, token, position, food
		FROM db_explore WHERE player_id = ?`, playerID).
		Scan(&row.State, &row.ExploreID, &row.MaxEvent, &row.FinishedEvent, &row.CreateTime, &row.Token, &row.Position, &row.Food)
	if errors.Is(err, sql.ErrNoRows) {
		return ExploreRow{}, ErrNotFound
	}
	if err != nil {
		return ExploreRow{}, fmt.Errorf("store: load explore %d: %w", playerID, err)
	}
	return row, nil
}

// CreateExplore inserts a fresh db_explore row for a brand-new
// exploration.
func (s *Store) CreateExplore(ctx context.Context, row ExploreRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO db_explore (player_id, state, explore_id, max_event, finished_event, create_time, token, position, food)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.PlayerID, row.State, row.ExploreID, row.MaxEvent, row.FinishedEvent, row.CreateTime, row.Token, row.Position, row.Food)
	if err != nil {
		return fmt.Errorf("store: create explore for player %d: %w", row.PlayerID, err)
	}
	return nil
}

// SaveResult bundles what one save_explore_info tick needs to persist
// (§4.6 Save semantics).
type SaveResult struct {
	Explore       ExploreRow
	NewlyFinished []FinishedEventRow
	VariableDelta []ExploreVariableRow
}

// Save applies one save_explore_info tick inside a single transaction:
// updates db_explore's live fields, inserts any not-already-present
// finished events, and REPLACEs any variable deltas. Returns the subset
// of NewlyFinished actually inserted (i.e. not already present), so the
// caller can dedupe its in-memory finish_list.
func (s *Store) Save(ctx context.Context, r SaveResult) ([]FinishedEventRow, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin save tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	if _, err := tx.ExecContext(ctx, `
		UPDATE db_explore SET state = ?, max_event = ?, finished_event = ?, token = ?, position = ?, food = ?
		WHERE player_id = ?`,
		r.Explore.State, r.Explore.MaxEvent, r.Explore.FinishedEvent, r.Explore.Token, r.Explore.Position, r.Explore.Food, r.Explore.PlayerID); err != nil {
		return nil, fmt.Errorf("store: update db_explore for player %d: %w", r.Explore.PlayerID, err)
	}

	var inserted []FinishedEventRow
	for _, ev := range r.NewlyFinished {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO db_finished_event (player_id, scene_type, scene_id, event_id, event_type, position, progress_event)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.PlayerID, ev.SceneType, ev.SceneID, ev.EventID, ev.EventType, ev.Position, ev.ProgressEvent)
		if err != nil {
			return nil, fmt.Errorf("store: insert finished event for player %d: %w", ev.PlayerID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, ev)
		}
	}

	for _, v := range r.VariableDelta {
		if _, err := tx.ExecContext(ctx, `
			REPLACE INTO global_explore_variables (player_id, scene_type, scene_id, variable_type, value)
			VALUES (?, ?, ?, ?, ?)`,
			v.PlayerID, v.SceneType, v.SceneID, v.VariableType, v.Value); err != nil {
			return nil, fmt.Errorf("store: replace variable for player %d: %w", v.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit save tx: %w", err)
	}
	return inserted, nil
}

// LoadCharacters fetches every db_player_character row for playerID.
func (s *Store) LoadCharacters(ctx context.Context, playerID uint64) ([]PlayerCharacterRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role_id, own_type, state FROM db_player_character WHERE player_id = ?`, playerID)
	if err != nil {
		return nil, fmt.Errorf("store: load characters for player %d: %w", playerID, err)
	}
	defer rows.Close()

	var out []PlayerCharacterRow
	for rows.Next() {
		r := PlayerCharacterRow{PlayerID: playerID}
		if err := rows.Scan(&r.RoleID, &r.OwnType, &r.State); err != nil {
			return nil, fmt.Errorf("store: scan character row for player %d: %w", playerID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveCharacters REPLACEs every row in rows.
func (s *Store) SaveCharacters(ctx context.Context, rows []PlayerCharacterRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin character save tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			REPLACE INTO db_player_character (player_id, role_id, own_type, state)
			VALUES (?, ?, ?, ?)`, r.PlayerID, r.RoleID, r.OwnType, r.State); err != nil {
			return fmt.Errorf("store: replace character %d for player %d: %w", r.RoleID, r.PlayerID, err)
		}
	}
	return tx.Commit()
}
