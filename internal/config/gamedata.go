package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// PartnerRow is one entry of Partner.json. The file is a JSON array of
// rows, indexed by each row's own id after decoding; a JSON object keyed
// by id is not accepted.
type PartnerRow struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	OwnType  int32  `json:"own_type"`
	MaxHP    int32  `json:"max_hp"`
	InitRole string `json:"init_role"`
}

// CommonEntry is one Common.json row: a tunable key/value pair. The file
// is a JSON array of such rows; a JSON object keyed by key is not
// accepted.
type CommonEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ConfigSnapshot is one atomically-swappable read of Partner.json +
// Common.json. Movement costs are not stored here; callers derive them
// from the Common values.
type ConfigSnapshot struct {
	Partner map[uint32]PartnerRow
	Common  map[string]string
}

// String returns the Common value for key, or "" if absent.
func (s *ConfigSnapshot) String(key string) string {
	if s == nil {
		return ""
	}
	return s.Common[key]
}

// loadPartner reads Partner.json (a JSON array of rows) into an
// id-keyed map. Thin, array-of-structs JSON: encoding/json is the right
// tool, no ecosystem library adds value here (see DESIGN.md).
func loadPartner(path string) (map[uint32]PartnerRow, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var rows []PartnerRow
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	out := make(map[uint32]PartnerRow, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// loadCommon reads Common.json (a JSON array of key/value rows) into a
// key-keyed map.
func loadCommon(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var rows []CommonEntry
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// loadSnapshot reads Partner.json/Common.json from dir into a fresh
// ConfigSnapshot.
func loadSnapshot(dir string) (*ConfigSnapshot, error) {
	partner, err := loadPartner(filepath.Join(dir, "Partner.json"))
	if err != nil {
		return nil, err
	}
	common, err := loadCommon(filepath.Join(dir, "Common.json"))
	if err != nil {
		return nil, err
	}
	return &ConfigSnapshot{Partner: partner, Common: common}, nil
}

// GameData holds the hot-reloadable Partner/Common content behind an
// atomic pointer, so the admin server's POST /reload can swap in a
// freshly-loaded snapshot without readers ever observing a torn read
// (§6 HTTP admin).
type GameData struct {
	dir  string
	snap atomic.Pointer[ConfigSnapshot]
}

// NewGameData loads dir's Partner.json/Common.json once and returns a
// GameData ready to serve Snapshot() calls.
func NewGameData(dir string) (*GameData, error) {
	g := &GameData{dir: dir}
	if err := g.Reload(); err != nil {
		return nil, err
	}
	return g, nil
}

// Reload re-reads Partner.json/Common.json and atomically swaps the
// live snapshot. On error the previous snapshot remains live.
func (g *GameData) Reload() error {
	snap, err := loadSnapshot(g.dir)
	if err != nil {
		return err
	}
	g.snap.Store(snap)
	return nil
}

// Snapshot returns the currently live ConfigSnapshot.
func (g *GameData) Snapshot() *ConfigSnapshot { return g.snap.Load() }
