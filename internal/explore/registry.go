package explore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lowtide/hexplore/internal/hexmap"
)

// Summary is a read-only snapshot of one Explore, for the admin
// server's inspection endpoints (§6 HTTP admin GET /explores).
type Summary struct {
	ID        uuid.UUID
	PlayerID  uint64
	Phase     string
	Position  hexmap.Point
	Food      int32
	MaxFood   int32
	StepCount int
	Age       time.Duration
}

// Summary builds a Summary of the current state. Safe to call from any
// goroutine: it only reads fields the owning actor.Context goroutine
// also only ever replaces wholesale (state, player pointer), never
// mutates in place from another goroutine.
func (e *Explore) Summary() Summary {
	s := Summary{
		ID:       e.ID,
		PlayerID: e.PlayerID,
		Phase:    e.state.Phase.String(),
		Age:      e.state.Age(),
	}
	if e.player != nil {
		s.Position = e.player.Position
		s.Food = e.player.Food
		s.MaxFood = e.player.MaxFood
		s.StepCount = e.player.StepCount
	}
	return s
}

// Registry is the process-wide index of live Explore contexts, keyed
// by player id, that lets the admin server answer GET /explores and
// GET /explores/{player_id} without any of the RPC machinery §6
// reserves for the core protocol.
type Registry struct {
	mu       sync.RWMutex
	byPlayer map[uint64]*Explore
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byPlayer: make(map[uint64]*Explore)}
}

// Register adds or replaces the live Explore for e.PlayerID.
func (r *Registry) Register(e *Explore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPlayer[e.PlayerID] = e
}

// Unregister removes the entry for playerID, if present.
func (r *Registry) Unregister(playerID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPlayer, playerID)
}

// Get returns the live Explore for playerID, if any.
func (r *Registry) Get(playerID uint64) (*Explore, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byPlayer[playerID]
	return e, ok
}

// List returns a Summary of every currently registered Explore.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.byPlayer))
	for _, e := range r.byPlayer {
		out = append(out, e.Summary())
	}
	return out
}
