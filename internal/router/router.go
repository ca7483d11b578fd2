// Package router bridges the channel multiplexer's inbound frames from
// the platform peer to per-player exploration contexts. It implements
// mux.FrameSink, owns the process-wide explore.Registry, and is the
// one place that knows how to turn a CREATE_EXPLORE_REQ into either a
// freshly loaded Explore or a reconnect event against an already-live
// one.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/lowtide/hexplore/internal/actor"
	"github.com/lowtide/hexplore/internal/config"
	"github.com/lowtide/hexplore/internal/explore"
	"github.com/lowtide/hexplore/internal/hexmap"
	"github.com/lowtide/hexplore/internal/metrics"
	"github.com/lowtide/hexplore/internal/mux"
	"github.com/lowtide/hexplore/internal/session"
	"github.com/lowtide/hexplore/internal/store"
	"github.com/lowtide/hexplore/internal/wire"
)

// Router owns every live Explore context on this process and routes
// MainChannel frames from the platform peer to the right one by player
// id, starting a fresh actor.Context when none is running yet.
type Router struct {
	logger   *slog.Logger
	mgr      *mux.Manager
	store    *store.Store
	saver    explore.Saver
	gamedata *config.GameData
	grid     *hexmap.Map
	metrics  *metrics.Collector
	registry *explore.Registry

	mu      sync.Mutex
	running map[uint64]context.CancelFunc
}

// New constructs a Router. grid is shared read-only state across every
// Explore context (the hex map never changes shape at runtime). mgr may
// be nil if the caller has not yet constructed its Manager (Router and
// Manager are mutually referential: the Manager needs Router as its
// FrameSink, Router needs the Manager to hand to each Explore) — set it
// afterwards with SetManager.
func New(logger *slog.Logger, mgr *mux.Manager, st *store.Store, saver explore.Saver, gamedata *config.GameData, grid *hexmap.Map, collector *metrics.Collector, registry *explore.Registry) *Router {
	return &Router{
		logger:   logger.With(slog.String("component", "router")),
		mgr:      mgr,
		store:    st,
		saver:    saver,
		gamedata: gamedata,
		grid:     grid,
		metrics:  collector,
		registry: registry,
		running:  make(map[uint64]context.CancelFunc),
	}
}

// SetManager completes two-phase construction for the mutually
// referential Router/Manager pair (see New).
func (r *Router) SetManager(mgr *mux.Manager) { r.mgr = mgr }

// HandleFrame implements mux.FrameSink.
func (r *Router) HandleFrame(peerID mux.ID, f wire.Frame) {
	if f.Main != explore.MainChannel {
		return
	}
	switch f.Sub {
	case explore.SubCreateExploreReq:
		r.handleCreateExplore(peerID, f)
	case explore.SubFightSuccessReq:
		r.handleFightSuccess(f)
	default:
		r.logger.Debug("unhandled channel frame", slog.Uint64("sub", uint64(f.Sub)))
	}
}

func (r *Router) handleCreateExplore(peerID mux.ID, f wire.Frame) {
	var req explore.CreateExploreReqPayload
	if err := json.Unmarshal(f.Payload, &req); err != nil {
		r.logger.Warn("decode create-explore request", slog.String("error", err.Error()))
		return
	}
	r.createOrResume(peerID, req)
}

// createOrResume is the shared core of handleCreateExplore (channel-
// sourced, from the platform peer) and AcceptClient (client-sourced, at
// exploresvc's own player-facing listener): reconnect an already-live
// exploration, resume one from storage, or start a brand-new one.
func (r *Router) createOrResume(peerID mux.ID, req explore.CreateExploreReqPayload) {
	if e, ok := r.registry.Get(req.PlayerID); ok {
		e.Inbound() <- explore.Event{Kind: explore.EventReconnectRequest, PlayerID: req.PlayerID, Token: req.Token}
		return
	}

	ctx := context.Background()
	row, err := r.store.LoadExplore(ctx, req.PlayerID)
	switch {
	case err == store.ErrNotFound:
		r.startFreshExplore(peerID, req)
	case err != nil:
		r.logger.Error("load explore for create-explore request", slog.Uint64("player_id", req.PlayerID), slog.String("error", err.Error()))
	default:
		r.resumeExplore(peerID, req, row)
	}
}

// AcceptClient handles a player's exploration entry at exploresvc's own
// client-facing listener: it creates or resumes the Explore exactly as
// a channel-sourced CREATE_EXPLORE_REQ would (peerID 0, since no
// platform peer is party to this path), then immediately binds the
// freshly accepted session handler to it.
func (r *Router) AcceptClient(req explore.CreateExploreReqPayload, h *session.Handler) {
	r.createOrResume(0, req)
	r.HandoffClient(req.PlayerID, req.Token, h)
}

func (r *Router) startFreshExplore(peerID mux.ID, req explore.CreateExploreReqPayload) {
	id := uuid.New()
	snap := r.gamedata.Snapshot()
	costs := costsFromCommon(snap)
	maxFood := commonInt32(snap, "DefaultFood", 100)

	e := explore.New(id, req.PlayerID, peerID, req.ConfigID, r.mgr, r.saver, r.grid, costs, nil, r.logger)
	e.AccessToken = req.Token
	e.BindPlayer(explore.NewExplorePlayer(hexmap.NewPoint(0, 0), maxFood, 6))
	e.EnterState(explore.PhaseLoading)

	r.spawn(e)
}

func (r *Router) resumeExplore(peerID mux.ID, req explore.CreateExploreReqPayload, row store.ExploreRow) {
	id, err := uuid.Parse(row.ExploreID)
	if err != nil {
		id = uuid.New()
	}
	snap := r.gamedata.Snapshot()
	costs := costsFromCommon(snap)

	e := explore.New(id, req.PlayerID, peerID, req.ConfigID, r.mgr, r.saver, r.grid, costs, nil, r.logger)
	e.AccessToken = row.Token
	player := explore.NewExplorePlayer(decodePosition(row.Position), row.Food, 6)
	e.BindPlayer(player)
	e.EnterState(explore.PhaseFromPersisted(row.State))

	if rows, err := r.store.LoadCharacters(context.Background(), req.PlayerID); err != nil {
		r.logger.Warn("load characters", slog.Uint64("player_id", req.PlayerID), slog.String("error", err.Error()))
	} else {
		for _, cr := range rows {
			ch := explore.NewCharacter(cr.RoleID, 1)
			ch.OwnType = cr.OwnType
			ch.State = explore.CharacterState(cr.State)
			player.Characters = append(player.Characters, ch)
		}
	}

	r.spawn(e)
}

func (r *Router) spawn(e *explore.Explore) {
	r.registry.Register(e)
	if r.metrics != nil {
		r.metrics.ExploreStarted()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.running[e.PlayerID] = cancel
	r.mu.Unlock()

	actorCtx := actor.New(fmt.Sprintf("explore-%d", e.PlayerID), r.logger, e, nil)
	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.running, e.PlayerID)
			r.mu.Unlock()
			r.registry.Unregister(e.PlayerID)
			if r.metrics != nil {
				r.metrics.ExploreEnded()
			}
		}()
		if err := actorCtx.Run(ctx); err != nil {
			r.logger.Info("explore context stopped", slog.Uint64("player_id", e.PlayerID), slog.String("error", err.Error()))
		}
	}()
}

// Shutdown cancels every live exploration context. It does not wait for
// them to finish, and nothing in this package tracks their exit.
func (r *Router) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.running {
		cancel()
	}
}

func (r *Router) handleFightSuccess(f wire.Frame) {
	var req explore.FightSuccessReqPayload
	if err := json.Unmarshal(f.Payload, &req); err != nil {
		r.logger.Warn("decode fight-success request", slog.String("error", err.Error()))
		return
	}
	e, ok := r.registry.Get(req.PlayerID)
	if !ok {
		r.logger.Warn("fight-success for unknown player", slog.Uint64("player_id", req.PlayerID))
		return
	}
	e.Inbound() <- explore.Event{Kind: explore.EventFightSuccess, PlayerID: req.PlayerID, Success: req.Success, Deltas: req.Deltas}
}

// HandoffClient delivers a freshly accepted client session handler to
// the exploration it belongs to. AcceptClient calls it once the
// exploration has been created or resumed; it reports false when no
// live exploration exists for playerID.
func (r *Router) HandoffClient(playerID uint64, token string, h *session.Handler) bool {
	e, ok := r.registry.Get(playerID)
	if !ok {
		return false
	}
	e.Inbound() <- explore.Event{Kind: explore.EventPlayerHandoff, PlayerID: playerID, Token: token, Handler: h}
	return true
}

type position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func decodePosition(raw string) hexmap.Point {
	var p position
	if raw == "" {
		return hexmap.NewPoint(0, 0)
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return hexmap.NewPoint(0, 0)
	}
	return hexmap.NewPoint(p.X, p.Y)
}

func costsFromCommon(snap *config.ConfigSnapshot) explore.Costs {
	def := explore.DefaultCosts()
	return explore.Costs{
		MoveCost:            commonInt32(snap, "MoveCost", def.MoveCost),
		MoveUnitCost:        commonInt32(snap, "MoveUnitCost", def.MoveUnitCost),
		JourneyHealthLimit:  commonInt32(snap, "JourneyHealthLimit", def.JourneyHealthLimit),
		MovementHealthlimit: commonInt32(snap, "MovementHealthlimit", def.MovementHealthlimit),
		DisperseFog:         int(commonInt32(snap, "DisperseFog", int32(def.DisperseFog))),
	}
}

func commonInt32(snap *config.ConfigSnapshot, key string, fallback int32) int32 {
	raw := snap.String(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(v)
}
