package explore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lowtide/hexplore/internal/hexmap"
	"github.com/lowtide/hexplore/internal/mux"
	"github.com/lowtide/hexplore/internal/session"
)

// saveInterval is SAVE_EXPLORE_INTERVAL from §3 (Explore.save timer).
const saveInterval = 120 * time.Second

// endSyncGrace is the §9-resolved grace window between emitting
// EXPLORE_END_SYNC and closing the context.
const endSyncGrace = 15 * time.Second

// heartInterval mirrors the explore entity's own heart timer (§3: "heart
// timer (10s)").
const heartInterval = 10 * time.Second

// errGraceElapsed is returned by Check once the post-terminal grace
// window has elapsed; it is a normal shutdown signal, not a fault.
var errGraceElapsed = errors.New("explore: grace window elapsed")

// ErrTokenMismatch/ErrPlayerMismatch surface a StartExplore whose token
// or player id does not match this exploration (§4.6 CreateFail path).
var (
	ErrTokenMismatch  = errors.New("explore: access token mismatch")
	ErrPlayerMismatch = errors.New("explore: player id mismatch")
)

// Explore is the long-lived per-player context (§3). It implements
// actor.Implementor and is driven by one actor.Context for its entire
// lifetime, across however many client reconnects occur.
type Explore struct {
	ID             uuid.UUID
	PlayerID       uint64
	PlatformPeerID mux.ID
	ConfigID       uint32
	AccessToken    string

	logger *slog.Logger
	mgr    *mux.Manager

	state  State
	player *ExplorePlayer
	grid   *hexmap.Map
	trigger *TriggerPump
	costs  Costs

	clientHandler *session.Handler
	inbound       chan Event

	saveTimer   *time.Timer
	graceTimer  *time.Timer
	heartTicker *time.Ticker

	finishList    []FinishedEventRow
	finishedCount int64
	createTime    int64
	saver         Saver
}

// FinishedEventRow is the subset of a completed trigger event that
// save_explore_info needs; kept distinct from store.FinishedEventRow so
// this package does not import internal/store directly (Saver is the
// seam, see below).
type FinishedEventRow struct {
	EventID       uint32
	EventType     int32
	SceneType     int32
	SceneID       int32
	Position      hexmap.Point
	ProgressEvent int32
}

// SaveSnapshot is everything a save_explore_info tick needs to persist
// (§4.6 Save semantics), expressed without any dependency on the
// concrete store package.
type SaveSnapshot struct {
	PlayerID      uint64
	ExploreID     string
	State         int
	Token         string
	Position      hexmap.Point
	Food          int32
	CreateTime    int64
	MaxEvent      int64
	FinishedEvent int64
	NewlyFinished []FinishedEventRow
}

// Saver is the persistence seam Explore drives on its save deadline. A
// concrete implementation lives in internal/store; tests can fake it.
type Saver interface {
	Save(ctx context.Context, snap SaveSnapshot) (insertedFinished []FinishedEventRow, err error)
}

// New constructs an Explore in Loading state. Callers must call
// EnterState once the DB load (or creation) completes, per §4.6.
func New(id uuid.UUID, playerID uint64, platformPeer mux.ID, configID uint32, mgr *mux.Manager, saver Saver, grid *hexmap.Map, costs Costs, triggers TriggerSource, logger *slog.Logger) *Explore {
	e := &Explore{
		ID:             id,
		PlayerID:       playerID,
		PlatformPeerID: platformPeer,
		ConfigID:       configID,
		logger:         logger.With(slog.Uint64("player_id", playerID), slog.String("explore_id", id.String())),
		mgr:            mgr,
		state:          NewState(PhaseLoading),
		grid:           grid,
		trigger:        NewTriggerPump(triggers),
		costs:          costs,
		inbound:        make(chan Event, 8),
		saveTimer:      time.NewTimer(saveInterval),
		heartTicker:    time.NewTicker(heartInterval),
		saver:          saver,
		createTime:     time.Now().Unix(),
	}
	return e
}

// ValidateHandoff checks a prospective StartExplore token/player id pair
// against this exploration before a caller bothers constructing an
// Event, surfacing the exact mismatch reason (§4.6 CreateFail path).
func (e *Explore) ValidateHandoff(token string, playerID uint64) error {
	if playerID != e.PlayerID {
		return ErrPlayerMismatch
	}
	if token != e.AccessToken {
		return ErrTokenMismatch
	}
	return nil
}

// Inbound returns the channel used to deliver player handoffs, reconnect
// requests, and fight-success results to this exploration from outside
// its own context goroutine.
func (e *Explore) Inbound() chan<- Event { return e.inbound }

// EnterState transitions the exploration after a DB load/create, per
// §4.6's construction rule.
func (e *Explore) EnterState(p Phase) { e.state = NewState(p) }

// Phase reports the current FSM phase.
func (e *Explore) Phase() Phase { return e.state.Phase }

// BindPlayer installs player state once it has been built from a loaded
// or freshly-created row.
func (e *Explore) BindPlayer(p *ExplorePlayer) { e.player = p }

// RotateToken assigns a freshly rotated access token, per the
// Reconnecting transition's "rotate access token = hex(explore_id) ||
// hex(random u64)" rule. rand is injected so tests are deterministic.
func (e *Explore) RotateToken(randomHex string) {
	e.AccessToken = hexNoDashes(e.ID) + randomHex
}

func hexNoDashes(id uuid.UUID) string {
	b := id[:]
	out := make([]byte, 0, len(b)*2)
	const hexDigits = "0123456789abcdef"
	for _, c := range b {
		out = append(out, hexDigits[c>>4], hexDigits[c&0xf])
	}
	return string(out)
}

// --- actor.Implementor ---

// DealMsg processes one message from the bound client session: an
// in-line move request or the session's own disconnect notice. Every
// other frame, heartbeats included, is ignored.
func (e *Explore) DealMsg(ctx context.Context, msg session.SocketMessage) error {
	switch msg.Kind {
	case session.SocketMessageDisconnect:
		e.clientHandler = nil
		e.state = NewState(PhaseDisconnected)
		return nil

	case session.SocketMessageFrame:
		f := msg.Frame
		if f.Main != MainClient || f.Sub != SubExploreMoveReq {
			return nil
		}
		var req MoveReqPayload
		if err := json.Unmarshal(f.Payload, &req); err != nil {
			return fmt.Errorf("explore: decode move request: %w", err)
		}
		resp := e.HandleMove(hexmap.NewPoint(req.TargetX, req.TargetY))
		return e.replyMove(resp)

	default:
		return nil
	}
}

func (e *Explore) replyMove(resp MoveResponse) error {
	if e.clientHandler == nil {
		return nil
	}
	payload := MoveRespPayload{
		Result:      resp.Result,
		X:           resp.Position.X,
		Y:           resp.Position.Y,
		Food:        resp.Food,
		MaxFood:     resp.MaxFood,
		Consumption: resp.Consumption,
	}
	for _, pt := range resp.Delta {
		payload.Delta = append(payload.Delta, PointDelta{X: pt.X, Y: pt.Y, ID: pt.ID()})
	}
	if resp.CharactersSynced {
		for _, c := range resp.Characters {
			payload.Characters = append(payload.Characters, CharacterSync{
				ConfigID: c.ConfigID, State: uint8(c.State), Health: c.Health, MaxHealth: c.MaxHealth, Experience: c.Experience,
			})
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("explore: encode move response: %w", err)
	}
	if err := e.clientHandler.Send.Send(session.PacketTransport(MainClient, SubExploreMoveResp, 0, body)); err != nil {
		return fmt.Errorf("explore: send move response: %w", err)
	}
	return nil
}

// Check implements the per-tick select over inbound events and the save
// deadline (§4.6). It never blocks past ctx cancellation.
func (e *Explore) Check(ctx context.Context) (*session.Handler, error) {
	select {
	case <-ctx.Done():
		return nil, nil

	case ev := <-e.inbound:
		return e.handleEvent(ctx, ev)

	case <-e.graceTimerC():
		return nil, errGraceElapsed

	case <-e.heartTicker.C:
		if e.clientHandler != nil {
			_ = e.clientHandler.Send.Send(session.HeartbeatTransport())
		}
		return nil, nil

	case <-e.saveTimer.C:
		e.saveTimer.Reset(saveInterval)
		if err := e.persist(ctx); err != nil {
			e.logger.Warn("save failed, will retry next tick", slog.String("error", err.Error()))
		}
		return nil, nil
	}
}

func (e *Explore) graceTimerC() <-chan time.Time {
	if e.graceTimer == nil {
		return nil
	}
	return e.graceTimer.C
}

// OnClose runs once when the context exits, for any reason.
func (e *Explore) OnClose() {
	if e.saveTimer != nil {
		e.saveTimer.Stop()
	}
	if e.graceTimer != nil {
		e.graceTimer.Stop()
	}
	e.heartTicker.Stop()
}

func (e *Explore) handleEvent(ctx context.Context, ev Event) (*session.Handler, error) {
	switch ev.Kind {
	case EventPlayerHandoff:
		if ev.Token != e.AccessToken || ev.PlayerID != e.PlayerID {
			// A mismatched handoff rejects only the offending session; it
			// never disturbs this exploration's own lifecycle, since it
			// may belong to someone else entirely.
			if ev.Handler != nil {
				e.sendCreateFail(ev.Handler)
				_ = ev.Handler.Send.Send(session.DisconnectTransport())
			}
			return nil, nil
		}
		e.clientHandler = ev.Handler
		e.state = NewState(PhaseExploring)
		return ev.Handler, nil

	case EventReconnectRequest:
		e.state = NewState(PhaseReconnecting)
		e.saveTimer.Reset(saveInterval)
		return nil, nil

	case EventFightSuccess:
		if !ev.Success {
			return nil, nil
		}
		applied := false
		for _, d := range ev.Deltas {
			for _, c := range e.player.Characters {
				if c.ConfigID == d.RoleID {
					c.ApplyExp(d.Exp)
					applied = true
				}
			}
		}
		if applied {
			e.player.SetDirty(DirtyCharacter)
			e.sendFightSuccessAck()
		}
		return nil, nil

	default:
		return nil, nil
	}
}

func (e *Explore) sendCreateFail(h *session.Handler) {
	body, _ := json.Marshal(CreateExploreRespPayload{Result: int(CreateExploreNoExploreFound), PlayerID: e.PlayerID})
	_ = h.Send.Send(session.PacketTransport(MainChannel, SubCreateExploreResp, 0, body))
}

func (e *Explore) sendFightSuccessAck() {
	if e.mgr == nil {
		return
	}
	var chars []CharacterSync
	if e.player.FlushDirty(DirtyCharacter) {
		for _, c := range e.player.Characters {
			chars = append(chars, CharacterSync{ConfigID: c.ConfigID, State: uint8(c.State), Health: c.Health, MaxHealth: c.MaxHealth, Experience: c.Experience})
		}
	}
	body, _ := json.Marshal(FightSuccessRespPayload{PlayerID: e.PlayerID, Applied: true, Characters: chars})
	_ = e.mgr.Send(e.PlatformPeerID, session.PacketTransport(MainChannel, SubFightSuccessResp, 0, body))
}

// EnterTerminal transitions to Finished or Failed, emits EXPLORE_END_SYNC
// to the platform peer, and arms the grace-window timer (§4.6, §9).
func (e *Explore) EnterTerminal(failed bool) {
	phase := PhaseFinished
	result := EndSyncResult(EndSyncFinished)
	if failed {
		phase = PhaseFailed
		result = EndSyncFailed
	}
	e.state = NewState(phase)

	if e.mgr != nil {
		body, _ := json.Marshal(EndSyncPayload{PlayerID: e.PlayerID, Result: int(result)})
		_ = e.mgr.Send(e.PlatformPeerID, session.PacketTransport(MainChannel, SubExploreEndSync, 0, body))
	}
	e.graceTimer = time.NewTimer(endSyncGrace)
}

// PackAndMaybeFail runs the "all characters Injured at pack time ->
// Failed" check (§4.6); callers invoke it after any HP-affecting event.
func (e *Explore) PackAndMaybeFail() {
	if e.state.Terminal() {
		return
	}
	if e.player != nil && e.player.AllInjured() {
		e.trigger.Consume()
		e.EnterTerminal(true)
	}
}

func (e *Explore) persist(ctx context.Context) error {
	if e.saver == nil || e.player == nil {
		return nil
	}
	snap := SaveSnapshot{
		PlayerID:      e.PlayerID,
		ExploreID:     e.ID.String(),
		State:         PersistedFromPhase(e.state.Phase),
		Token:         e.AccessToken,
		Position:      e.player.Position,
		Food:          e.player.Food,
		CreateTime:    e.createTime,
		MaxEvent:      e.finishedCount,
		FinishedEvent: e.finishedCount,
		NewlyFinished: e.finishList,
	}
	newlyInserted, err := e.saver.Save(ctx, snap)
	if err != nil {
		return err
	}
	e.finishedCount += int64(len(newlyInserted))
	e.finishList = dedupeFinished(e.finishList)
	return nil
}

// AddFinishedEvent records a completed trigger event for the next save
// tick to persist.
func (e *Explore) AddFinishedEvent(row FinishedEventRow) {
	e.finishList = append(e.finishList, row)
}

func dedupeFinished(rows []FinishedEventRow) []FinishedEventRow {
	seen := make(map[uint32]struct{}, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		if _, ok := seen[r.EventID]; ok {
			continue
		}
		seen[r.EventID] = struct{}{}
		out = append(out, r)
	}
	return out
}
