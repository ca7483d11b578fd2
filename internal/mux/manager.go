package mux

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lowtide/hexplore/internal/actor"
	"github.com/lowtide/hexplore/internal/session"
	"github.com/lowtide/hexplore/internal/wire"
)

// reconnectBackoff is the fixed delay between dial attempts for an
// outbound peer (§4.4).
const reconnectBackoff = 3 * time.Second

// sendHeartbeatInterval and recvHeartbeatTimeout are the two halves of
// the per-peer heartbeat contract: we emit on the short interval, and
// declare the peer gone if nothing at all arrives within the long one.
const (
	sendHeartbeatInterval = 12 * time.Second
	recvHeartbeatTimeout  = 30 * time.Second
	recvPollInterval      = 1 * time.Second
)

// FrameSink receives application frames (handshake and RPC frames are
// consumed by the multiplexer itself and never reach the sink).
type FrameSink interface {
	HandleFrame(peerID ID, f wire.Frame)
}

// peerHandle is the Manager's registry entry for one logical peer. It
// outlives any single TCP connection: a reconnecting outbound peer
// keeps its id, client type, and RPCPlugin across hot-swaps.
type peerHandle struct {
	id         ID
	outbound   bool
	clientType atomic.Uint32
	state      atomic.Int32
	rpc        *RPCPlugin
	handler    atomic.Pointer[session.Handler]
}

func newPeerHandle(id ID, outbound bool) *peerHandle {
	ph := &peerHandle{id: id, outbound: outbound, rpc: NewRPCPlugin()}
	ph.state.Store(int32(StateConnecting))
	return ph
}

func (ph *peerHandle) setHandler(h *session.Handler) { ph.handler.Store(h) }
func (ph *peerHandle) getHandler() *session.Handler  { return ph.handler.Load() }

func (ph *peerHandle) setClientType(ct ClientType) { ph.clientType.Store(uint32(ct)) }
func (ph *peerHandle) getClientType() ClientType   { return ClientType(ph.clientType.Load()) }

// Snapshot is a read-only view of a peer's registry entry, for the HTTP
// admin surface and tests.
type Snapshot struct {
	ID         ID
	Outbound   bool
	ClientType ClientType
	State      State
}

// Manager owns a peer registry and, for inbound connections, the
// listening accept loop. It does not itself bind a socket for outbound
// peers — callers supply an address per Dial.
type Manager struct {
	logger          *slog.Logger
	sink            FrameSink
	localClientType ClientType

	idGen atomic.Uint64

	mu    sync.RWMutex
	peers map[ID]*peerHandle
}

// NewManager constructs a Manager. localClientType is announced in the
// handshake frame this process sends on every peer connection,
// inbound or outbound.
func NewManager(logger *slog.Logger, sink FrameSink, localClientType ClientType) *Manager {
	return &Manager{
		logger:          logger.With(slog.String("component", "mux.manager")),
		sink:            sink,
		localClientType: localClientType,
		peers:           make(map[ID]*peerHandle),
	}
}

func (m *Manager) register(ph *peerHandle) {
	m.mu.Lock()
	m.peers[ph.id] = ph
	m.mu.Unlock()
}

func (m *Manager) unregister(id ID) {
	m.mu.Lock()
	delete(m.peers, id)
	m.mu.Unlock()
}

func (m *Manager) lookup(id ID) *peerHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peers[id]
}

// Snapshots returns a point-in-time view of every registered peer,
// sorted by nothing in particular; callers needing order should sort.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.peers))
	for _, ph := range m.peers {
		out = append(out, Snapshot{
			ID:         ph.id,
			Outbound:   ph.outbound,
			ClientType: ph.getClientType(),
			State:      State(ph.state.Load()),
		})
	}
	return out
}

// Send enqueues transport t for peer id's current session. Fails
// immediately, without buffering, if the peer is unknown or not
// currently connected.
func (m *Manager) Send(id ID, t session.Transport) error {
	ph := m.lookup(id)
	if ph == nil {
		return ErrPeerNotFound
	}
	if State(ph.state.Load()) != StateConnected {
		return ErrPeerDisconnected
	}
	h := ph.getHandler()
	if h == nil {
		return ErrPeerDisconnected
	}
	return h.Send.Send(t)
}

// RPCRequest performs a correlated request/response exchange with peer
// id, allocating the next rpc-sequence and blocking until a matching
// response arrives or ctx is done. It fails at once if the peer is not
// connected when the request is sent; a disconnect after that does not
// end the wait, so only ctx bounds it.
func (m *Manager) RPCRequest(ctx context.Context, id ID, main, sub uint16, payload []byte) (wire.Frame, error) {
	ph := m.lookup(id)
	if ph == nil {
		return wire.Frame{}, ErrPeerNotFound
	}
	done := make(chan struct{})
	send := func(f wire.Frame) error {
		if State(ph.state.Load()) != StateConnected {
			close(done)
			return ErrPeerDisconnected
		}
		h := ph.getHandler()
		if h == nil {
			close(done)
			return ErrPeerDisconnected
		}
		return h.Send.Send(session.PacketTransport(f.Main, f.Sub, f.RPCSeq, f.Payload))
	}
	return ph.rpc.Request(ctx, send, done, main, sub, payload)
}

// Serve accepts inbound connections on ln until ctx is cancelled or ln
// is closed, running one peer context per accepted connection.
func (m *Manager) Serve(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		go m.runPeer(ctx, conn, newPeerHandle(ID(m.idGen.Add(1)), false))
	}
}

// Dial starts a background reconnect loop that maintains one outbound
// peer connection to addr, retrying forever on a fixed backoff. It
// returns the peer id immediately; the connection itself is
// established asynchronously.
func (m *Manager) Dial(ctx context.Context, addr string) ID {
	ph := newPeerHandle(ID(m.idGen.Add(1)), true)
	m.register(ph)
	go m.dialLoop(ctx, addr, ph)
	return ph.id
}

func (m *Manager) dialLoop(ctx context.Context, addr string, ph *peerHandle) {
	defer m.unregister(ph.id)

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
		if err != nil {
			m.logger.Warn("dial failed, retrying", slog.String("addr", addr), slog.String("error", err.Error()))
			ph.state.Store(int32(StateReconnecting))
			if !sleepOrDone(ctx, reconnectBackoff) {
				return
			}
			continue
		}

		m.runPeer(ctx, conn, ph)

		if ctx.Err() != nil {
			return
		}
		ph.state.Store(int32(StateReconnecting))
		if !sleepOrDone(ctx, reconnectBackoff) {
			return
		}
	}
}

// runPeer drives one connection's session and peer context to
// completion. For an outbound peerHandle this re-registers the
// existing id (hot-swap); for inbound it registers a fresh one.
func (m *Manager) runPeer(ctx context.Context, conn net.Conn, ph *peerHandle) {
	logger := m.logger.With(slog.Uint64("peer_id", uint64(ph.id)), slog.Bool("outbound", ph.outbound))

	sess, handler := session.New(conn, logger)
	ph.setHandler(&handler)
	ph.state.Store(int32(StateConnecting))
	if !ph.outbound {
		m.register(ph)
		defer m.unregister(ph.id)
	}

	if err := handler.Send.Send(handshakeTransport(m.localClientType)); err != nil {
		logger.Warn("failed to send handshake", slog.String("error", err.Error()))
		_ = conn.Close()
		return
	}

	pa := newPeerActor(ph, m.sink, logger)
	actorCtx := actor.New(fmt.Sprintf("peer-%d", ph.id), logger, pa, &handler)

	sessDone := make(chan error, 1)
	go func() { sessDone <- sess.Run(ctx) }()

	if err := actorCtx.Run(ctx); err != nil {
		logger.Info("peer context stopped", slog.String("error", err.Error()))
	}
	_ = handler.Send.Send(session.DisconnectTransport())
	<-sessDone
}

func handshakeTransport(ct ClientType) session.Transport {
	return session.PacketTransport(handshakeMain, handshakeSub, 0, []byte{byte(ct)})
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
