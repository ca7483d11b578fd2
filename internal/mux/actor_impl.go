package mux

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lowtide/hexplore/internal/session"
)

// peerActor is the actor.Implementor bound to one peer connection's
// session handler. It enforces the handshake, routes RPC responses to
// the peer's RPCPlugin, forwards everything else to the Manager's
// FrameSink, and watches the heartbeat contract.
type peerActor struct {
	ph     *peerHandle
	sink   FrameSink
	logger *slog.Logger

	handshakeDone bool // touched only from DealMsg's goroutine

	lastRecvNano atomic.Int64

	sendTicker *time.Ticker
	pollTicker *time.Ticker
}

func newPeerActor(ph *peerHandle, sink FrameSink, logger *slog.Logger) *peerActor {
	p := &peerActor{
		ph:         ph,
		sink:       sink,
		logger:     logger,
		sendTicker: time.NewTicker(sendHeartbeatInterval),
		pollTicker: time.NewTicker(recvPollInterval),
	}
	p.lastRecvNano.Store(time.Now().UnixNano())
	return p
}

// DealMsg implements actor.Implementor.
func (p *peerActor) DealMsg(_ context.Context, msg session.SocketMessage) error {
	switch msg.Kind {
	case session.SocketMessageDisconnect:
		return errPeerDisconnected

	case session.SocketMessageFrame:
		p.lastRecvNano.Store(time.Now().UnixNano())
		f := msg.Frame

		if !p.handshakeDone {
			if f.Main != handshakeMain || f.Sub != handshakeSub {
				return fmt.Errorf("%w: main=%d sub=%d", ErrHandshakeExpected, f.Main, f.Sub)
			}
			ct := ClientTypeUnknown
			if len(f.Payload) > 0 {
				ct = ClientType(f.Payload[0])
			}
			p.ph.setClientType(ct)
			p.ph.state.Store(int32(StateConnected))
			p.handshakeDone = true
			p.logger.Info("peer handshake complete", slog.String("client_type", ct.String()))
			return nil
		}

		if f.HasRPC() {
			if !p.ph.rpc.Complete(f) {
				p.logger.Warn("unmatched rpc sequence, dropping", slog.Uint64("seq", uint64(f.RPCSeq)))
			}
			return nil
		}

		if p.sink != nil {
			p.sink.HandleFrame(p.ph.id, f)
		}
		return nil

	default:
		return nil
	}
}

// Check implements actor.Implementor: it drives the send-side
// heartbeat ticker and polls for recv-side heartbeat expiry without
// ever calling Reset on a shared timer from more than one goroutine.
func (p *peerActor) Check(ctx context.Context) (*session.Handler, error) {
	select {
	case <-ctx.Done():
		return nil, nil

	case <-p.sendTicker.C:
		h := p.ph.getHandler()
		if h == nil {
			return nil, nil
		}
		if err := h.Send.Send(session.HeartbeatTransport()); err != nil {
			return nil, err
		}
		return nil, nil

	case <-p.pollTicker.C:
		last := time.Unix(0, p.lastRecvNano.Load())
		if time.Since(last) > recvHeartbeatTimeout {
			return nil, ErrHeartbeatExpired
		}
		return nil, nil
	}
}

// OnClose implements actor.Implementor.
func (p *peerActor) OnClose() {
	p.sendTicker.Stop()
	p.pollTicker.Stop()
	p.ph.state.Store(int32(StateDisconnected))
}
