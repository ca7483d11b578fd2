package mux

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lowtide/hexplore/internal/wire"
)

// RPCPlugin correlates outbound requests with inbound responses on one
// peer by rpc-sequence. Sequences are never reused within a peer
// lifetime (the counter only ever increases) and every allocated
// sequence is either completed exactly once or cancelled.
type RPCPlugin struct {
	seq atomic.Uint32

	mu      sync.Mutex
	pending map[uint32]chan wire.Frame
}

// NewRPCPlugin constructs an empty correlator.
func NewRPCPlugin() *RPCPlugin {
	return &RPCPlugin{pending: make(map[uint32]chan wire.Frame)}
}

// nextSeq allocates the next sequence number, skipping zero (reserved
// by the wire format for "no RPC sequence present").
func (p *RPCPlugin) nextSeq() uint32 {
	for {
		if v := p.seq.Add(1); v != 0 {
			return v
		}
	}
}

func (p *RPCPlugin) register(seq uint32) <-chan wire.Frame {
	ch := make(chan wire.Frame, 1)
	p.mu.Lock()
	p.pending[seq] = ch
	p.mu.Unlock()
	return ch
}

func (p *RPCPlugin) cancel(seq uint32) {
	p.mu.Lock()
	delete(p.pending, seq)
	p.mu.Unlock()
}

// Complete delivers f to the responder waiting on f.RPCSeq. Reports
// false when no responder is registered for that sequence (unmatched
// inbound sequences are logged and dropped by the caller).
func (p *RPCPlugin) Complete(f wire.Frame) bool {
	p.mu.Lock()
	ch, ok := p.pending[f.RPCSeq]
	if ok {
		delete(p.pending, f.RPCSeq)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- f
	return true
}

// Request allocates a sequence, hands the built frame to send, and
// waits for either a matching response, ctx cancellation, or the
// peer's own lifetime ending via done. On any non-success path the
// responder is dropped so the pending map never grows unbounded.
func (p *RPCPlugin) Request(ctx context.Context, send func(wire.Frame) error, done <-chan struct{}, main, sub uint16, payload []byte) (wire.Frame, error) {
	seq := p.nextSeq()
	ch := p.register(seq)

	f := wire.Frame{Main: main, Sub: sub, RPCSeq: seq, Payload: payload}
	if err := send(f); err != nil {
		p.cancel(seq)
		return wire.Frame{}, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		p.cancel(seq)
		return wire.Frame{}, ErrRPCTimeout
	case <-done:
		p.cancel(seq)
		return wire.Frame{}, ErrPeerDisconnected
	}
}
