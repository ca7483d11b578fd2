package mux

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/lowtide/hexplore/internal/session"
	"github.com/lowtide/hexplore/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// recordingSink captures every frame handed to it and, if respond is
// set, uses it to synthesize a reply (used to simulate an RPC peer).
type recordingSink struct {
	mu      sync.Mutex
	frames  []wire.Frame
	respond func(mgr *Manager, peerID ID, f wire.Frame)
	mgr     *Manager
}

func (s *recordingSink) HandleFrame(peerID ID, f wire.Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
	if s.respond != nil {
		s.respond(s.mgr, peerID, f)
	}
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *recordingSink) last() wire.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[len(s.frames)-1]
}

func waitForState(t *testing.T, m *Manager, id ID, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ph := m.lookup(id); ph != nil && State(ph.state.Load()) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("peer %d did not reach state %v in time", id, want)
}

// TestHandshakeAndFrameRouting covers invariant-equivalent behavior:
// the mandatory handshake must complete before any application frame
// is delivered to the sink, and subsequent frames are routed correctly.
func TestHandshakeAndFrameRouting(t *testing.T) {
	t.Parallel()

	connA, connB := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinkA := &recordingSink{}
	sinkB := &recordingSink{}
	mA := NewManager(discardLogger(), sinkA, ClientTypePlatform)
	mB := NewManager(discardLogger(), sinkB, ClientTypeExplore)

	phA := newPeerHandle(ID(mA.idGen.Add(1)), false)
	phB := newPeerHandle(ID(mB.idGen.Add(1)), false)

	doneA, doneB := make(chan struct{}), make(chan struct{})
	go func() { mA.runPeer(ctx, connA, phA); close(doneA) }()
	go func() { mB.runPeer(ctx, connB, phB); close(doneB) }()

	waitForState(t, mA, phA.id, StateConnected)
	waitForState(t, mB, phB.id, StateConnected)

	if mA.lookup(phA.id).getClientType() != ClientTypeExplore {
		t.Fatalf("A did not observe B's announced client type")
	}
	if mB.lookup(phB.id).getClientType() != ClientTypePlatform {
		t.Fatalf("B did not observe A's announced client type")
	}

	payload := []byte("hello-from-a")
	if err := mA.Send(phA.id, session.PacketTransport(1022, 1, 0, payload)); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sinkB.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sinkB.count() != 1 {
		t.Fatalf("sinkB frame count = %d, want 1", sinkB.count())
	}
	got := sinkB.last()
	if got.Main != 1022 || got.Sub != 1 || string(got.Payload) != "hello-from-a" {
		t.Fatalf("unexpected frame: %+v", got)
	}

	cancel()
	<-doneA
	<-doneB
}

// TestRPCRequestResponse covers the RPC correlator round trip: a
// request frame is sent with an allocated sequence, the simulated peer
// echoes a response carrying the same sequence, and RPCRequest returns
// exactly that frame. The responder is a bare session rather than a
// second Manager: a Manager's peer hands every rpc-tagged inbound frame
// to its own RPCPlugin, never to its FrameSink.
func TestRPCRequestResponse(t *testing.T) {
	t.Parallel()

	connA, connB := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mA := NewManager(discardLogger(), &recordingSink{}, ClientTypePlatform)
	phA := newPeerHandle(ID(mA.idGen.Add(1)), false)

	doneA := make(chan struct{})
	go func() { mA.runPeer(ctx, connA, phA); close(doneA) }()

	sessB, handlerB := session.New(connB, discardLogger())
	doneB := make(chan error, 1)
	go func() { doneB <- sessB.Run(ctx) }()

	<-handlerB.Recv // A's handshake frame
	if err := handlerB.Send.Send(handshakeTransport(ClientTypeExplore)); err != nil {
		t.Fatalf("send handshake: %v", err)
	}
	go func() {
		msg, ok := <-handlerB.Recv
		if !ok || msg.Kind != session.SocketMessageFrame {
			return
		}
		f := msg.Frame
		reply := append([]byte(nil), "ack:"...)
		reply = append(reply, f.Payload...)
		_ = handlerB.Send.Send(session.PacketTransport(f.Main, f.Sub+1, f.RPCSeq, reply))
	}()

	waitForState(t, mA, phA.id, StateConnected)

	rctx, rcancel := context.WithTimeout(ctx, 2*time.Second)
	defer rcancel()

	resp, err := mA.RPCRequest(rctx, phA.id, 1022, 3, []byte("req"))
	if err != nil {
		t.Fatalf("rpc request: %v", err)
	}
	if resp.Main != 1022 || resp.Sub != 4 || string(resp.Payload) != "ack:req" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	cancel()
	<-doneA
	<-doneB
}

// TestRPCPluginTimeoutDropsResponder checks that a cancelled request
// does not leave a stale entry in the pending map (sequences are never
// completed twice).
func TestRPCPluginTimeoutDropsResponder(t *testing.T) {
	t.Parallel()

	p := NewRPCPlugin()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	send := func(wire.Frame) error { return nil } // never answered
	done := make(chan struct{})

	_, err := p.Request(ctx, send, done, 1, 1, nil)
	if !errors.Is(err, ErrRPCTimeout) {
		t.Fatalf("err = %v, want ErrRPCTimeout", err)
	}

	p.mu.Lock()
	n := len(p.pending)
	p.mu.Unlock()
	if n != 0 {
		t.Fatalf("pending map not drained after timeout: %d entries", n)
	}
}

// TestHandshakeRejectedWithoutPriorHandshake covers the invariant that
// a non-handshake frame arriving before CHANNEL_CONNECT kills the peer
// without ever reaching Connected.
func TestHandshakeRejectedWithoutPriorHandshake(t *testing.T) {
	t.Parallel()

	serverConn, clientConn := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	m := NewManager(discardLogger(), sink, ClientTypePlatform)
	ph := newPeerHandle(ID(m.idGen.Add(1)), false)

	peerDone := make(chan struct{})
	go func() { m.runPeer(ctx, serverConn, ph); close(peerDone) }()

	clientSess, clientHandler := session.New(clientConn, discardLogger())
	clientDone := make(chan error, 1)
	go func() { clientDone <- clientSess.Run(ctx) }()

	<-clientHandler.Recv // our handshake frame

	if err := clientHandler.Send.Send(session.PacketTransport(999, 2, 0, nil)); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case <-peerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("peer context did not stop after non-handshake frame")
	}
	if State(ph.state.Load()) == StateConnected {
		t.Fatal("peer should not have reached Connected without completing handshake")
	}

	cancel()
	<-clientDone
}
