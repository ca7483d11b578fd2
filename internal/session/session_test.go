package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
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

// TestSessionDeliversFrameAndExactlyOneDisconnect covers invariant 4: over
// a session's lifetime exactly one OnDisconnect is delivered.
func TestSessionDeliversFrameAndExactlyOneDisconnect(t *testing.T) {
	t.Parallel()

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	sess, handler := session.New(serverConn, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- sess.Run(ctx) }()

	f := wire.Frame{Main: 11, Sub: 1022, Payload: []byte("hello")}
	encoded, err := wire.Encode(nil, f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := clientConn.Write(encoded); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case msg := <-handler.Recv:
		if msg.Kind != session.SocketMessageFrame {
			t.Fatalf("kind = %v, want SocketMessageFrame", msg.Kind)
		}
		if msg.Frame.Main != 11 || msg.Frame.Sub != 1022 || string(msg.Frame.Payload) != "hello" {
			t.Fatalf("frame = %+v, unexpected", msg.Frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}

	if err := handler.Send.Send(session.DisconnectTransport()); err != nil {
		t.Fatalf("send disconnect: %v", err)
	}

	disconnects := 0
	for msg := range handler.Recv {
		if msg.Kind == session.SocketMessageDisconnect {
			disconnects++
		}
	}
	if disconnects != 1 {
		t.Fatalf("disconnect count = %d, want 1", disconnects)
	}

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

// TestSessionRemoteCloseEmitsDisconnect covers the case where the peer
// closes the connection instead of an explicit Disconnect transport.
func TestSessionRemoteCloseEmitsDisconnect(t *testing.T) {
	t.Parallel()

	serverConn, clientConn := net.Pipe()
	sess, handler := session.New(serverConn, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- sess.Run(ctx) }()

	// Seed one frame so the connect-timeout check is satisfied, then close.
	f := wire.Frame{Main: 101, Sub: 1}
	encoded, _ := wire.Encode(nil, f)
	if _, err := clientConn.Write(encoded); err != nil {
		t.Fatalf("write: %v", err)
	}
	<-handler.Recv // the heartbeat frame

	clientConn.Close()

	msg, ok := <-handler.Recv
	if !ok {
		t.Fatal("channel closed before disconnect message")
	}
	if msg.Kind != session.SocketMessageDisconnect {
		t.Fatalf("kind = %v, want SocketMessageDisconnect", msg.Kind)
	}

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after remote close")
	}
}

// TestSessionMalformedFrameClosesConnection covers the sanity-check reject
// path (sub-code 0 is invalid).
func TestSessionMalformedFrameClosesConnection(t *testing.T) {
	t.Parallel()

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	sess, handler := session.New(serverConn, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- sess.Run(ctx) }()

	bad := wire.Frame{Main: 1, Sub: 0}
	encoded, _ := wire.Encode(nil, bad)
	if _, err := clientConn.Write(encoded); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case err := <-runDone:
		if err == nil || !errors.Is(err, session.ErrMalformedFrame) {
			t.Fatalf("Run error = %v, want ErrMalformedFrame", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after malformed frame")
	}

	// The disconnect must still have been delivered exactly once.
	msg, ok := <-handler.Recv
	if !ok || msg.Kind != session.SocketMessageDisconnect {
		t.Fatalf("expected disconnect message, got ok=%v msg=%+v", ok, msg)
	}
}

// TestSessionConnectTimeout covers the 3-second connect-timeout check when
// no frame ever arrives. Uses a short-circuited wait via a closed pipe to
// avoid a real 3s sleep: the send side never writes, so the session must
// eventually time out; we just verify the behavior with a slow clock
// substitute is out of scope for a package-level test, so here we only
// assert an immediate ctx cancellation returns cleanly without blocking.
func TestSessionConnectTimeoutContextCancel(t *testing.T) {
	t.Parallel()

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	sess, _ := session.New(serverConn, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- sess.Run(ctx) }()

	cancel()

	select {
	case err := <-runDone:
		if err != nil && !errors.Is(err, io.EOF) {
			t.Fatalf("Run error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after ctx cancel")
	}
}
