package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lowtide/hexplore/internal/wire"
)

// Sentinel errors for Session failures.
var (
	// ErrSendOnClosed indicates an attempt to enqueue a transport on a
	// session that has already shut down.
	ErrSendOnClosed = errors.New("session: send on closed session")

	// ErrTimedOut indicates the connect-timeout check fired before the
	// first complete frame arrived.
	ErrTimedOut = errors.New("session: connect timeout")

	// ErrMalformedFrame covers header corruption, oversized payloads, and
	// the additional sanity checks in wire.SanityCheck.
	ErrMalformedFrame = errors.New("session: malformed frame")
)

// connectTimeout is how long a session waits for the first complete
// frame before it gives up (§4.2).
const connectTimeout = 3 * time.Second

// outboundQueueDepth is the buffer size of a session's outbound transport
// and inbound event channels. Deep enough to absorb a burst without the
// writer goroutine stalling the caller, shallow enough that a stuck peer
// is noticed via dropped-frame logging rather than unbounded memory use.
const outboundQueueDepth = 256

// idGen allocates process-unique session ids.
var idGen atomic.Uint64

// NextID returns the next process-unique session id.
func NextID() ID { return ID(idGen.Add(1)) }

// Session is one TCP connection's I/O actor. It is constructed once per
// accepted or dialed connection and never moved across goroutines after
// Run starts.
type Session struct {
	id         ID
	conn       net.Conn
	peerAddr   string
	logger     *slog.Logger
	inbound    *wire.Buffer
	outboundCh chan Transport
	inboundCh  chan SocketMessage
	done       chan struct{}
	closeOnce  sync.Once

	proxy       atomic.Pointer[Proxy]
	packetCount atomic.Uint64
	closed      atomic.Bool
}

// New constructs a Session around an established connection. The returned
// Handler is for the caller to drive; the Session keeps the opposite
// ends of both channels.
func New(conn net.Conn, logger *slog.Logger) (*Session, Handler) {
	id := NextID()
	s := &Session{
		id:         id,
		conn:       conn,
		peerAddr:   conn.RemoteAddr().String(),
		logger:     logger.With(slog.Uint64("session_id", uint64(id)), slog.String("peer", conn.RemoteAddr().String())),
		inbound:    wire.NewBuffer(4096),
		outboundCh: make(chan Transport, outboundQueueDepth),
		inboundCh:  make(chan SocketMessage, outboundQueueDepth),
		done:       make(chan struct{}),
	}

	handler := Handler{
		Send: &SendHandler{ch: s.outboundCh, done: s.done},
		Recv: s.inboundCh,
	}
	return s, handler
}

// ID returns the session's process-unique id.
func (s *Session) ID() ID { return s.id }

// PeerAddr returns the remote address string captured at construction.
func (s *Session) PeerAddr() string { return s.peerAddr }

// PacketCount returns the number of frames received so far.
func (s *Session) PacketCount() uint64 { return s.packetCount.Load() }

// Run drives the session until the connection closes, a shutdown signal
// fires, or an unrecoverable error occurs. It guarantees exactly one
// SocketMessageDisconnect delivery to the bound inbound channel.
func (s *Session) Run(ctx context.Context) error {
	defer s.emitDisconnect()

	readCh := make(chan readResult, 1)
	go s.readOnce(readCh)

	if err := s.awaitFirstFrame(ctx, readCh); err != nil {
		if errors.Is(err, errDisconnectRequested) {
			return nil
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case res, ok := <-readCh:
			if !ok {
				return nil
			}
			if res.err != nil {
				return s.wrapErr(res.err)
			}
			if err := s.drainFrames(); err != nil {
				return s.wrapErr(err)
			}
			go s.readOnce(readCh)

		case t, ok := <-s.outboundCh:
			if !ok {
				return nil
			}
			if err := s.handleTransport(t); err != nil {
				if errors.Is(err, errDisconnectRequested) {
					return nil
				}
				return s.wrapErr(err)
			}
		}
	}
}

// errDisconnectRequested unwinds Run cleanly after a TransportDisconnect.
var errDisconnectRequested = errors.New("session: disconnect requested")

type readResult struct {
	err error
}

// readOnce performs one blocking read and appends whatever arrived to
// the inbound buffer, then reports completion on readCh. Run relaunches
// it after each processed result, keeping exactly one outstanding read so
// the main select can also watch the outbound queue and ctx.
func (s *Session) readOnce(readCh chan<- readResult) {
	tmp := make([]byte, 8192)
	n, err := s.conn.Read(tmp)
	if n > 0 {
		if _, werr := s.inbound.Write(tmp[:n]); werr != nil {
			readCh <- readResult{err: werr}
			return
		}
	}
	readCh <- readResult{err: err}
}

// awaitFirstFrame blocks until a complete frame has been buffered and
// drained, or connectTimeout elapses first. Outbound transports queued
// meanwhile are written, so a side that speaks first (a mux handshake)
// is not held back.
func (s *Session) awaitFirstFrame(ctx context.Context, readCh chan readResult) error {
	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			s.emitDisconnect()
			return ErrTimedOut
		case res, ok := <-readCh:
			if !ok {
				return nil
			}
			if res.err != nil {
				return s.wrapErr(res.err)
			}
			if err := s.drainFrames(); err != nil {
				return s.wrapErr(err)
			}
			if s.packetCount.Load() > 0 {
				go s.readOnce(readCh)
				return nil
			}
			go s.readOnce(readCh)
		case t := <-s.outboundCh:
			if err := s.handleTransport(t); err != nil {
				if errors.Is(err, errDisconnectRequested) {
					return err
				}
				return s.wrapErr(err)
			}
		}
	}
}

// drainFrames decodes and delivers every complete frame currently
// buffered, leaving a partially received frame (header-only or
// header+partial-payload) for the next read.
func (s *Session) drainFrames() error {
	for {
		buf := s.inbound.Unread()
		headerSize, err := wire.PeekHeaderSize(buf)
		if err != nil {
			return nil // not enough bytes for a header yet
		}
		payloadLen, err := wire.DeclaredPayloadLen(buf, headerSize)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		total := headerSize + payloadLen
		if len(buf) < total {
			return nil // header parsed, payload still incoming
		}

		f, n, err := wire.Decode(buf)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if err := wire.SanityCheck(f); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}

		owned := wire.Frame{Main: f.Main, Sub: f.Sub, RPCSeq: f.RPCSeq, Payload: append([]byte(nil), f.Payload...)}
		s.packetCount.Add(1)
		s.deliver(owned)
		s.inbound.Advance(n)
	}
}

// deliver routes a decoded frame either through an installed proxy
// (SessionMessage) or the session's own inbound sink (Message).
func (s *Session) deliver(f wire.Frame) {
	if p := s.proxy.Load(); p != nil {
		if err := (*p).Deliver(s.id, f); err != nil {
			s.logger.Warn("proxy delivery failed", slog.String("error", err.Error()))
		}
		return
	}
	select {
	case s.inboundCh <- SocketMessage{Kind: SocketMessageFrame, Frame: f}:
	default:
		s.logger.Warn("inbound channel full, dropping frame",
			slog.Uint64("main", uint64(f.Main)), slog.Uint64("sub", uint64(f.Sub)))
	}
}

// handleTransport processes one dequeued outbound instruction.
func (s *Session) handleTransport(t Transport) error {
	switch t.Kind {
	case TransportPacket:
		return s.writeFrame(t.Frame)

	case TransportHeartbeat:
		return s.writeFrame(wire.Frame{Main: 101, Sub: 1, Payload: heartbeatPayload()})

	case TransportInstallProxy:
		s.proxy.Store(&t.Proxy)
		return nil

	case TransportDisconnect:
		return errDisconnectRequested

	default:
		return fmt.Errorf("session: unknown transport kind %d", t.Kind)
	}
}

func (s *Session) writeFrame(f wire.Frame) error {
	bufp := wire.GetScratch()
	defer wire.PutScratch(bufp)

	encoded, err := wire.Encode(*bufp, f)
	if err != nil {
		return err
	}

	if _, err := s.conn.Write(encoded); err != nil {
		return err
	}
	return nil
}

// heartbeatPayload is an 8-byte little-endian unix-nano timestamp.
func heartbeatPayload() []byte {
	now := time.Now().UnixNano()
	b := make([]byte, 8)
	for i := range 8 {
		b[i] = byte(now >> (8 * i))
	}
	return b
}

func (s *Session) wrapErr(err error) error {
	s.emitDisconnect()
	if err == nil {
		return nil
	}
	return fmt.Errorf("session %d: %w", s.id, err)
}

func (s *Session) emitDisconnect() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		_ = s.conn.Close()
		s.inboundCh <- SocketMessage{Kind: SocketMessageDisconnect}
		close(s.inboundCh)
	})
}
