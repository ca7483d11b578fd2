// Package session implements the per-connection duplex actor: one
// goroutine per TCP connection that reads wire frames, writes queued
// outbound transports, and emits socket events to whichever handler is
// bound to it.
package session

import (
	"fmt"

	"github.com/lowtide/hexplore/internal/wire"
)

// ID is a process-unique, monotonically increasing session identifier.
type ID uint64

// TransportKind tags the variant of an outbound Transport.
type TransportKind uint8

const (
	// TransportPacket carries an application frame to encode and write.
	TransportPacket TransportKind = iota + 1

	// TransportHeartbeat asks the session to emit a timestamped heartbeat
	// frame, which the session itself writes as main=101, sub=1 (HEART).
	TransportHeartbeat

	// TransportDisconnect asks the session to close the connection after
	// draining what is already queued.
	TransportDisconnect

	// TransportInstallProxy installs a Proxy on the session. Once
	// installed, every subsequently received frame is passed with the
	// session id to the proxy's Deliver instead of the session's own
	// inbound sink. This is the one place the runtime
	// needs to move "who consumes this session" without moving the
	// session's own goroutine (see design notes on cyclic ownership and
	// the ad-hoc template transport).
	TransportInstallProxy
)

// Proxy receives frames on behalf of a session that has been handed off
// to a different logical consumer (e.g. a short-lived handshake context
// handing a client connection to a long-lived exploration context).
type Proxy interface {
	Deliver(id ID, f wire.Frame) error
}

// Transport is an outbound instruction for a Session's write side.
type Transport struct {
	Kind  TransportKind
	Frame wire.Frame // TransportPacket
	Proxy Proxy      // TransportInstallProxy
}

// PacketTransport builds a TransportPacket instruction.
func PacketTransport(main, sub uint16, rpcSeq uint32, payload []byte) Transport {
	return Transport{Kind: TransportPacket, Frame: wire.Frame{Main: main, Sub: sub, RPCSeq: rpcSeq, Payload: payload}}
}

// HeartbeatTransport builds a TransportHeartbeat instruction.
func HeartbeatTransport() Transport { return Transport{Kind: TransportHeartbeat} }

// DisconnectTransport builds a TransportDisconnect instruction.
func DisconnectTransport() Transport { return Transport{Kind: TransportDisconnect} }

// InstallProxyTransport builds a TransportInstallProxy instruction.
func InstallProxyTransport(p Proxy) Transport {
	return Transport{Kind: TransportInstallProxy, Proxy: p}
}

// SocketMessageKind tags the variant of an inbound SocketMessage.
type SocketMessageKind uint8

const (
	// SocketMessageFrame is a plain inbound application frame, delivered
	// when no proxy is installed on the session.
	SocketMessageFrame SocketMessageKind = iota + 1

	// SocketMessageSession tags an inbound frame carrying its originating
	// session id. Session never emits it: with a Proxy installed, frames
	// go to Proxy.Deliver together with the session id.
	SocketMessageSession

	// SocketMessageDisconnect is emitted exactly once per session
	// lifetime, regardless of which side or what error caused the close.
	SocketMessageDisconnect
)

// SocketMessage is an inbound event surfaced by a Session to its bound
// handler (or proxy).
type SocketMessage struct {
	Kind      SocketMessageKind
	Frame     wire.Frame
	SessionID ID
}

// String implements fmt.Stringer for log lines.
func (k SocketMessageKind) String() string {
	switch k {
	case SocketMessageFrame:
		return "Frame"
	case SocketMessageSession:
		return "Session"
	case SocketMessageDisconnect:
		return "Disconnect"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}
