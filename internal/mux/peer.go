// Package mux implements the channel multiplexer: a listening (or
// dialing) endpoint that runs one actor.Context per remote peer,
// enforces the CHANNEL_CONNECT handshake before any application frame,
// and routes inbound frames to a FrameSink keyed by peer id.
package mux

import (
	"errors"
	"fmt"
)

// ID identifies a peer within one Manager's registry. Distinct from
// session.ID: a peer survives across reconnects even though its
// underlying session is replaced each time.
type ID uint64

// ClientType tags what kind of process is on the other end of a peer
// connection, carried as the single-byte CHANNEL_CONNECT payload.
type ClientType uint8

const (
	ClientTypeUnknown ClientType = iota
	ClientTypePlatform
	ClientTypeExplore
)

func (c ClientType) String() string {
	switch c {
	case ClientTypePlatform:
		return "platform"
	case ClientTypeExplore:
		return "explore"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// State is a peer's connection lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Handshake frame coordinates (§4, wire sub-code 5032).
const (
	handshakeMain uint16 = 11
	handshakeSub  uint16 = 5032
)

// Sentinel errors for peer/manager failures.
var (
	// ErrHandshakeExpected is returned when the first frame on a newly
	// accepted peer connection is not the CHANNEL_CONNECT handshake.
	ErrHandshakeExpected = errors.New("mux: expected handshake frame")

	// ErrHeartbeatExpired marks a peer whose 30-second recv heartbeat
	// window elapsed with no traffic.
	ErrHeartbeatExpired = errors.New("mux: heartbeat expired")

	// ErrPeerNotFound indicates Send or RPCRequest targeted an id with
	// no registered peer.
	ErrPeerNotFound = errors.New("mux: peer not found")

	// ErrPeerDisconnected indicates the peer exists but its session is
	// not currently connected; sends are never buffered for it.
	ErrPeerDisconnected = errors.New("mux: peer disconnected")

	// ErrRPCTimeout indicates an RPCRequest's context expired or was
	// cancelled before a matching response arrived.
	ErrRPCTimeout = errors.New("mux: rpc timeout")
)

// errPeerDisconnected unwinds a peerActor's Context cleanly when its
// session reports disconnection; it is never surfaced to callers.
var errPeerDisconnected = errors.New("mux: session disconnected")
