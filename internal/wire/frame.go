// Package wire implements the length-prefixed binary framing layer shared
// by every TCP link in hexplore: client<->platform, client<->explore, and
// platform<->explore channel traffic.
//
// Wire layout (all integers little-endian):
//
//	| total u16 | reserved u8 | flag u8 | main u16 | sub u16 | rpc u32? | payload |
//
// flag bit0 = rpc sequence present (grows the header from 8 to 12 bytes);
// flag bit3 = compressed hint, informational only -- decode never acts on
// it. total is "6 + len(payload)" without rpc, "10 + len(payload)" with it.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSizeNoRPC is the frame header size in bytes when no RPC
	// sequence is present.
	HeaderSizeNoRPC = 8

	// HeaderSizeRPC is the frame header size in bytes when an RPC
	// sequence is present.
	HeaderSizeRPC = 12

	// MaxPayloadSize is the payload ceiling checked on encode and decode.
	// Larger frames are rejected as malformed (§3 invariant). The u16
	// length field is the tighter bound in practice: Encode also rejects
	// a payload whose length field would exceed 65535.
	MaxPayloadSize = 10 << 20 // 10 MiB

	// compressHintThreshold is the payload size above which the
	// compressed flag bit is set as a hint. The bit carries no other
	// meaning in this implementation.
	compressHintThreshold = 32 << 10 // 32 KiB

	// flagRPCPresent is bit0 of the flag byte.
	flagRPCPresent = 0x1
	// flagCompressed is bit3 of the flag byte.
	flagCompressed = 0x8

	// minDeclaredLen is the smallest legal "total length" field (6 bytes
	// covers reserved+flag+main+sub with a zero-length payload).
	minDeclaredLen = 6
)

// Sentinel errors for frame decode failures.
var (
	// ErrMalformed covers header corruption and unparseable bodies.
	ErrMalformed = errors.New("wire: malformed frame")

	// ErrPayloadTooLarge is returned when a declared payload exceeds
	// MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("wire: payload exceeds maximum size")

	// ErrIncomplete indicates the buffer does not yet hold a complete
	// frame; the caller should retain what it parsed and resume on the
	// next read.
	ErrIncomplete = errors.New("wire: incomplete frame")
)

// Frame is one decoded application message.
type Frame struct {
	// Main is the main protocol code.
	Main uint16
	// Sub is the sub protocol code.
	Sub uint16
	// RPCSeq is the RPC correlator; zero means "no RPC sequence".
	RPCSeq uint32
	// Payload is the application body. Decode returns a slice backed by
	// the caller-provided buffer; callers that retain it past the next
	// read must copy it.
	Payload []byte
}

// HasRPC reports whether the frame carries a nonzero RPC sequence.
func (f Frame) HasRPC() bool { return f.RPCSeq != 0 }

// HeaderSize returns the wire header size this frame would encode to.
func (f Frame) HeaderSize() int {
	if f.HasRPC() {
		return HeaderSizeRPC
	}
	return HeaderSizeNoRPC
}

// Encode appends the wire representation of f to dst and returns the
// extended slice. It never modifies f.Payload.
func Encode(dst []byte, f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("wire: encode: %w (%d bytes)", ErrPayloadTooLarge, len(f.Payload))
	}

	headerSize := f.HeaderSize()
	total := (headerSize - 2) + len(f.Payload) // total excludes the 2-byte length field itself
	if total > 0xFFFF {
		return nil, fmt.Errorf("wire: encode: %w (%d bytes overflow the u16 length field)", ErrPayloadTooLarge, len(f.Payload))
	}

	var flag uint8
	if f.HasRPC() {
		flag |= flagRPCPresent
	}
	if len(f.Payload) > compressHintThreshold {
		flag |= flagCompressed
	}

	start := len(dst)
	dst = append(dst, make([]byte, headerSize)...)

	binary.LittleEndian.PutUint16(dst[start:], uint16(total)) //nolint:gosec // checked against 0xFFFF above
	dst[start+2] = 0                                           // reserved (crc, unused)
	dst[start+3] = flag
	binary.LittleEndian.PutUint16(dst[start+4:], f.Main)
	binary.LittleEndian.PutUint16(dst[start+6:], f.Sub)
	if f.HasRPC() {
		binary.LittleEndian.PutUint32(dst[start+8:], f.RPCSeq)
	}

	dst = append(dst, f.Payload...)
	return dst, nil
}

// PeekHeaderSize inspects the flag byte of a not-yet-fully-buffered frame
// and reports how many header bytes to expect (8 or 12). buf must hold at
// least 4 bytes.
func PeekHeaderSize(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, ErrIncomplete
	}
	if buf[3]&flagRPCPresent != 0 {
		return HeaderSizeRPC, nil
	}
	return HeaderSizeNoRPC, nil
}

// DeclaredPayloadLen reads the declared total length from buf and returns
// the payload length it implies, given headerSize (as returned by
// PeekHeaderSize). buf must hold at least 2 bytes.
func DeclaredPayloadLen(buf []byte, headerSize int) (int, error) {
	if len(buf) < 2 {
		return 0, ErrIncomplete
	}
	total := int(binary.LittleEndian.Uint16(buf))
	if total < minDeclaredLen {
		return 0, fmt.Errorf("wire: declared length %d: %w", total, ErrMalformed)
	}

	var overhead int
	if headerSize == HeaderSizeRPC {
		overhead = 10
	} else {
		overhead = 6
	}
	payloadLen := total - overhead
	if payloadLen < 0 {
		return 0, fmt.Errorf("wire: declared length %d shorter than header: %w", total, ErrMalformed)
	}
	if payloadLen > MaxPayloadSize {
		return 0, fmt.Errorf("wire: declared payload %d: %w", payloadLen, ErrPayloadTooLarge)
	}
	return payloadLen, nil
}

// Decode parses exactly one frame from the front of buf. buf must already
// contain a complete frame (header + payload); callers drive this with
// PeekHeaderSize/DeclaredPayloadLen to know how many bytes that is. It
// returns the number of bytes consumed.
func Decode(buf []byte) (Frame, int, error) {
	headerSize, err := PeekHeaderSize(buf)
	if err != nil {
		return Frame{}, 0, err
	}
	payloadLen, err := DeclaredPayloadLen(buf, headerSize)
	if err != nil {
		return Frame{}, 0, err
	}
	total := headerSize + payloadLen
	if len(buf) < total {
		return Frame{}, 0, ErrIncomplete
	}

	f := Frame{
		Main: binary.LittleEndian.Uint16(buf[4:6]),
		Sub:  binary.LittleEndian.Uint16(buf[6:8]),
	}
	if headerSize == HeaderSizeRPC {
		f.RPCSeq = binary.LittleEndian.Uint32(buf[8:12])
	}
	f.Payload = buf[headerSize:total]

	return f, total, nil
}

// SanityCheck rejects frames the session actor should kill the connection
// for, independent of whether decode itself succeeded: sub-code zero or
// >= 60000, or a declared payload size >= 2^24. The payload bound lies
// above MaxPayloadSize, so on frames produced by Decode only the sub-code
// checks can fire.
func SanityCheck(f Frame) error {
	if f.Sub == 0 || f.Sub >= 60000 {
		return fmt.Errorf("wire: sub-code %d out of range: %w", f.Sub, ErrMalformed)
	}
	if len(f.Payload) >= 1<<24 {
		return fmt.Errorf("wire: payload %d bytes: %w", len(f.Payload), ErrMalformed)
	}
	return nil
}
