package wire_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/lowtide/hexplore/internal/wire"
)

// TestEncodeDecodeRoundTrip exercises invariant 1: decoding returns fields
// bit-identical to the input for all (code, sub_code, rpc_seq, payload).
func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    wire.Frame
	}{
		{
			name: "no rpc, empty payload",
			f:    wire.Frame{Main: 11, Sub: 5032},
		},
		{
			name: "no rpc, small payload",
			f:    wire.Frame{Main: 101, Sub: 1, Payload: []byte("heart")},
		},
		{
			name: "rpc present",
			f:    wire.Frame{Main: 11, Sub: 1022, RPCSeq: 7, Payload: []byte{0xAB}},
		},
		{
			name: "large payload sets compress hint but decode ignores it",
			f:    wire.Frame{Main: 200, Sub: 9, RPCSeq: 1, Payload: bytes.Repeat([]byte{0x42}, 40<<10)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded, err := wire.Encode(nil, tt.f)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			got, n, err := wire.Decode(encoded)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if n != len(encoded) {
				t.Fatalf("decode consumed %d bytes, want %d", n, len(encoded))
			}
			if got.Main != tt.f.Main || got.Sub != tt.f.Sub || got.RPCSeq != tt.f.RPCSeq {
				t.Fatalf("decoded header = %+v, want main=%d sub=%d rpc=%d", got, tt.f.Main, tt.f.Sub, tt.f.RPCSeq)
			}
			if !bytes.Equal(got.Payload, tt.f.Payload) {
				t.Fatalf("decoded payload = %x, want %x", got.Payload, tt.f.Payload)
			}
			if got.HeaderSize() != tt.f.HeaderSize() {
				t.Fatalf("header size = %d, want %d", got.HeaderSize(), tt.f.HeaderSize())
			}
		})
	}
}

// TestEncodeExactBytes is scenario 1 from §8: a known frame must encode to
// a known byte sequence.
func TestEncodeExactBytes(t *testing.T) {
	t.Parallel()

	f := wire.Frame{Main: 11, Sub: 1022, RPCSeq: 7, Payload: []byte{0xAB}}
	got, err := wire.Encode(nil, f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := []byte{0x0B, 0x00, 0x00, 0x01, 0x0B, 0x00, 0xFE, 0x03, 0x07, 0x00, 0x00, 0x00, 0xAB}
	if !bytes.Equal(got, want) {
		t.Fatalf("encoded = % x, want % x", got, want)
	}

	decoded, _, err := wire.Decode(got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.HeaderSize() != 12 {
		t.Fatalf("header size = %d, want 12", decoded.HeaderSize())
	}
}

func TestDecodeIncomplete(t *testing.T) {
	t.Parallel()

	f := wire.Frame{Main: 1, Sub: 1, Payload: []byte("hello world")}
	encoded, err := wire.Encode(nil, f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	for cut := 0; cut < len(encoded); cut++ {
		_, _, err := wire.Decode(encoded[:cut])
		if !errors.Is(err, wire.ErrIncomplete) {
			t.Fatalf("decode(%d bytes) err = %v, want ErrIncomplete", cut, err)
		}
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	f := wire.Frame{Main: 1, Sub: 1, Payload: make([]byte, wire.MaxPayloadSize+1)}
	_, err := wire.Encode(nil, f)
	if !errors.Is(err, wire.ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestSanityCheckRejectsBadSubCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    wire.Frame
	}{
		{name: "zero sub code", f: wire.Frame{Main: 1, Sub: 0}},
		{name: "sub code at ceiling", f: wire.Frame{Main: 1, Sub: 60000}},
		{name: "oversized payload", f: wire.Frame{Main: 1, Sub: 1, Payload: make([]byte, 1<<24)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := wire.SanityCheck(tt.f); !errors.Is(err, wire.ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestSanityCheckAcceptsValidFrame(t *testing.T) {
	t.Parallel()
	if err := wire.SanityCheck(wire.Frame{Main: 11, Sub: 5032}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
