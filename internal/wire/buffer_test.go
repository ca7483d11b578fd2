package wire_test

import (
	"bytes"
	"testing"

	"github.com/lowtide/hexplore/internal/wire"
)

func TestBufferWriteAdvanceRoundTrip(t *testing.T) {
	t.Parallel()

	b := wire.NewBuffer(4)
	if _, err := b.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := b.Write([]byte(" world")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := string(b.Unread()); got != "hello world" {
		t.Fatalf("unread = %q, want %q", got, "hello world")
	}

	b.Advance(6)
	if got := string(b.Unread()); got != "world" {
		t.Fatalf("unread after advance = %q, want %q", got, "world")
	}
}

func TestBufferTrimStepCompactsPastHalfway(t *testing.T) {
	t.Parallel()

	b := wire.NewBuffer(16)
	if _, err := b.Write(bytes.Repeat([]byte{1}, 10)); err != nil {
		t.Fatalf("write: %v", err)
	}
	b.Advance(9) // crosses cap/2 == 8

	before := b.Len()
	b.TrimStep()
	if b.Len() != before {
		t.Fatalf("TrimStep changed unread length: %d vs %d", b.Len(), before)
	}
	if !bytes.Equal(b.Unread(), []byte{1}) {
		t.Fatalf("unread = %x, want single byte", b.Unread())
	}
}

func TestBufferGrowsOnDemand(t *testing.T) {
	t.Parallel()

	b := wire.NewBuffer(2)
	payload := bytes.Repeat([]byte{9}, 1000)
	if _, err := b.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(b.Unread(), payload) {
		t.Fatalf("buffer did not preserve contents after growth")
	}
}

func TestScratchPoolRoundTrip(t *testing.T) {
	t.Parallel()

	bufp := wire.GetScratch()
	*bufp = append(*bufp, 1, 2, 3)
	wire.PutScratch(bufp)

	bufp2 := wire.GetScratch()
	if len(*bufp2) != 0 {
		t.Fatalf("scratch from pool should be reset to zero length, got %d", len(*bufp2))
	}
	wire.PutScratch(bufp2)
}
