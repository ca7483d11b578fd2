package wire

import "sync"

// trimStepCompactRatio is the fraction of capacity the read cursor must
// cross before Buffer compacts itself.
const trimStepCompactRatio = 2

// Buffer is a single growable byte vector with independent read and write
// cursors. It doubles as the session actor's inbound accumulation buffer
// (append on read, drain complete frames from the front) and as the
// scratch space frame encoding writes into.
type Buffer struct {
	data []byte
	r, w int
}

// NewBuffer returns a Buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return b.w - b.r }

// Unread returns the unread portion of the buffer. The slice is only
// valid until the next mutating call.
func (b *Buffer) Unread() []byte { return b.data[b.r:b.w] }

// Write appends p to the buffer, growing it if necessary. It always
// returns len(p), nil (io.Writer contract).
func (b *Buffer) Write(p []byte) (int, error) {
	b.ensure(len(p))
	n := copy(b.data[b.w:], p)
	b.w += n
	return n, nil
}

// Advance discards the first n unread bytes, as if they had been read.
func (b *Buffer) Advance(n int) {
	if n <= 0 {
		return
	}
	if n > b.Len() {
		n = b.Len()
	}
	b.r += n
	b.TrimStep()
}

// ensure grows the backing array so that at least n more bytes can be
// written without reallocating on every small append.
func (b *Buffer) ensure(n int) {
	if cap(b.data)-b.w >= n {
		return
	}
	b.TrimStep()
	if cap(b.data)-b.w >= n {
		return
	}
	needed := b.Len() + n
	newCap := max(cap(b.data)*2, needed, 64)
	grown := make([]byte, newCap)
	copy(grown, b.data[b.r:b.w])
	b.w -= b.r
	b.r = 0
	b.data = grown
}

// TrimStep compacts the buffer by shifting unread bytes to the front once
// the read cursor has crossed half of capacity. Cheap no-op otherwise.
func (b *Buffer) TrimStep() {
	if b.r == 0 {
		return
	}
	if b.r*trimStepCompactRatio < cap(b.data) {
		return
	}
	n := copy(b.data, b.data[b.r:b.w])
	b.w = n
	b.r = 0
}

// Reset empties the buffer without releasing its backing array.
func (b *Buffer) Reset() {
	b.r, b.w = 0, 0
}

// scratchPool holds reusable []byte slices for one-shot frame encodes, so
// the hot path (one Packet transport -> one socket write) does not
// allocate per frame.
var scratchPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 512)
		return &buf
	},
}

// GetScratch returns a zero-length []byte with spare capacity from the
// pool. Callers must return it with PutScratch.
func GetScratch() *[]byte {
	bufp, _ := scratchPool.Get().(*[]byte)
	*bufp = (*bufp)[:0]
	return bufp
}

// PutScratch returns a scratch buffer obtained from GetScratch.
func PutScratch(bufp *[]byte) {
	scratchPool.Put(bufp)
}
