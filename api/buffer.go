// Package api
//
// Data model shared between the archive reader, the decode pool, and the
// device: the Buffer/Triple layout that flows through both buffer pools.

package api

// Buffer is a contiguous, growable byte region. It serves two shapes used
// by the pipeline:
//
//   - Variable-length item-indexed: the read pool's Data/Targets buffers,
//     filled one item at a time via AppendItem and read back via GetItem.
//   - Fixed-length flat: the decode pool's Data/Targets buffers, addressed
//     directly by byte offset (datumLen*i) via Bytes().
//
// A single Buffer never mixes the two usages within one Reset cycle.
type Buffer struct {
	data    []byte
	offsets []int // len(items)+1 prefix sums; empty until AppendItem is used
}

// NewBuffer allocates a Buffer with the given initial byte capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Reset clears length and item offsets but retains underlying capacity.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.offsets = b.offsets[:0]
}

// Bytes returns the buffer's current contents.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes currently written.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the buffer's current byte capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// Grow ensures the buffer can hold at least n bytes without reallocating on
// the next write, copying existing contents forward. Mirrors the reader's
// contract of resizing the read pool's buffers as it demands more room.
func (b *Buffer) Grow(n int) {
	if cap(b.data) >= n {
		return
	}
	nd := make([]byte, len(b.data), n)
	copy(nd, b.data)
	b.data = nd
}

// SetLen extends the buffer to at least n bytes (a longer buffer keeps its
// length), zero-fills its whole contents, and returns them. Used to
// materialize a fixed-size flat buffer (decode pool output) ahead of
// in-place writes.
func (b *Buffer) SetLen(n int) []byte {
	b.Grow(n)
	if len(b.data) < n {
		b.data = b.data[:n]
	}
	for i := range b.data {
		b.data[i] = 0
	}
	return b.data
}

// AppendItem appends one variable-length item and records its offset,
// growing the backing array as needed. Used by Reader implementations.
func (b *Buffer) AppendItem(p []byte) {
	if len(b.offsets) == 0 {
		b.offsets = append(b.offsets, 0)
	}
	b.Grow(len(b.data) + len(p))
	b.data = append(b.data, p...)
	b.offsets = append(b.offsets, len(b.data))
}

// GetItem returns the byte slice and length of the i-th item appended via
// AppendItem. The returned slice aliases the buffer and must not be
// retained past the next Reset.
func (b *Buffer) GetItem(i int) ([]byte, int) {
	if i < 0 || i+1 >= len(b.offsets) {
		return nil, 0
	}
	start, end := b.offsets[i], b.offsets[i+1]
	return b.data[start:end], end - start
}

// ItemCount reports how many items have been appended since the last Reset.
func (b *Buffer) ItemCount() int {
	if len(b.offsets) == 0 {
		return 0
	}
	return len(b.offsets) - 1
}

// Triple is the (data, targets, meta) tuple exchanged through a BufferPool
// as a unit. Meta holds 2*B int32s for pools that carry metadata: the first
// B entries are per-item decoder metadata, the second B entries are
// per-item original (pre-truncation) target lengths. Meta is nil for pools
// that don't carry metadata (the read pool, and the decode pool in joint
// ReadContents mode).
type Triple struct {
	Data    *Buffer
	Targets *Buffer
	Meta    []int32
}

// NewTriple allocates a Triple with the given initial data/targets capacity.
// metaLen is the number of int32 meta slots (0 for none).
func NewTriple(dataCap, targetsCap, metaLen int) *Triple {
	t := &Triple{
		Data:    NewBuffer(dataCap),
		Targets: NewBuffer(targetsCap),
	}
	if metaLen > 0 {
		t.Meta = make([]int32, metaLen)
	}
	return t
}

// Reset clears Data/Targets contents (retaining capacity) and zeroes Meta.
func (t *Triple) Reset() {
	t.Data.Reset()
	t.Targets.Reset()
	for i := range t.Meta {
		t.Meta[i] = 0
	}
}
