// Package api
//
// Contracts for the three external collaborators named in the loader's
// scope: the archive Reader, the per-item Decoder ("media" transform), and
// the Device that owns the double-buffered destination memory. The core
// pipeline (internal/readpipe, internal/decodepipe, loader) depends only on
// these interfaces; concrete implementations (internal/archive,
// internal/mediaidentity, internal/cpudevice) are test/benchmark doubles or
// a CPU-only runtime default.

package api

// Reader fills one BufferTriple per call with one batch's worth of raw
// encoded (datum, target) pairs. It is expected to grow triple.Data and
// triple.Targets as needed; the loader starts them at a conservative
// capacity.
type Reader interface {
	// Read fills triple with exactly BatchSize encoded items. Meta is never
	// written by Read. A non-nil error is fatal and terminates the read
	// thread; wrap api.ErrReaderFailed.
	Read(triple *Triple) error
	// Reset repositions the reader to the beginning of the epoch.
	Reset() error
}

// TargetConversion selects how the decode pool produces an item's target.
type TargetConversion int

const (
	// CopyRaw copies the encoded target's raw bytes into the fixed-length
	// target slot (truncating or zero-padding), recording metadata. This is
	// the default, split-transform mode.
	CopyRaw TargetConversion = iota
	// ReadContents decodes datum and target jointly via Decoder.TransformJoint;
	// no metadata is produced.
	ReadContents
)

// Decoder transforms one encoded datum (and, in joint mode, its target)
// into the batch's fixed-length byte layout. A single Decoder instance is
// used by exactly one decode worker and must not be shared across workers.
type Decoder interface {
	// TargetConversion reports which transform the decode pool must invoke
	// for every item.
	TargetConversion() TargetConversion

	// TransformSplit decodes encDatum into datumBuf (exactly len(datumBuf)
	// bytes). If meta is non-nil, the decoder may write one value (e.g. an
	// original width/height or a decode status). Used when
	// TargetConversion() == CopyRaw; the caller handles the target
	// separately via CopyRaw truncation/padding.
	TransformSplit(encDatum []byte, datumBuf []byte, meta *int32) error

	// TransformJoint decodes encDatum and encTarget together into datumBuf
	// and targetBuf (each exactly their slice's length). Used when
	// TargetConversion() == ReadContents.
	TransformJoint(encDatum, encTarget []byte, datumBuf, targetBuf []byte) error
}

// Device owns two destination buffer slots and performs the host-to-device
// upload. The decode pool alternates bufferIdx between 0 and 1 across
// batches so the consumer can read the previous slot while the next is
// being filled.
type Device interface {
	// Init prepares the device. A non-nil error is fatal to the decode
	// manager: no batches will be produced, and the manager exits without
	// entering its consume loop. Loader.Next/NextInto observe this via
	// Done()/InitErr and return promptly instead of blocking.
	Init() error
	// IsCPU reports whether this device is host memory. The decode pool
	// requests pinned memory for its output buffers iff this is false.
	IsCPU() bool
	// CopyData, CopyLabels, and CopyMeta upload one batch's worth of
	// feature-major bytes into slot bufferIdx (0 or 1).
	CopyData(bufferIdx int, data []byte) error
	CopyLabels(bufferIdx int, targets []byte) error
	CopyMeta(bufferIdx int, meta []int32) error
	// CopyDataBack and CopyLabelsBack download slot bufferIdx back to host
	// memory. Test-only; exercised by the loader's conformance tests.
	CopyDataBack(bufferIdx int, dst []byte) error
	CopyLabelsBack(bufferIdx int, dst []byte) error
}

// LayoutConfig describes the fixed per-item byte layout of one batch, shared
// by the buffer pools, the decode pool, and the device.
type LayoutConfig struct {
	BatchSize      int
	DatumSize      int // element count per item
	DatumTypeSize  int // bytes per element
	TargetSize     int
	TargetTypeSize int
	// TargetConversion selects split vs. joint decoding, per Decoder above.
	TargetConversion TargetConversion
}

// DatumLen returns the fixed byte length of one decoded datum.
func (c LayoutConfig) DatumLen() int { return c.DatumSize * c.DatumTypeSize }

// TargetLen returns the fixed byte length of one decoded target.
func (c LayoutConfig) TargetLen() int { return c.TargetSize * c.TargetTypeSize }
