package decodepipe

import (
	"sync"
	"testing"
	"time"

	"github.com/nimbusml/batchloader/api"
	"github.com/nimbusml/batchloader/internal/buffer"
)

// identityDecoder copies the encoded datum verbatim (truncated/padded to
// datumLen) and reports a fixed conversion mode. Grounded on the
// split/joint transform contract in spec.md §6, kept minimal for this
// package's own tests rather than importing the real decoder implementation.
type identityDecoder struct {
	conv api.TargetConversion
}

func (d *identityDecoder) TargetConversion() api.TargetConversion { return d.conv }

func (d *identityDecoder) TransformSplit(encDatum []byte, datumBuf []byte, meta *int32) error {
	n := copy(datumBuf, encDatum)
	*meta = int32(n)
	return nil
}

func (d *identityDecoder) TransformJoint(encDatum, encTarget []byte, datumBuf, targetBuf []byte) error {
	copy(datumBuf, encDatum)
	copy(targetBuf, encTarget)
	return nil
}

// captureDevice records every buffer handed to it, keyed by slot, for
// assertions. Not concurrency-safe beyond what the decode pool's own
// barrier already guarantees (exactly one producer at a time).
type captureDevice struct {
	mu     sync.Mutex
	data   [2][]byte
	labels [2][]byte
	meta   [2][]int32
	copies int
}

func (d *captureDevice) Init() error  { return nil }
func (d *captureDevice) IsCPU() bool  { return true }
func (d *captureDevice) CopyData(idx int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[idx] = append([]byte(nil), data...)
	d.copies++
	return nil
}
func (d *captureDevice) CopyLabels(idx int, targets []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.labels[idx] = append([]byte(nil), targets...)
	return nil
}
func (d *captureDevice) CopyMeta(idx int, meta []int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.meta[idx] = append([]int32(nil), meta...)
	return nil
}
func (d *captureDevice) CopyDataBack(idx int, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(dst, d.data[idx])
	return nil
}
func (d *captureDevice) CopyLabelsBack(idx int, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(dst, d.labels[idx])
	return nil
}

func newFilledTriple(batchSize int, fill func(i int) (datum, target []byte)) *api.Triple {
	tr := api.NewTriple(batchSize*16, batchSize*16, 0)
	for i := 0; i < batchSize; i++ {
		datum, target := fill(i)
		tr.Data.AppendItem(datum)
		tr.Targets.AppendItem(target)
	}
	return tr
}

// TestPoolProducesTransposedBatches drives a full manager+worker barrier
// cycle end to end and checks the resulting device upload. With one byte per
// item the feature-major layout equals the item-major one, so this checks
// the barrier and upload path; the byte reshuffle itself is checked by
// TestPoolRecordsOriginalTargetLengthOnTruncation and the buffer package's
// Transpose tests.
func TestPoolProducesTransposedBatches(t *testing.T) {
	const batchSize = 3
	const datumLen = 1

	layout := api.LayoutConfig{
		BatchSize:      batchSize,
		DatumSize:      datumLen,
		DatumTypeSize:  1,
		TargetSize:     1,
		TargetTypeSize: 1,
	}
	workers, itemsPerThread := ComputeWorkerCount(batchSize, 2)

	in := buffer.New(func() *api.Triple { return api.NewTriple(batchSize*16, batchSize*16, 0) })
	out := buffer.New(func() *api.Triple { return api.NewTriple(batchSize*datumLen, batchSize*layout.TargetLen(), 0) })

	decoders := make([]api.Decoder, workers)
	for i := range decoders {
		decoders[i] = &identityDecoder{conv: api.CopyRaw}
	}
	device := &captureDevice{}

	cfg := Config{Layout: layout, WorkerCount: workers, ItemsPerThread: itemsPerThread}
	pool := New(cfg, in, out, device, decoders, nil)
	pool.Start()

	values := [][]byte{{0x01}, {0x02}, {0x03}}
	targets := [][]byte{{0x04}, {0x05}, {0x00}}
	tr := newFilledTriple(batchSize, func(i int) ([]byte, []byte) { return values[i], targets[i] })

	in.Mutex().Lock()
	*in.GetForWrite() = *tr
	in.AdvanceWritePos()
	in.Mutex().Unlock()
	in.SignalNonEmpty()

	deadline := time.After(5 * time.Second)
	for {
		out.Mutex().Lock()
		ready := !out.Empty()
		out.Mutex().Unlock()
		if ready {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for decode pool to produce a batch")
		case <-time.After(time.Millisecond):
		}
	}

	pool.Stop()

	device.mu.Lock()
	got := device.data[0]
	gotTargets := device.labels[0]
	device.mu.Unlock()

	wantData := []byte{0x01, 0x02, 0x03}
	wantTargets := []byte{0x04, 0x05, 0x00}
	if string(got) != string(wantData) {
		t.Fatalf("data upload = %v, want %v", got, wantData)
	}
	if string(gotTargets) != string(wantTargets) {
		t.Fatalf("targets upload = %v, want %v", gotTargets, wantTargets)
	}
}

// TestPoolRecordsOriginalTargetLengthOnTruncation drives a single batch
// through a metadata-carrying pool (split mode, metaLen = 2*batchSize) with
// targets of varying length relative to the fixed target slot, and checks
// meta[batchSize+i] holds each item's original (pre-truncation) encoded
// target length, per spec.md §7's target-handling rule and §8 scenario 4.
func TestPoolRecordsOriginalTargetLengthOnTruncation(t *testing.T) {
	const batchSize = 3
	const datumLen = 1
	const targetLen = 2

	layout := api.LayoutConfig{
		BatchSize:      batchSize,
		DatumSize:      datumLen,
		DatumTypeSize:  1,
		TargetSize:     targetLen,
		TargetTypeSize: 1,
	}
	workers, itemsPerThread := ComputeWorkerCount(batchSize, 2)

	in := buffer.New(func() *api.Triple { return api.NewTriple(batchSize*16, batchSize*16, 0) })
	out := buffer.New(func() *api.Triple {
		return api.NewTriple(batchSize*datumLen, batchSize*targetLen, 2*batchSize)
	})

	decoders := make([]api.Decoder, workers)
	for i := range decoders {
		decoders[i] = &identityDecoder{conv: api.CopyRaw}
	}
	device := &captureDevice{}

	cfg := Config{Layout: layout, WorkerCount: workers, ItemsPerThread: itemsPerThread}
	pool := New(cfg, in, out, device, decoders, nil)
	pool.Start()

	// item 0's target exactly fills the slot; item 1's is longer than the
	// slot (truncated); item 2's is shorter (zero-padded).
	datum := [][]byte{{0x01}, {0x02}, {0x03}}
	targets := [][]byte{
		{0x10, 0x11},
		{0x20, 0x21, 0x22, 0x23, 0x24},
		{0x30},
	}
	wantOrigLen := []int32{2, 5, 1}

	tr := newFilledTriple(batchSize, func(i int) ([]byte, []byte) { return datum[i], targets[i] })

	in.Mutex().Lock()
	*in.GetForWrite() = *tr
	in.AdvanceWritePos()
	in.Mutex().Unlock()
	in.SignalNonEmpty()

	deadline := time.After(5 * time.Second)
	for {
		out.Mutex().Lock()
		ready := !out.Empty()
		out.Mutex().Unlock()
		if ready {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for decode pool to produce a batch")
		case <-time.After(time.Millisecond):
		}
	}

	pool.Stop()

	device.mu.Lock()
	gotMeta := device.meta[0]
	gotTargets := device.labels[0]
	device.mu.Unlock()

	if gotMeta == nil {
		t.Fatal("device received no metadata; expected 2*batchSize entries")
	}
	for i := 0; i < batchSize; i++ {
		if gotMeta[batchSize+i] != wantOrigLen[i] {
			t.Errorf("meta[%d] (original target length for item %d) = %d, want %d",
				batchSize+i, i, gotMeta[batchSize+i], wantOrigLen[i])
		}
	}

	// Feature-major after Transpose: byte i*targetLen+f moves to f*batchSize+i.
	wantTargets := []byte{0x10, 0x20, 0x30, 0x11, 0x21, 0x00}
	if string(gotTargets) != string(wantTargets) {
		t.Fatalf("targets upload = %v, want %v (truncate/zero-pad then transpose)", gotTargets, wantTargets)
	}
}

func TestPoolStopIdleWithoutDeadlock(t *testing.T) {
	const batchSize = 4
	layout := api.LayoutConfig{BatchSize: batchSize, DatumSize: 1, DatumTypeSize: 1, TargetSize: 1, TargetTypeSize: 1}
	workers, itemsPerThread := ComputeWorkerCount(batchSize, 4)

	in := buffer.New(func() *api.Triple { return api.NewTriple(batchSize*16, batchSize*16, 0) })
	out := buffer.New(func() *api.Triple { return api.NewTriple(batchSize, batchSize, 0) })
	decoders := make([]api.Decoder, workers)
	for i := range decoders {
		decoders[i] = &identityDecoder{conv: api.CopyRaw}
	}
	device := &captureDevice{}
	pool := New(Config{Layout: layout, WorkerCount: workers, ItemsPerThread: itemsPerThread}, in, out, device, decoders, nil)
	pool.Start()

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop deadlocked with an idle decode pool")
	}
}
