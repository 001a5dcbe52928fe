// Package decodepipe implements the decode pool: one manager goroutine plus
// N decode worker goroutines that fan out a batch's items over
// non-overlapping ranges, barrier-synchronize on completion, transpose the
// result to feature-major layout, and hand it to the device.
//
// Grounded directly on DecodeThreadPool in original_source/loader/src/loader.hpp
// (manager/worker roles, ticket-based start signaling, the produce/consume
// split) and, for the Go idiom of a manager owning a fixed worker set with a
// clean shutdown, on core/concurrency/executor.go's worker/stopCh pattern in
// the teacher repo. Where loader.hpp's stop() resorts to a yield-and-resignal
// spin across two unrelated mutexes (documented in spec.md §9 as a known
// belt-and-suspenders hack), this implementation instead keeps every
// "done"-style flag under the exact same sync.Mutex that guards its wait
// site, which is sufficient for sync.Cond to guarantee no lost wakeup with a
// single Broadcast/Signal — spec.md §9 explicitly permits this simplification
// ("implementers may adopt that as long as liveness holds").
package decodepipe

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/nimbusml/batchloader/api"
	"github.com/nimbusml/batchloader/internal/buffer"
	"github.com/nimbusml/batchloader/internal/pin"
)

// Config describes one batch's fixed layout and the decode pool's shape.
type Config struct {
	Layout         api.LayoutConfig
	WorkerCount    int
	ItemsPerThread int
	// PinWorkers optionally pins each decode worker's OS thread to a core.
	// Off by default; see internal/pin.
	PinWorkers bool
}

type workerRange struct {
	start, end int
}

// Pool is the decode manager plus its N workers.
type Pool struct {
	cfg      Config
	in       *buffer.Pool
	out      *buffer.Pool
	device   api.Device
	decoders []api.Decoder
	log      *slog.Logger

	ranges []workerRange

	// mu guards done/startSignaled/startedCond/endSignaled/endedCond — the
	// decode-internal synchronization state, separate from either pool's
	// own mutex, matching loader.hpp's private `_mutex`.
	mu            sync.Mutex
	startedCond   *sync.Cond
	endedCond     *sync.Cond
	startSignaled []int
	endSignaled   int
	done          bool

	// stopManager is guarded by in.Mutex() — the only site that waits on it
	// is consume()'s non-empty wait on the input pool.
	stopManager bool

	inputBuf  *api.Triple
	bufferIdx int

	workerDone    []chan struct{}
	managerDoneCh chan struct{}

	// InitErr holds the error from device.Init, if any, once managerDoneCh
	// is closed without a single batch having been produced (spec.md §7's
	// DeviceInitFailure).
	InitErr error
}

// New builds a Pool. decoders must have exactly cfg.WorkerCount entries, one
// per worker — Decoder implementations are not safe to share across
// workers, matching loader.hpp's per-thread Media::create.
func New(cfg Config, in, out *buffer.Pool, device api.Device, decoders []api.Decoder, log *slog.Logger) *Pool {
	p := &Pool{
		cfg:      cfg,
		in:       in,
		out:      out,
		device:   device,
		decoders: decoders,
		log:      log,
	}
	p.startedCond = sync.NewCond(&p.mu)
	p.endedCond = sync.NewCond(&p.mu)
	p.startSignaled = make([]int, cfg.WorkerCount)
	p.workerDone = make([]chan struct{}, cfg.WorkerCount)
	for i := range p.workerDone {
		p.workerDone[i] = make(chan struct{})
	}
	p.managerDoneCh = make(chan struct{})

	p.ranges = make([]workerRange, cfg.WorkerCount)
	for id := 0; id < cfg.WorkerCount; id++ {
		start, end := WorkerRange(id, cfg.ItemsPerThread, cfg.Layout.BatchSize)
		p.ranges[id] = workerRange{start: start, end: end}
	}
	return p
}

// Start launches the N worker goroutines and the manager goroutine.
func (p *Pool) Start() {
	for id := 0; id < p.cfg.WorkerCount; id++ {
		go p.workerLoop(id)
	}
	go p.manage()
}

// Stop terminates all workers and the manager and joins them. It does not
// finish a batch that is in flight: a worker that observes the stop flag
// before taking its start ticket exits without decoding its range, and the
// manager's barrier for that batch then never completes, so Stop does not
// return. Precondition: no batch is in flight and the output pool is not
// full (the caller — loader.Loader — drains both pools before calling Stop,
// matching loader.hpp's Loader::stop draining the decode pool before
// DecodeThreadPool::stop). Calling Stop again after it has returned is
// harmless: every channel it waits on is already closed, so it returns at
// once.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.done = true
	p.mu.Unlock()
	p.startedCond.Broadcast()
	for _, ch := range p.workerDone {
		<-ch
	}

	p.in.Mutex().Lock()
	p.stopManager = true
	p.in.Mutex().Unlock()
	p.in.SignalNonEmpty()

	<-p.managerDoneCh
}

// Done returns the channel that closes when the manager goroutine exits —
// either because Stop completed, or because device.Init failed and no
// batch will ever be produced (check InitErr to distinguish the two).
func (p *Pool) Done() <-chan struct{} { return p.managerDoneCh }

// BufferIdx reports the device buffer slot that will be targeted by the
// *next* produced batch (for tests and debug probes).
func (p *Pool) BufferIdx() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bufferIdx
}

func (p *Pool) workerLoop(id int) {
	defer close(p.workerDone[id])
	if p.cfg.PinWorkers {
		runtime.LockOSThread()
		if err := pin.PinCurrentThread(id % runtime.GOMAXPROCS(0)); err != nil && p.log != nil {
			p.log.Warn("pin decode worker failed", "worker", id, "err", err)
		}
	}
	for {
		p.mu.Lock()
		for p.startSignaled[id] == 0 && !p.done {
			p.startedCond.Wait()
		}
		if p.done {
			p.mu.Unlock()
			return
		}
		p.startSignaled[id] = 0
		p.mu.Unlock()

		p.workItems(id)

		p.mu.Lock()
		p.endSignaled++
		p.mu.Unlock()
		p.endedCond.Signal()
	}
}

// workItems decodes this worker's item range into the decode pool's current
// write triple. No locking is needed: the manager holds out.Mutex() for the
// whole barrier, and distinct workers own disjoint byte ranges of Data,
// Targets, and Meta (spec.md §3's "Decode partition").
func (p *Pool) workItems(id int) {
	wr := p.ranges[id]
	dst := p.out.GetForWrite()
	datumLen := p.cfg.Layout.DatumLen()
	targetLen := p.cfg.Layout.TargetLen()
	datumBuf := dst.Data.Bytes()
	targetBuf := dst.Targets.Bytes()
	dec := p.decoders[id]
	joint := dec.TargetConversion() == api.ReadContents
	batchSize := p.cfg.Layout.BatchSize

	for i := wr.start; i < wr.end; i++ {
		encDatum, _ := p.inputBuf.Data.GetItem(i)
		dSlot := datumBuf[i*datumLen : (i+1)*datumLen]
		tSlot := targetBuf[i*targetLen : (i+1)*targetLen]

		if joint {
			encTarget, _ := p.inputBuf.Targets.GetItem(i)
			if err := dec.TransformJoint(encDatum, encTarget, dSlot, tSlot); err != nil && p.log != nil {
				p.log.Error("joint transform failed", "worker", id, "item", i, "err", err)
			}
			continue
		}

		var meta int32
		if err := dec.TransformSplit(encDatum, dSlot, &meta); err != nil && p.log != nil {
			p.log.Error("split transform failed", "worker", id, "item", i, "err", err)
		}

		// Target handling per spec.md §7: truncate to targetLen if the
		// encoded target is longer, zero-pad if shorter, and always record
		// the original (pre-truncation) length in metadata.
		encTarget, encTargetLen := p.inputBuf.Targets.GetItem(i)
		n := copy(tSlot, encTarget)
		for j := n; j < len(tSlot); j++ {
			tSlot[j] = 0
		}
		if dst.Meta != nil {
			dst.Meta[i] = meta
			dst.Meta[batchSize+i] = int32(encTargetLen)
		}
	}
}

func (p *Pool) manage() {
	if err := p.device.Init(); err != nil {
		p.InitErr = err
		if p.log != nil {
			p.log.Error("device init failed", "err", err)
		}
		close(p.managerDoneCh)
		// No batch will ever be produced, so nothing will ever call
		// SignalNonEmpty on the output pool — wake any consumer already
		// parked in Loader.Next/NextInto so it observes Done() and
		// returns InitErr instead of blocking forever (spec.md §8
		// scenario 6).
		p.out.SignalNonEmpty()
		return
	}
	defer close(p.managerDoneCh)
	for {
		p.in.Mutex().Lock()
		stop := p.stopManager
		p.in.Mutex().Unlock()
		if stop {
			return
		}
		if !p.consume() {
			return
		}
	}
}

// consume implements spec.md §4.3.1's manager step: wait for the input pool
// to be non-empty (or stopping), run the batch barrier, then release the
// input slot. Returns false if the pool stopped while waiting.
func (p *Pool) consume() bool {
	p.in.Mutex().Lock()
	for p.in.Empty() {
		if p.stopManager {
			p.in.Mutex().Unlock()
			return false
		}
		p.in.WaitForNonEmpty()
	}
	p.inputBuf = p.in.GetForRead()
	// The input slot stays counted (and so untouched by the read thread)
	// until AdvanceReadPos below, so the input mutex need not be held across
	// produce. Holding it there would block the read thread and any caller
	// that locks the output pool before the input pool (Loader.Next).
	p.in.Mutex().Unlock()
	p.produce()
	p.in.Mutex().Lock()
	p.in.AdvanceReadPos()
	p.in.Mutex().Unlock()
	p.in.SignalNonFull()
	return true
}

// produce implements the batch barrier of spec.md §4.3.2: release workers,
// wait for the barrier, transpose, upload to the device, and advance the
// output pool's write position — all under the output pool's mutex.
func (p *Pool) produce() {
	p.out.Mutex().Lock()
	for p.out.Full() {
		p.out.WaitForNonFull()
	}

	dst := p.out.GetForWrite()
	batchSize := p.cfg.Layout.BatchSize
	dst.Data.SetLen(batchSize * p.cfg.Layout.DatumLen())
	dst.Targets.SetLen(batchSize * p.cfg.Layout.TargetLen())

	p.mu.Lock()
	for i := range p.startSignaled {
		p.startSignaled[i] = 1
	}
	p.mu.Unlock()
	p.startedCond.Broadcast()

	p.mu.Lock()
	for p.endSignaled < len(p.startSignaled) {
		p.endedCond.Wait()
	}
	p.endSignaled = 0
	p.mu.Unlock()

	buffer.Transpose(dst.Data.Bytes(), batchSize, p.cfg.Layout.DatumLen(), p.cfg.Layout.DatumTypeSize)
	buffer.Transpose(dst.Targets.Bytes(), batchSize, p.cfg.Layout.TargetLen(), p.cfg.Layout.TargetTypeSize)

	if err := p.device.CopyData(p.bufferIdx, dst.Data.Bytes()); err != nil && p.log != nil {
		p.log.Error("device copy data failed", "bufferIdx", p.bufferIdx, "err", err)
	}
	if err := p.device.CopyLabels(p.bufferIdx, dst.Targets.Bytes()); err != nil && p.log != nil {
		p.log.Error("device copy labels failed", "bufferIdx", p.bufferIdx, "err", err)
	}
	if dst.Meta != nil {
		if err := p.device.CopyMeta(p.bufferIdx, dst.Meta); err != nil && p.log != nil {
			p.log.Error("device copy meta failed", "bufferIdx", p.bufferIdx, "err", err)
		}
	}
	p.bufferIdx = 1 - p.bufferIdx

	p.out.AdvanceWritePos()
	p.out.Mutex().Unlock()
	p.out.SignalNonEmpty()
}
