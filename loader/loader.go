// Package loader assembles the read thread, decode pool, and device into
// the single-entry-point pipeline facade: Start, Stop, Reset, Next.
//
// Grounded on the Loader class in original_source/loader/src/loader.hpp —
// in particular its exact next()/stop() sequencing, which this file follows
// closely (the "delayed release" pattern in Next, and draining the decode
// pool while polling the read thread in Stop) because both encode subtle
// deadlock-avoidance properties that a naive rewrite would lose.
package loader

import (
	"runtime"
	"sync"

	"github.com/nimbusml/batchloader/api"
	"github.com/nimbusml/batchloader/control"
	"github.com/nimbusml/batchloader/internal/buffer"
	"github.com/nimbusml/batchloader/internal/decodepipe"
	"github.com/nimbusml/batchloader/internal/pin"
	"github.com/nimbusml/batchloader/internal/readpipe"
	"github.com/nimbusml/batchloader/internal/xlog"

	"log/slog"
)

// Config is the fixed shape of one Loader's pipeline.
type Config struct {
	Layout api.LayoutConfig
	// HardwareConcurrency overrides the worker count computation; 0 means
	// use runtime.NumCPU(). control.ConfigStore's "hardwareConcurrency" key,
	// if set before Start, takes precedence over this field.
	HardwareConcurrency int
	// PinWorkers optionally pins each decode worker's OS thread to a core.
	PinWorkers bool
}

// Loader is the minibatch pipeline facade. Not safe for concurrent Start/
// Stop/Reset calls; Next is safe to call from a single consumer goroutine
// while Start/Stop run on another only in the ordering the lifecycle
// implies (you don't call Next before Start returns or after Stop starts).
type Loader struct {
	cfg            Config
	reader         api.Reader
	device         api.Device
	decoderFactory func() api.Decoder

	log      *slog.Logger
	cfgStore *control.ConfigStore
	metrics  *control.MetricsRegistry
	debug    *control.DebugProbes

	mu          sync.Mutex
	readPool    *buffer.Pool
	decodePool  *buffer.Pool
	readThread  *readpipe.Thread
	decodeMgr   *decodepipe.Pool
	first       bool
	pinned      bool
	workerCount int
}

// New builds a Loader. decoderFactory is invoked once per decode worker at
// Start (and at every Reset, since Reset restarts the pipeline); each
// worker gets its own Decoder instance since Decoder implementations are
// not required to be safe to share.
func New(cfg Config, reader api.Reader, device api.Device, decoderFactory func() api.Decoder, log *slog.Logger) *Loader {
	if log == nil {
		log = xlog.Nop()
	}
	l := &Loader{
		cfg:            cfg,
		reader:         reader,
		device:         device,
		decoderFactory: decoderFactory,
		log:            log,
		cfgStore:       control.NewConfigStore(),
		metrics:        control.NewMetricsRegistry(),
		debug:          control.NewDebugProbes(),
	}
	// Registered once here rather than in Start, since ConfigStore's
	// listener list survives across Reset and would otherwise accumulate
	// one duplicate hook per restart.
	l.cfgStore.OnReload(l.onConfigReload)
	return l
}

// ReloadConfig merges values into the loader's ConfigStore and dispatches
// its registered reload listeners (control/config.go's SetConfig, which
// runs each OnReload listener in its own goroutine). A changed
// "hardwareConcurrency" value restarts the pipeline with the new worker
// count via onConfigReload below.
func (l *Loader) ReloadConfig(values map[string]any) {
	l.cfgStore.SetConfig(values)
}

// onConfigReload is the ConfigStore listener registered in New. It restarts
// the pipeline only when the computed worker count actually changes —
// batch size itself is not hot-reloadable, since the configured Reader was
// constructed to yield a fixed number of items per Read call.
func (l *Loader) onConfigReload() {
	newWorkers, _ := decodepipe.ComputeWorkerCount(l.cfg.Layout.BatchSize, l.hardwareConcurrency())
	l.mu.Lock()
	running := l.readThread != nil
	current := l.workerCount
	l.mu.Unlock()
	if !running || newWorkers == current {
		return
	}
	l.log.Info("config reload: restarting decode pool for new worker count", "workers", newWorkers)
	if err := l.Reset(); err != nil {
		l.log.Error("config reload: restart failed", "err", err)
	}
}

// WorkerCount reports the decode worker count computed at the last Start or
// Reset.
func (l *Loader) WorkerCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.workerCount
}

// ConfigStore returns the loader's backing ConfigStore, so callers can set
// "hardwareConcurrency" or other runtime-tunable keys before Start.
func (l *Loader) ConfigStore() *control.ConfigStore { return l.cfgStore }

// Metrics returns the loader's metrics registry.
func (l *Loader) Metrics() *control.MetricsRegistry { return l.metrics }

// Debug returns the loader's debug probe registry.
func (l *Loader) Debug() *control.DebugProbes { return l.debug }

func (l *Loader) hardwareConcurrency() int {
	if v, ok := l.cfgStore.GetSnapshot()["hardwareConcurrency"].(int); ok && v > 0 {
		return v
	}
	if l.cfg.HardwareConcurrency > 0 {
		return l.cfg.HardwareConcurrency
	}
	return runtime.NumCPU()
}

// Start allocates both buffer pools, the read thread, and the decode pool,
// and launches their goroutines. Returns an *api.Error matching
// api.ErrInvalidArgument if the layout's BatchSize is not positive.
func (l *Loader) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	batchSize := l.cfg.Layout.BatchSize
	if batchSize <= 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "loader: BatchSize must be positive")
	}
	datumLen := l.cfg.Layout.DatumLen()
	targetLen := l.cfg.Layout.TargetLen()
	metaLen := 0
	if l.cfg.Layout.TargetConversion == api.CopyRaw {
		metaLen = 2 * batchSize
	}

	hw := l.hardwareConcurrency()
	workers, itemsPerThread := decodepipe.ComputeWorkerCount(batchSize, hw)
	l.workerCount = workers

	readSeedLen := datumLen/8 + 1
	l.readPool = buffer.New(func() *api.Triple {
		return api.NewTriple(readSeedLen, targetLen, 0)
	})
	l.decodePool = buffer.New(func() *api.Triple {
		return api.NewTriple(batchSize*datumLen, batchSize*targetLen, metaLen)
	})

	l.pinned = !l.device.IsCPU()
	l.decodePool.Mutex().Lock()
	for _, tr := range l.decodePool.Slots() {
		tr.Data.SetLen(batchSize * datumLen)
		tr.Targets.SetLen(batchSize * targetLen)
		if l.pinned {
			if err := pin.LockBuffer(tr.Data.Bytes()); err != nil {
				l.log.Warn("pin decode data buffer failed", "err", err)
			}
			if err := pin.LockBuffer(tr.Targets.Bytes()); err != nil {
				l.log.Warn("pin decode targets buffer failed", "err", err)
			}
		}
	}
	l.decodePool.Mutex().Unlock()

	decoders := make([]api.Decoder, workers)
	for i := range decoders {
		decoders[i] = l.decoderFactory()
	}

	l.readThread = readpipe.New(l.readPool, l.reader, l.log)
	l.decodeMgr = decodepipe.New(decodepipe.Config{
		Layout:         l.cfg.Layout,
		WorkerCount:    workers,
		ItemsPerThread: itemsPerThread,
		PinWorkers:     l.cfg.PinWorkers,
	}, l.readPool, l.decodePool, l.device, decoders, l.log)

	l.decodeMgr.Start()
	l.readThread.Start()
	l.first = true

	l.metrics.Set("loader.workerCount", workers)
	l.metrics.Set("loader.itemsPerThread", itemsPerThread)
	control.RegisterPlatformProbes(l.debug)
	l.debug.RegisterProbe("loader.readPool.count", func() any {
		l.readPool.Mutex().Lock()
		defer l.readPool.Mutex().Unlock()
		return l.readPool.Count()
	})
	l.debug.RegisterProbe("loader.decodePool.count", func() any {
		l.decodePool.Mutex().Lock()
		defer l.decodePool.Mutex().Unlock()
		return l.decodePool.Count()
	})

	return nil
}

// Stop tears down the pipeline: stops the read thread, drains both pools so
// neither the read thread nor the decode manager can be left permanently
// parked, then stops the decode pool. Idempotent: calling Stop on an
// already-stopped (or never-started) Loader is a no-op.
func (l *Loader) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readThread == nil {
		return
	}

	l.readThread.RequestStop()
	for {
		managerExited := false
		select {
		case <-l.decodeMgr.Done():
			managerExited = true
		default:
		}
		if l.readThread.Stopped() && (managerExited || l.bothPoolsEmptyLocked()) {
			break
		}
		l.drainDecodePool()
		runtime.Gosched()
	}
	l.decodeMgr.Stop()

	if l.pinned {
		l.decodePool.Mutex().Lock()
		for _, tr := range l.decodePool.Slots() {
			pin.UnlockBuffer(tr.Data.Bytes())
			pin.UnlockBuffer(tr.Targets.Bytes())
		}
		l.decodePool.Mutex().Unlock()
	}

	l.readThread = nil
	l.decodeMgr = nil
	l.readPool = nil
	l.decodePool = nil
}

func (l *Loader) bothPoolsEmptyLocked() bool {
	l.readPool.Mutex().Lock()
	readEmpty := l.readPool.Empty()
	l.readPool.Mutex().Unlock()
	l.decodePool.Mutex().Lock()
	decodeEmpty := l.decodePool.Empty()
	l.decodePool.Mutex().Unlock()
	return readEmpty && decodeEmpty
}

// drainDecodePool frees one decode-pool slot if one is occupied, so the
// decode manager can make progress consuming the read pool even while no
// consumer is calling Next.
func (l *Loader) drainDecodePool() {
	l.decodePool.Mutex().Lock()
	if l.decodePool.Empty() {
		l.decodePool.Mutex().Unlock()
		return
	}
	l.decodePool.AdvanceReadPos()
	l.decodePool.Mutex().Unlock()
	l.decodePool.SignalNonFull()
}

// Reset stops the pipeline, repositions the reader at the start of a fresh
// epoch, and restarts.
func (l *Loader) Reset() error {
	l.Stop()
	if err := l.reader.Reset(); err != nil {
		return err
	}
	return l.Start()
}

// Next blocks until a new decoded batch is ready, releasing the previous
// one first (the "delayed release" pattern: the very first call after
// Start does not release anything, since nothing has been consumed yet).
// After Next returns, read the batch back via GetDevice(); the device
// buffer slot written is (call count - 1) % 2, counting calls since the last
// Start or Reset.
//
// If the decode manager's device.Init failed, no batch will ever be
// produced; Next returns that error rather than blocking forever (spec.md
// §7's DeviceInitFailure, §8 scenario 6).
func (l *Loader) Next() error {
	l.decodePool.Mutex().Lock()
	defer l.decodePool.Mutex().Unlock()
	if l.first {
		l.first = false
	} else {
		l.decodePool.AdvanceReadPos()
		l.decodePool.SignalNonFull()
	}
	for l.decodePool.Empty() {
		if err := l.decodeManagerDeadLocked(); err != nil {
			return err
		}
		l.decodePool.WaitForNonEmpty()
	}
	if err := l.readThread.Err(); err != nil {
		return err
	}
	return nil
}

// NextInto blocks until a new decoded batch is ready and copies it directly
// into dataBuf/targetsBuf, bypassing the device. Test/benchmark-only: it
// eagerly advances the read position on every call rather than using Next's
// delayed-release pattern, since it needs the slot's host memory intact at
// the moment of the copy.
func (l *Loader) NextInto(dataBuf, targetsBuf []byte) error {
	l.decodePool.Mutex().Lock()
	for l.decodePool.Empty() {
		if err := l.decodeManagerDeadLocked(); err != nil {
			l.decodePool.Mutex().Unlock()
			return err
		}
		l.decodePool.WaitForNonEmpty()
	}
	tr := l.decodePool.GetForRead()
	copy(dataBuf, tr.Data.Bytes())
	copy(targetsBuf, tr.Targets.Bytes())
	l.decodePool.AdvanceReadPos()
	l.decodePool.Mutex().Unlock()
	l.decodePool.SignalNonFull()
	return nil
}

// decodeManagerDeadLocked reports whether the decode manager has exited
// without producing a batch (device.Init failed), returning the error the
// caller should surface. Caller must hold l.decodePool's mutex; checked
// right before each WaitForNonEmpty call so a late SignalNonEmpty from
// decodepipe.Pool.manage's Init-failure path is always observed instead of
// leaving a waiter parked forever.
func (l *Loader) decodeManagerDeadLocked() error {
	select {
	case <-l.decodeMgr.Done():
		if l.decodeMgr.InitErr != nil {
			return api.NewError(api.ErrCodeDeviceInitFailed, "loader: device init failed").
				WithContext("cause", l.decodeMgr.InitErr.Error())
		}
		return api.NewError(api.ErrCodeInternal, "loader: decode manager stopped before producing a batch")
	default:
		return nil
	}
}

// GetReader returns the configured Reader.
func (l *Loader) GetReader() api.Reader { return l.reader }

// GetDevice returns the configured Device.
func (l *Loader) GetDevice() api.Device { return l.device }
