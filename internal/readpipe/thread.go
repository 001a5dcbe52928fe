// Package readpipe implements the single-producer ReadThread: it pulls
// encoded batches from an api.Reader and pushes them into the read buffer
// pool that the decode pool consumes from.
//
// Grounded on ReadThread in original_source/loader/src/loader.hpp, which
// itself is a trivial one-worker specialization of the same ThreadPool base
// DecodeThreadPool uses. As with internal/decodepipe, the stop sequence is
// simplified from loader.hpp's cross-mutex yield/signal spin to a single
// done flag guarded by exactly the mutex its one wait site uses (the output
// pool's own mutex) — sync.Cond then guarantees no lost wakeup with one
// Signal, per spec.md §9's sanctioned simplification.
package readpipe

import (
	"log/slog"

	"github.com/nimbusml/batchloader/api"
	"github.com/nimbusml/batchloader/internal/buffer"
)

// State is the ReadThread's externally observable lifecycle, per spec.md
// §4.2's state machine.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

// Thread is the read pipeline's single producer goroutine.
type Thread struct {
	out    *buffer.Pool
	reader api.Reader
	log    *slog.Logger

	done    bool // guarded by out.Mutex()
	stopped chan struct{}
	lastErr error // guarded by out.Mutex()
	state   State
}

// New builds a Thread that reads from reader into out.
func New(out *buffer.Pool, reader api.Reader, log *slog.Logger) *Thread {
	return &Thread{
		out:     out,
		reader:  reader,
		log:     log,
		stopped: make(chan struct{}),
		state:   StateIdle,
	}
}

// Start launches the read goroutine. Safe to call once per Thread.
func (t *Thread) Start() {
	t.out.Mutex().Lock()
	t.state = StateRunning
	t.out.Mutex().Unlock()
	go t.run()
}

// RequestStop asks the read loop to terminate and returns immediately. If
// the loop is currently parked waiting for the read pool to become
// non-full, the SignalNonFull here wakes it and it exits without the pool
// being drained; if it is inside Reader.Read, it exits after that call
// returns and its batch is published. loader.Loader's stop sequence polls
// Stopped() while it drains the decode pool.
func (t *Thread) RequestStop() {
	t.out.Mutex().Lock()
	t.done = true
	t.state = StateStopping
	t.out.Mutex().Unlock()
	t.out.SignalNonFull()
}

// Stopped reports whether the read loop has fully exited.
func (t *Thread) Stopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

// StoppedCh returns the channel that closes when the read loop exits, for
// callers that want to select on it alongside other work.
func (t *Thread) StoppedCh() <-chan struct{} { return t.stopped }

// Stop requests termination and blocks until the loop has exited, including
// when the loop is parked on a full read pool. loader.Loader.Stop uses
// RequestStop instead so it can drain the decode pool while it waits.
func (t *Thread) Stop() {
	t.RequestStop()
	<-t.stopped
	t.out.Mutex().Lock()
	t.state = StateStopped
	t.out.Mutex().Unlock()
}

// Err returns the fatal error that terminated the read loop, if any.
func (t *Thread) Err() error {
	t.out.Mutex().Lock()
	defer t.out.Mutex().Unlock()
	return t.lastErr
}

// State reports the thread's current lifecycle state.
func (t *Thread) State() State {
	t.out.Mutex().Lock()
	defer t.out.Mutex().Unlock()
	return t.state
}

func (t *Thread) run() {
	defer close(t.stopped)
	for {
		t.out.Mutex().Lock()
		for t.out.Full() && !t.done {
			t.out.WaitForNonFull()
		}
		if t.done {
			t.out.Mutex().Unlock()
			return
		}
		triple := t.out.GetForWrite()
		t.out.Mutex().Unlock()

		if err := t.reader.Read(triple); err != nil {
			wrapped := api.NewError(api.ErrCodeReaderFailed, "read thread: reader failed").
				WithContext("cause", err.Error())
			t.out.Mutex().Lock()
			t.done = true
			t.lastErr = wrapped
			t.out.Mutex().Unlock()
			if t.log != nil {
				t.log.Error("read thread terminating on reader error", "err", err)
			}
			return
		}

		t.out.Mutex().Lock()
		t.out.AdvanceWritePos()
		t.out.Mutex().Unlock()
		t.out.SignalNonEmpty()
	}
}
