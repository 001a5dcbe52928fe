// Package buffer implements the bounded, double-slotted BufferPool that
// exchanges api.Triple values between exactly one producer and exactly one
// consumer under blocking backpressure.
//
// Grounded on the synchronization shape of core/buffer/bufferpool.go and
// pool/base_bufferpool.go in the teacher repo, specialized to the fixed
// two-slot ring this pipeline requires (see api/buffer.go for the Triple
// data model). Unlike the teacher's size-classed, multi-slot allocator
// pools, this pool never grows past two slots — it is a handoff point, not
// a general allocator.
package buffer

import (
	"sync"

	"github.com/nimbusml/batchloader/api"
)

// Pool is a bounded ring of exactly two api.Triple values, guarded by one
// mutex and two condition variables, matching the operation table in
// spec §4.1. Callers acquiring the mutex via Mutex().Lock() may call the
// non-blocking accessors directly; WaitForNonFull/WaitForNonEmpty must be
// called with the mutex held and release it for the duration of the wait
// (this is exactly sync.Cond.Wait's contract).
type Pool struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	nonFull  *sync.Cond

	triples  [2]*api.Triple
	readIdx  int
	writeIdx int
	count    int
}

// New constructs a Pool whose two slots are produced by factory. factory is
// called exactly twice, at construction time; the pool never reallocates
// slots itself (callers grow a slot's buffers in place via api.Buffer.Grow).
func New(factory func() *api.Triple) *Pool {
	p := &Pool{}
	p.nonEmpty = sync.NewCond(&p.mu)
	p.nonFull = sync.NewCond(&p.mu)
	p.triples[0] = factory()
	p.triples[1] = factory()
	return p
}

// Mutex returns the pool's shared mutex.
func (p *Pool) Mutex() *sync.Mutex { return &p.mu }

// Full reports whether the pool holds two unread triples. Caller must hold
// the mutex.
func (p *Pool) Full() bool { return p.count >= 2 }

// Empty reports whether the pool holds no unread triples. Caller must hold
// the mutex.
func (p *Pool) Empty() bool { return p.count == 0 }

// WaitForNonFull releases the mutex, blocks until signaled, and reacquires
// the mutex — one wake per call. Callers loop `for p.Full() {
// p.WaitForNonFull() }` themselves (rather than this method looping
// internally) so a stop sequence can interleave its own condition check
// between wakes, exactly as loader.hpp's consume()/produce() do around
// BufferPool::waitForNonFull/waitForNonEmpty.
func (p *Pool) WaitForNonFull() {
	p.nonFull.Wait()
}

// WaitForNonEmpty is WaitForNonFull's empty-side counterpart.
func (p *Pool) WaitForNonEmpty() {
	p.nonEmpty.Wait()
}

// GetForWrite returns the triple at writeIdx. Caller must hold the mutex.
func (p *Pool) GetForWrite() *api.Triple { return p.triples[p.writeIdx] }

// GetForRead returns the triple at readIdx. Caller must hold the mutex.
func (p *Pool) GetForRead() *api.Triple { return p.triples[p.readIdx] }

// AdvanceWritePos advances writeIdx and increments count. Caller must hold
// the mutex; pairs with exactly one AdvanceReadPos per triple.
func (p *Pool) AdvanceWritePos() {
	p.writeIdx = (p.writeIdx + 1) % 2
	p.count++
}

// AdvanceReadPos advances readIdx and decrements count. Caller must hold
// the mutex.
func (p *Pool) AdvanceReadPos() {
	p.readIdx = (p.readIdx + 1) % 2
	p.count--
}

// SignalNonEmpty wakes one waiter blocked in WaitForNonEmpty. Safe to call
// with or without the mutex held; conventionally called just after
// Unlock().
func (p *Pool) SignalNonEmpty() { p.nonEmpty.Signal() }

// SignalNonFull wakes one waiter blocked in WaitForNonFull.
func (p *Pool) SignalNonFull() { p.nonFull.Signal() }

// Count returns the current triple count. Caller must hold the mutex; for
// tests and debug probes only.
func (p *Pool) Count() int { return p.count }

// Slots returns both ring slots directly. Caller must hold the mutex.
// Intended for one-time setup work (sizing and pinning buffers before
// Start) rather than the hot read/write path, which should go through
// GetForRead/GetForWrite so it stays agnostic of slot count.
func (p *Pool) Slots() [2]*api.Triple { return p.triples }
