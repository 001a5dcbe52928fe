// Package archive provides an in-memory api.Reader over a fixed set of
// encoded (datum, target) records. It stands in for the many concrete
// archive backends (tar shards, LMDB, directory trees) a production loader
// would support; this module implements exactly the contract the rest of
// the pipeline needs and nothing source-format-specific.
package archive

import (
	"fmt"

	"github.com/eapache/queue"

	"github.com/nimbusml/batchloader/api"
)

// Record is one raw encoded (datum, target) pair as it would be read off
// whatever underlying archive format supplies it.
type Record struct {
	Datum  []byte
	Target []byte
}

// Reader is an api.Reader over a fixed slice of Records, iterating in a
// deterministic order and wrapping at epoch boundaries. Pending item indices
// for the current epoch are tracked in an eapache/queue.Queue FIFO — the
// genuine home this module gives that dependency, which the teacher repo
// declares but never imports.
type Reader struct {
	records   []Record
	batchSize int
	pending   *queue.Queue
}

// New builds a Reader that yields batchSize encoded items per Read call,
// drawn from records in order and wrapping once exhausted.
func New(records []Record, batchSize int) (*Reader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: archive: batchSize must be positive, got %d", api.ErrInvalidArgument, batchSize)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: archive: records must be non-empty", api.ErrInvalidArgument)
	}
	r := &Reader{records: records, batchSize: batchSize}
	r.refill()
	return r, nil
}

func (r *Reader) refill() {
	r.pending = queue.New()
	for i := range r.records {
		r.pending.Add(i)
	}
}

// Read fills triple with exactly batchSize encoded (datum, target) pairs. A
// batch may straddle the wrap from one epoch into the next; Meta is left
// untouched, matching the Reader contract.
func (r *Reader) Read(triple *api.Triple) error {
	triple.Data.Reset()
	triple.Targets.Reset()
	for i := 0; i < r.batchSize; i++ {
		if r.pending.Length() == 0 {
			r.refill()
		}
		idx := r.pending.Peek().(int)
		r.pending.Remove()
		rec := r.records[idx]
		triple.Data.AppendItem(rec.Datum)
		triple.Targets.AppendItem(rec.Target)
	}
	return nil
}

// Reset repositions the reader to the start of a fresh epoch, discarding any
// partially consumed one.
func (r *Reader) Reset() error {
	r.refill()
	return nil
}

// Len reports the number of distinct records in one epoch (for tests).
func (r *Reader) Len() int { return len(r.records) }
