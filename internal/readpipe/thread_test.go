package readpipe

import (
	"errors"
	"testing"
	"time"

	"github.com/nimbusml/batchloader/api"
	"github.com/nimbusml/batchloader/internal/buffer"
)

// countingReader fills each triple's single item with a counter value and
// fails once count reaches failAt (0 disables failing).
type countingReader struct {
	count  int
	failAt int
}

func (r *countingReader) Read(triple *api.Triple) error {
	r.count++
	if r.failAt > 0 && r.count >= r.failAt {
		return errors.New("synthetic reader failure")
	}
	triple.Reset()
	triple.Data.AppendItem([]byte{byte(r.count)})
	triple.Targets.AppendItem([]byte{0})
	return nil
}

func (r *countingReader) Reset() error {
	r.count = 0
	return nil
}

func newPool() *buffer.Pool {
	return buffer.New(func() *api.Triple {
		return api.NewTriple(64, 64, 0)
	})
}

func TestThreadFillsBothSlotsThenBlocksOnFullPool(t *testing.T) {
	pool := newPool()
	reader := &countingReader{}
	th := New(pool, reader, nil)
	th.Start()

	deadline := time.After(2 * time.Second)
	for {
		pool.Mutex().Lock()
		full := pool.Full()
		pool.Mutex().Unlock()
		if full {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for read pool to fill")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	th.RequestStop()
	select {
	case <-th.StoppedCh():
	case <-time.After(2 * time.Second):
		t.Fatal("read thread did not stop after RequestStop")
	}
}

func TestThreadSurfacesReaderErrorViaErr(t *testing.T) {
	pool := newPool()
	reader := &countingReader{failAt: 1}
	th := New(pool, reader, nil)
	th.Start()

	select {
	case <-th.StoppedCh():
	case <-time.After(2 * time.Second):
		t.Fatal("read thread did not stop after reader error")
	}

	if err := th.Err(); err == nil {
		t.Fatal("expected a non-nil error after reader failure")
	}
}

func TestRequestStopUnblocksThreadParkedOnFullPool(t *testing.T) {
	pool := newPool()
	reader := &countingReader{}
	th := New(pool, reader, nil)
	th.Start()

	// Give the reader a moment to fill the pool and park on WaitForNonFull.
	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		th.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return; RequestStop failed to unblock a thread parked on a full pool")
	}

	if got := th.State(); got != StateStopped {
		t.Fatalf("State() = %v, want StateStopped", got)
	}
}
