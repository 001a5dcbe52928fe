// Package benchmarks holds throughput benchmarks for the minibatch
// pipeline, run with the standard `go test -bench` harness rather than a
// bespoke runner, matching the rest of the pack's plain `testing` usage.
package benchmarks

import (
	"testing"

	"github.com/nimbusml/batchloader/api"
	"github.com/nimbusml/batchloader/internal/archive"
	"github.com/nimbusml/batchloader/internal/cpudevice"
	"github.com/nimbusml/batchloader/internal/mediaidentity"
	"github.com/nimbusml/batchloader/loader"
)

func buildBenchLoader(b *testing.B, batchSize, datumSize, hardwareConcurrency int) *loader.Loader {
	records := make([]archive.Record, 4096)
	for i := range records {
		records[i] = archive.Record{
			Datum:  make([]byte, datumSize),
			Target: make([]byte, 1),
		}
	}
	reader, err := archive.New(records, batchSize)
	if err != nil {
		b.Fatalf("archive.New: %v", err)
	}
	device := cpudevice.New()
	layout := api.LayoutConfig{
		BatchSize:      batchSize,
		DatumSize:      datumSize,
		DatumTypeSize:  1,
		TargetSize:     1,
		TargetTypeSize: 1,
	}
	l := loader.New(loader.Config{Layout: layout, HardwareConcurrency: hardwareConcurrency}, reader, device,
		func() api.Decoder { return mediaidentity.New(api.CopyRaw) }, nil)
	if err := l.Start(); err != nil {
		b.Fatalf("Start: %v", err)
	}
	return l
}

// BenchmarkNextThroughput measures sustained minibatch rate for a
// moderately sized image-like datum, with the decode pool sized to all
// available cores.
func BenchmarkNextThroughput(b *testing.B) {
	const batchSize = 128
	const datumSize = 3 * 32 * 32
	l := buildBenchLoader(b, batchSize, datumSize, 0)
	defer l.Stop()

	b.SetBytes(int64(batchSize * datumSize))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := l.Next(); err != nil {
			b.Fatalf("Next: %v", err)
		}
	}
}

// BenchmarkNextThroughputSingleWorker isolates the decode pool's per-worker
// overhead by forcing a single decode worker, for comparison against the
// default multi-worker run above.
func BenchmarkNextThroughputSingleWorker(b *testing.B) {
	const batchSize = 128
	const datumSize = 3 * 32 * 32
	l := buildBenchLoader(b, batchSize, datumSize, 1)
	defer l.Stop()

	b.SetBytes(int64(batchSize * datumSize))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := l.Next(); err != nil {
			b.Fatalf("Next: %v", err)
		}
	}
}
