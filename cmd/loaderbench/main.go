// Command loaderbench drives the minibatch pipeline standalone, reporting
// throughput and draining it cleanly on Ctrl-C.
//
// Grounded on the flag-based CLI harness in
// examples/stest/client/main.go and examples/echo/main.go in the teacher
// repo: plain flag package, signal.NotifyContext for graceful shutdown, a
// ticker-driven metrics reporter goroutine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/nimbusml/batchloader/api"
	"github.com/nimbusml/batchloader/control"
	"github.com/nimbusml/batchloader/internal/archive"
	"github.com/nimbusml/batchloader/internal/cpudevice"
	"github.com/nimbusml/batchloader/internal/mediaidentity"
	"github.com/nimbusml/batchloader/internal/xlog"
	"github.com/nimbusml/batchloader/loader"
)

func main() {
	batchSize := flag.Int("batch", 128, "items per minibatch")
	datumSize := flag.Int("datum", 3*32*32, "elements per decoded datum (e.g. nchan*height*width)")
	targetSize := flag.Int("target", 1, "elements per decoded target")
	recordCount := flag.Int("records", 10000, "synthetic record count in one epoch")
	hardwareConcurrency := flag.Int("workers", 0, "hardware concurrency the decode worker count is computed from (0 = runtime.NumCPU)")
	debug := flag.Bool("debug", false, "enable debug-level structured logging")
	flag.Parse()

	log := xlog.New(os.Stdout, *debug)

	records := make([]archive.Record, *recordCount)
	for i := range records {
		records[i] = archive.Record{
			Datum:  make([]byte, *datumSize),
			Target: make([]byte, *targetSize),
		}
	}

	reader, err := archive.New(records, *batchSize)
	if err != nil {
		log.Error("failed to build synthetic reader", "err", err)
		os.Exit(1)
	}
	device := cpudevice.New()

	layout := api.LayoutConfig{
		BatchSize:      *batchSize,
		DatumSize:      *datumSize,
		DatumTypeSize:  1,
		TargetSize:     *targetSize,
		TargetTypeSize: 1,
		TargetConversion: api.CopyRaw,
	}

	l := loader.New(loader.Config{
		Layout:              layout,
		HardwareConcurrency: *hardwareConcurrency,
	}, reader, device, func() api.Decoder {
		return mediaidentity.New(api.CopyRaw)
	}, log)

	if err := l.Start(); err != nil {
		log.Error("failed to start loader", "err", err)
		os.Exit(1)
	}

	if *debug {
		control.RegisterReloadHook(func() {
			log.Debug("diagnostics dump", "metrics", l.Metrics().GetSnapshot(), "probes", l.Debug().DumpState())
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var batches int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := l.Next(); err != nil {
				log.Error("loader stopped", "err", err)
				return
			}
			atomic.AddInt64(&batches, 1)
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			<-done
			fmt.Println("stopped")
			return
		case <-done:
			l.Stop()
			return
		case <-ticker.C:
			n := atomic.SwapInt64(&batches, 0)
			fmt.Printf("%d batches/sec (%d items/sec)\n", n, n*int64(*batchSize))
			if *debug {
				control.TriggerHotReloadSync()
			}
		}
	}
}
