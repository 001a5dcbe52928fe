package decodepipe

// ComputeWorkerCount implements the worker-count/items-per-thread formula
// from spec.md §4.4 and loader.hpp's Loader::start: itemsPerThread is
// ceil(batchSize/hardwareConcurrency); workerCount is ceil(batchSize/
// itemsPerThread), clamped so it never exceeds batchSize (the clamp is
// redundant given itemsPerThread >= 1, but loader.hpp asserts it
// explicitly, so this keeps that belt-and-suspenders check visible).
func ComputeWorkerCount(batchSize, hardwareConcurrency int) (workerCount, itemsPerThread int) {
	if hardwareConcurrency < 1 {
		hardwareConcurrency = 1
	}
	itemsPerThread = (batchSize-1)/hardwareConcurrency + 1
	workerCount = (batchSize-1)/itemsPerThread + 1
	if workerCount > batchSize {
		workerCount = batchSize
	}
	return workerCount, itemsPerThread
}

// WorkerRange returns the half-open item range [start, end) owned by worker
// id, per spec.md §3's "Decode partition": worker i owns
// [i*itemsPerThread, min((i+1)*itemsPerThread, batchSize)). Partitions for
// distinct workers are disjoint and their union is [0, batchSize).
func WorkerRange(id, itemsPerThread, batchSize int) (start, end int) {
	start = id * itemsPerThread
	end = start + itemsPerThread
	if end > batchSize {
		end = batchSize
	}
	if start > batchSize {
		start = batchSize
	}
	return start, end
}
