// Package cpudevice implements api.Device for host (CPU) memory: batches
// are copied into a pair of host buffer slots rather than uploaded across a
// PCIe/NVLink-style transport. It is the loader's runtime default and the
// device used by the conformance and benchmark tests.
package cpudevice

import "sync"

// Device holds two destination slots for data, targets, and metadata. Init
// is a no-op; IsCPU always reports true, so the decode pool never requests
// pinned memory for buffers feeding this device (pinning only pays off for
// host-to-device transfer, which a CPU device never performs).
type Device struct {
	mu     sync.Mutex
	data   [2][]byte
	labels [2][]byte
	meta   [2][]int32
}

// New builds an empty Device.
func New() *Device { return &Device{} }

func (d *Device) Init() error { return nil }

func (d *Device) IsCPU() bool { return true }

func (d *Device) CopyData(bufferIdx int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[bufferIdx] = append(d.data[bufferIdx][:0], data...)
	return nil
}

func (d *Device) CopyLabels(bufferIdx int, targets []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.labels[bufferIdx] = append(d.labels[bufferIdx][:0], targets...)
	return nil
}

func (d *Device) CopyMeta(bufferIdx int, meta []int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.meta[bufferIdx] = append(d.meta[bufferIdx][:0], meta...)
	return nil
}

// CopyDataBack and CopyLabelsBack exist so tests (and any consumer that
// wants to read a batch without its own device-specific binding) can pull a
// produced batch back out of the device. dst must be at least as large as
// the stored slot.
func (d *Device) CopyDataBack(bufferIdx int, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(dst, d.data[bufferIdx])
	return nil
}

func (d *Device) CopyLabelsBack(bufferIdx int, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(dst, d.labels[bufferIdx])
	return nil
}

// Meta returns a copy of slot bufferIdx's metadata (test-only accessor;
// there is no CopyMetaBack in the api.Device contract since production
// consumers read metadata straight off the device alongside data/labels).
func (d *Device) Meta(bufferIdx int) []int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int32(nil), d.meta[bufferIdx]...)
}
