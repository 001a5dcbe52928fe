// Package mediaidentity provides a passthrough api.Decoder: it copies raw
// encoded bytes into the fixed-length output slot without any format-
// specific decode step (no JPEG/PNG/audio codec). It exists so the pipeline
// has a working, dependency-free Decoder for benchmarking and conformance
// testing; real deployments supply their own media-specific Decoder.
package mediaidentity

import "github.com/nimbusml/batchloader/api"

// Decoder is a no-op transform: it truncates or zero-pads the encoded datum
// (and, in joint mode, target) to the fixed slot length. Grounded on the
// truncate/pad policy spec.md §7 defines for targets, generalized here to
// datums as well since an identity decoder has no other way to fit a
// variable-length encoded datum into a fixed-length slot.
type Decoder struct {
	conv api.TargetConversion
}

// New builds a Decoder using conv to select split vs. joint transform mode.
func New(conv api.TargetConversion) *Decoder {
	return &Decoder{conv: conv}
}

func (d *Decoder) TargetConversion() api.TargetConversion { return d.conv }

// TransformSplit copies encDatum into datumBuf, truncating or zero-padding
// to fit, and records the original encoded length in meta.
func (d *Decoder) TransformSplit(encDatum []byte, datumBuf []byte, meta *int32) error {
	n := copy(datumBuf, encDatum)
	for i := n; i < len(datumBuf); i++ {
		datumBuf[i] = 0
	}
	if meta != nil {
		*meta = int32(len(encDatum))
	}
	return nil
}

// TransformJoint copies encDatum and encTarget into their respective slots,
// truncating or zero-padding each independently.
func (d *Decoder) TransformJoint(encDatum, encTarget []byte, datumBuf, targetBuf []byte) error {
	n := copy(datumBuf, encDatum)
	for i := n; i < len(datumBuf); i++ {
		datumBuf[i] = 0
	}
	n = copy(targetBuf, encTarget)
	for i := n; i < len(targetBuf); i++ {
		targetBuf[i] = 0
	}
	return nil
}
