package chain

import (
	"github.com/ravelstream/opchain/metrics"
	"github.com/ravelstream/opchain/operator"
	"github.com/ravelstream/opchain/record"
)

// xorShiftRandom is a small, fast PRNG used only to pick which
// recipient a latency marker samples through a fan-out, grounded on the
// original implementation's XORShiftRandom (spec.md §4.3).
type xorShiftRandom struct {
	state uint64
}

func newXorShiftRandom(seed uint64) *xorShiftRandom {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return &xorShiftRandom{state: seed}
}

func (r *xorShiftRandom) next(n int) int {
	x := r.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	r.state = x
	if n <= 0 {
		return 0
	}
	return int(x % uint64(n))
}

// BroadcastingOutput fans a record out to every one of its recipients
// unconditionally, without copying the record's value (spec.md §4.3).
// The builder picks this variant when the containing task runs with
// object reuse DISABLED — inverted from ChainingOutput's rule, because
// under object reuse the recipients themselves (being ChainingOutputs,
// not CopyingChainingOutputs) will not copy, so the fan-out has to.
type BroadcastingOutput struct {
	outputs []operator.OutputSink
	status  statusSource
	gauge   *metrics.WatermarkGauge
	rnd     *xorShiftRandom
}

func NewBroadcastingOutput(outputs []operator.OutputSink, status statusSource) *BroadcastingOutput {
	return &BroadcastingOutput{outputs: outputs, status: status, gauge: metrics.NewWatermarkGauge(), rnd: newXorShiftRandom(0)}
}

func (b *BroadcastingOutput) WatermarkGauge() *metrics.WatermarkGauge { return b.gauge }

func (b *BroadcastingOutput) Close() error {
	var first error
	for _, out := range b.outputs {
		if err := out.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (b *BroadcastingOutput) Collect(rec record.StreamRecord[any]) error {
	for _, out := range b.outputs {
		if err := out.Collect(rec); err != nil {
			return err
		}
	}
	return nil
}

func (b *BroadcastingOutput) CollectTagged(tagID string, rec record.StreamRecord[any]) error {
	for _, out := range b.outputs {
		if err := out.CollectTagged(tagID, rec); err != nil {
			return err
		}
	}
	return nil
}

// EmitWatermark always updates the gauge, and forwards to every
// recipient only while the stream is ACTIVE (spec.md §4.3).
func (b *BroadcastingOutput) EmitWatermark(w record.Watermark) error {
	b.gauge.Set(w.Timestamp)
	if !b.status.StreamStatus().IsActive() {
		return nil
	}
	for _, out := range b.outputs {
		if err := out.EmitWatermark(w); err != nil {
			return err
		}
	}
	return nil
}

// EmitLatencyMarker samples a single recipient at random rather than
// flooding every branch of the fan-out with a marker (spec.md §4.3).
func (b *BroadcastingOutput) EmitLatencyMarker(m record.LatencyMarker) error {
	switch len(b.outputs) {
	case 0:
		return nil
	case 1:
		return b.outputs[0].EmitLatencyMarker(m)
	default:
		return b.outputs[b.rnd.next(len(b.outputs))].EmitLatencyMarker(m)
	}
}

// CopyingBroadcastingOutput fans a record out to every recipient,
// handing every recipient but the last a shallow copy of the record —
// a new envelope carrying the same value reference — so that N-1
// chaining outputs downstream each get their own StreamRecord even
// though they all still share the underlying value (spec.md §4.3). The
// builder picks this variant when object reuse is ENABLED: each
// recipient is a plain ChainingOutput, which under object reuse never
// copies on its own, so the fan-out is the only place left to hand out
// distinct envelopes.
type CopyingBroadcastingOutput struct {
	BroadcastingOutput
}

func NewCopyingBroadcastingOutput(outputs []operator.OutputSink, status statusSource) *CopyingBroadcastingOutput {
	return &CopyingBroadcastingOutput{
		BroadcastingOutput: BroadcastingOutput{outputs: outputs, status: status, gauge: metrics.NewWatermarkGauge(), rnd: newXorShiftRandom(0)},
	}
}

func (b *CopyingBroadcastingOutput) Collect(rec record.StreamRecord[any]) error {
	return b.fanOut(rec, func(out operator.OutputSink, r record.StreamRecord[any]) error {
		return out.Collect(r)
	})
}

func (b *CopyingBroadcastingOutput) CollectTagged(tagID string, rec record.StreamRecord[any]) error {
	return b.fanOut(rec, func(out operator.OutputSink, r record.StreamRecord[any]) error {
		return out.CollectTagged(tagID, r)
	})
}

// fanOut hands every recipient but the last a fresh envelope around the
// same value reference, and the last recipient the original record
// itself — the exact optimization the original implementation's
// CopyingBroadcastingOutputCollector performs, since the last recipient
// can never be observed by another branch afterward.
func (b *CopyingBroadcastingOutput) fanOut(rec record.StreamRecord[any], send func(operator.OutputSink, record.StreamRecord[any]) error) error {
	n := len(b.outputs)
	if n == 0 {
		return nil
	}
	for i := 0; i < n-1; i++ {
		if err := send(b.outputs[i], rec.Copy()); err != nil {
			return err
		}
	}
	return send(b.outputs[n-1], rec)
}
