package chain

import (
	"github.com/ravelstream/opchain/metrics"
	"github.com/ravelstream/opchain/operator"
	"github.com/ravelstream/opchain/record"
	"github.com/ravelstream/opchain/serde"
)

// statusSource lets a ChainingOutput ask the owning chain whether it is
// currently ACTIVE or IDLE without holding a reference to the whole
// controller (spec.md §4.2's watermark gating rule).
type statusSource interface {
	StreamStatus() record.StreamStatus
}

// metricsCounter is the narrow slice of tally.Counter ChainingOutput
// needs, kept as an interface so tests can swap in a no-op.
type metricsCounter interface {
	Inc(delta int64)
}

type noopCounter struct{}

func (noopCounter) Inc(int64) {}

// ChainingOutput fuses a producer directly into a single successor
// operator's ElementSink within the same task, without copying the
// record's value (spec.md §4.2). It is the non-copying half of the pair
// the builder chooses between based on the task's object-reuse mode.
//
// The single place a record's value is actually cast to the target
// operator's declared input type is operator.ElementSink.ProcessElement
// (see operator/runtime.go's oneInputAdapter) — ChainingOutput itself
// stays untyped and just forwards, the same way the fused operator call
// in the original implementation resolves its cast once, inside
// pushToOperator.
type ChainingOutput struct {
	targetName  string
	target      operator.ElementSink
	outputTagID string // "" for the main stream
	status      statusSource
	gauge       *metrics.WatermarkGauge
	numRecords  metricsCounter
}

func newChainingBase(targetName string, target operator.ElementSink, outputTagID string, status statusSource, counter metricsCounter) ChainingOutput {
	if counter == nil {
		counter = noopCounter{}
	}
	return ChainingOutput{
		targetName:  targetName,
		target:      target,
		outputTagID: outputTagID,
		status:      status,
		gauge:       metrics.NewWatermarkGauge(),
		numRecords:  counter,
	}
}

// NewChainingOutput builds the non-copying variant, chosen by the
// builder when the containing task runs with object reuse enabled
// (spec.md §4.2, §4.6 step 5).
func NewChainingOutput(targetName string, target operator.ElementSink, outputTagID string, status statusSource, counter metricsCounter) *ChainingOutput {
	c := newChainingBase(targetName, target, outputTagID, status, counter)
	return &c
}

func (c *ChainingOutput) WatermarkGauge() *metrics.WatermarkGauge { return c.gauge }

func (c *ChainingOutput) Close() error { return c.target.Close() }

// Collect drops the record if it carries a side-output tag (this seam
// only accepts main-stream records) and otherwise pushes it straight
// into the target operator, wrapping any failure from the target's own
// code as an ExceptionInChainedOperator (spec.md §4.2, §7).
func (c *ChainingOutput) Collect(rec record.StreamRecord[any]) error {
	if c.outputTagID != "" {
		return nil
	}
	return c.push(rec, "")
}

// CollectTagged drops the record unless it is tagged with exactly this
// sink's output tag id.
func (c *ChainingOutput) CollectTagged(tagID string, rec record.StreamRecord[any]) error {
	if c.outputTagID == "" || c.outputTagID != tagID {
		return nil
	}
	return c.push(rec, tagID)
}

func (c *ChainingOutput) push(rec record.StreamRecord[any], tagID string) error {
	c.numRecords.Inc(1)
	if err := c.target.ProcessElement(rec); err != nil {
		return wrapChainedOperatorError(c.targetName, rewrapIfTagged(err, tagID))
	}
	return nil
}

// EmitWatermark always updates the exposed gauge but only forwards the
// watermark into the target operator while the stream is ACTIVE; an
// IDLE stream drops watermarks rather than buffering them (spec.md
// §4.2, §5's IDLE edge case).
func (c *ChainingOutput) EmitWatermark(w record.Watermark) error {
	c.gauge.Set(w.Timestamp)
	if !c.status.StreamStatus().IsActive() {
		return nil
	}
	if err := c.target.ProcessWatermark(w); err != nil {
		return wrapChainedOperatorError(c.targetName, err)
	}
	return nil
}

// EmitLatencyMarker forwards unconditionally, independent of stream
// status (spec.md §4.2).
func (c *ChainingOutput) EmitLatencyMarker(m record.LatencyMarker) error {
	if err := c.target.ProcessLatencyMarker(m); err != nil {
		return wrapChainedOperatorError(c.targetName, err)
	}
	return nil
}

// rewrapIfTagged rewraps a TypeMismatchError raised while pushing a
// tagged record with the offending tag id, mirroring the original
// implementation's guidance that this failure mode usually means two
// OutputTags of different types share the same id (spec.md §4.2, §7).
func rewrapIfTagged(err error, tagID string) error {
	if tagID == "" {
		return err
	}
	if mismatch, ok := err.(*operator.TypeMismatchError); ok {
		return &taggedTypeMismatchError{TypeMismatchError: mismatch, tagID: tagID}
	}
	return err
}

type taggedTypeMismatchError struct {
	*operator.TypeMismatchError
	tagID string
}

func (e *taggedTypeMismatchError) Error() string {
	return e.TypeMismatchError.Error() + ". This can occur when multiple OutputTags with different types " +
		"but identical names are being used, tag '" + e.tagID + "'"
}

// CopyingChainingOutput is the copying half of the pair: it makes a
// defensive copy of the record's value before handing it to the target
// operator, chosen by the builder when the task runs with object reuse
// disabled, since a downstream operator may otherwise observe a record
// its upstream neighbor still holds a live reference to (spec.md §4.2,
// §4.6 step 5).
//
// The record's dynamic value is copied through serde.TypeSerializer[any]
// rather than a per-edge static type, because a single operator's
// output can fan into successors of more than one type across its main
// stream and its side outputs (see CopyingBroadcastingOutput for the
// same reasoning).
type CopyingChainingOutput struct {
	ChainingOutput
	serializer serde.TypeSerializer[any]
}

func NewCopyingChainingOutput(targetName string, target operator.ElementSink, outputTagID string, status statusSource, counter metricsCounter, serializer serde.TypeSerializer[any]) *CopyingChainingOutput {
	return &CopyingChainingOutput{
		ChainingOutput: newChainingBase(targetName, target, outputTagID, status, counter),
		serializer:     serializer,
	}
}

func (c *CopyingChainingOutput) Collect(rec record.StreamRecord[any]) error {
	if c.outputTagID != "" {
		return nil
	}
	return c.pushCopy(rec, "")
}

func (c *CopyingChainingOutput) CollectTagged(tagID string, rec record.StreamRecord[any]) error {
	if c.outputTagID == "" || c.outputTagID != tagID {
		return nil
	}
	return c.pushCopy(rec, tagID)
}

func (c *CopyingChainingOutput) pushCopy(rec record.StreamRecord[any], tagID string) error {
	copied, err := c.serializer.Copy(rec.Value)
	if err != nil {
		return wrapChainedOperatorError(c.targetName, err)
	}
	out := rec.CopyWith(copied)
	c.numRecords.Inc(1)
	if err := c.target.ProcessElement(out); err != nil {
		return wrapChainedOperatorError(c.targetName, rewrapIfTagged(err, tagID))
	}
	return nil
}
