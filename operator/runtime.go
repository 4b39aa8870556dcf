package operator

import (
	"github.com/ravelstream/opchain/metrics"
	"github.com/ravelstream/opchain/record"
	"github.com/ravelstream/opchain/safe"
)

// Kind distinguishes how a chain's head operator receives input; only
// the head may be TwoInput or Source (spec.md §3, §4.7 endInput state
// machine).
type Kind int

const (
	KindOneInput Kind = iota
	KindTwoInput
	KindSource
)

// Operator is the closed, type-erased facade the chain package (builder
// and controller) actually holds in its allOperators array. It exists
// so the controller can walk a heterogeneous, statically-typed chain
// without itself becoming generic over every operator's IN/OUT types —
// the same role StreamOperator<?> plays via type erasure in the
// original Java implementation.
type Operator interface {
	Name() string
	Kind() Kind
	Close() error
	PrepareSnapshotPreBarrier(checkpointID int64) error
	MetricGroup() *metrics.MetricGroup
	SetMetricGroup(group *metrics.MetricGroup)

	// AsBoundedOneInput/AsBoundedMultiInput probe the wrapped operator
	// for the matching optional capability without a type switch over
	// every possible concrete adapter type.
	AsBoundedOneInput() (BoundedOneInput, bool)
	AsBoundedMultiInput() (BoundedMultiInput, bool)
}

// ElementSink is the narrower facet of Operator that a chaining output
// (chain.ChainingOutput) drives directly: pushing a record, watermark or
// latency marker into the operator. Only one-input operators expose it —
// per spec.md §4.6 step 5 and the teacher's createChainedOperator, a
// two-input operator may only be the chain's head, and the head is
// driven by the containing task's input readers, not by another
// in-chain sink.
type ElementSink interface {
	Operator
	ProcessElement(rec record.StreamRecord[any]) error
	ProcessWatermark(w record.Watermark) error
	ProcessLatencyMarker(m record.LatencyMarker) error
}

type oneInputAdapter[IN, OUT any] struct {
	name        string
	op          OneInputOperator[IN, OUT]
	metricGroup *metrics.MetricGroup
}

// AdaptOneInput wraps a generic OneInputOperator into the runtime,
// type-erased Operator/ElementSink facade the chain drives.
func AdaptOneInput[IN, OUT any](name string, op OneInputOperator[IN, OUT]) ElementSink {
	return &oneInputAdapter[IN, OUT]{name: name, op: op}
}

func (a *oneInputAdapter[IN, OUT]) Name() string { return a.name }
func (a *oneInputAdapter[IN, OUT]) Kind() Kind   { return KindOneInput }

func (a *oneInputAdapter[IN, OUT]) Close() error {
	return safe.Run(func() error { return a.op.Close() })
}

func (a *oneInputAdapter[IN, OUT]) PrepareSnapshotPreBarrier(checkpointID int64) error {
	return safe.Run(func() error { return a.op.PrepareSnapshotPreBarrier(checkpointID) })
}

func (a *oneInputAdapter[IN, OUT]) MetricGroup() *metrics.MetricGroup { return a.metricGroup }

func (a *oneInputAdapter[IN, OUT]) SetMetricGroup(group *metrics.MetricGroup) {
	a.metricGroup = group
}

func (a *oneInputAdapter[IN, OUT]) AsBoundedOneInput() (BoundedOneInput, bool) {
	b, ok := a.op.(BoundedOneInput)
	if !ok {
		return nil, false
	}
	return safeBoundedOneInput{b}, true
}

func (a *oneInputAdapter[IN, OUT]) AsBoundedMultiInput() (BoundedMultiInput, bool) {
	return nil, false
}

func (a *oneInputAdapter[IN, OUT]) ProcessElement(rec record.StreamRecord[any]) error {
	value, ok := rec.Value.(IN)
	if !ok {
		return &TypeMismatchError{Operator: a.name, Value: rec.Value}
	}
	typed := record.StreamRecord[IN]{Value: value, Timestamp: rec.Timestamp, HasTimestamp: rec.HasTimestamp}
	return safe.Run(func() error {
		a.op.SetKeyContextElement1(typed)
		return a.op.ProcessElement(typed)
	})
}

func (a *oneInputAdapter[IN, OUT]) ProcessWatermark(w record.Watermark) error {
	return safe.Run(func() error { return a.op.ProcessWatermark(w) })
}

func (a *oneInputAdapter[IN, OUT]) ProcessLatencyMarker(m record.LatencyMarker) error {
	return safe.Run(func() error { return a.op.ProcessLatencyMarker(m) })
}

// safeBoundedOneInput and safeBoundedMultiInput route EndInput through
// safe.Run the same way every other operator entry point does, so a
// panic ending a bounded input surfaces as an error rather than
// unwinding the chain controller's own call stack.
type safeBoundedOneInput struct{ inner BoundedOneInput }

func (s safeBoundedOneInput) EndInput() error {
	return safe.Run(func() error { return s.inner.EndInput() })
}

type safeBoundedMultiInput struct{ inner BoundedMultiInput }

func (s safeBoundedMultiInput) EndInput(inputID int) error {
	return safe.Run(func() error { return s.inner.EndInput(inputID) })
}

// Open runs the wrapped operator's Open against a runtime Emitter,
// called once by the chain builder immediately after adapting it.
func (a *oneInputAdapter[IN, OUT]) Open(ctx Context, out Emitter) error {
	return a.op.Open(ctx, out)
}

type twoInputAdapter[IN1, IN2, OUT any] struct {
	name        string
	op          TwoInputOperator[IN1, IN2, OUT]
	metricGroup *metrics.MetricGroup
}

// AdaptTwoInput wraps a generic TwoInputOperator (only ever the chain's
// head, see ElementSink's doc comment) into the runtime facade.
func AdaptTwoInput[IN1, IN2, OUT any](name string, op TwoInputOperator[IN1, IN2, OUT]) Operator {
	return &twoInputAdapter[IN1, IN2, OUT]{name: name, op: op}
}

func (a *twoInputAdapter[IN1, IN2, OUT]) Name() string { return a.name }
func (a *twoInputAdapter[IN1, IN2, OUT]) Kind() Kind   { return KindTwoInput }

func (a *twoInputAdapter[IN1, IN2, OUT]) Close() error {
	return safe.Run(func() error { return a.op.Close() })
}

func (a *twoInputAdapter[IN1, IN2, OUT]) PrepareSnapshotPreBarrier(checkpointID int64) error {
	return safe.Run(func() error { return a.op.PrepareSnapshotPreBarrier(checkpointID) })
}

func (a *twoInputAdapter[IN1, IN2, OUT]) MetricGroup() *metrics.MetricGroup { return a.metricGroup }

func (a *twoInputAdapter[IN1, IN2, OUT]) SetMetricGroup(group *metrics.MetricGroup) {
	a.metricGroup = group
}

func (a *twoInputAdapter[IN1, IN2, OUT]) AsBoundedOneInput() (BoundedOneInput, bool) {
	return nil, false
}

func (a *twoInputAdapter[IN1, IN2, OUT]) AsBoundedMultiInput() (BoundedMultiInput, bool) {
	b, ok := a.op.(BoundedMultiInput)
	if !ok {
		return nil, false
	}
	return safeBoundedMultiInput{b}, true
}

// Open runs the wrapped operator's Open against a runtime Emitter. The
// containing task, not this chain, is responsible for driving
// ProcessElement1/ProcessElement2 as it demultiplexes its two input
// readers (spec.md §1 Out of scope: task scheduling).
func (a *twoInputAdapter[IN1, IN2, OUT]) Open(ctx Context, out Emitter) error {
	return a.op.Open(ctx, out)
}
