// Package operator defines the operator capability contracts (spec.md
// §3 "Operator") as generic, type-safe interfaces for implementers, plus
// a closed, type-erased runtime facade (Operator/ElementSink) that the
// chain package actually drives.
//
// The split mirrors the teacher repo's operator package
// (OneInputOperator[IN,OUT] / TwoInputOperator[IN1,IN2,OUT] as the
// user-facing generic contracts, operator.operator.go's
// oneInputOperator/twoInputOperator as the type-erased adapters the
// runtime holds) and stands in for the original Java implementation's
// reliance on type erasure: instead of raw casts, this package uses
// bounded generics for authors and a single explicit type assertion at
// the erasure boundary (Adapt*).
package operator

import (
	"fmt"

	"github.com/ravelstream/opchain/chainlog"
	"github.com/ravelstream/opchain/metrics"
	"github.com/ravelstream/opchain/record"
)

// Context is handed to an operator's Open. It is deliberately narrow:
// everything else an operator needs (timers, state, checkpoints) is a
// collaborator out of scope for this module (spec.md §1).
type Context interface {
	Logger() chainlog.Logger
	MetricGroup() *metrics.MetricGroup
}

type context struct {
	logger      chainlog.Logger
	metricGroup *metrics.MetricGroup
}

func NewContext(logger chainlog.Logger, metricGroup *metrics.MetricGroup) Context {
	return &context{logger: logger, metricGroup: metricGroup}
}

func (c *context) Logger() chainlog.Logger            { return c.logger }
func (c *context) MetricGroup() *metrics.MetricGroup  { return c.metricGroup }

// Emitter is the collector handed to an operator's Open, letting it push
// records, side-output records, watermarks and latency markers into its
// configured output sink without the operator needing to know whether
// that sink is a chaining, broadcasting, directed or network output.
type Emitter interface {
	Collect(rec record.StreamRecord[any]) error
	CollectTagged(tagID string, rec record.StreamRecord[any]) error
	EmitWatermark(w record.Watermark) error
	EmitLatencyMarker(m record.LatencyMarker) error
}

// Emit and EmitTagged are the typed entry points operator authors use;
// Go interface methods can't carry their own type parameters, so the
// generic-to-erased boxing that Emitter.Collect needs happens here
// instead of on the interface.
func Emit[T any](e Emitter, value T, timestamp int64, hasTimestamp bool) error {
	return e.Collect(record.StreamRecord[any]{Value: value, Timestamp: timestamp, HasTimestamp: hasTimestamp})
}

func EmitTagged[T any](e Emitter, tag record.OutputTag[T], value T, timestamp int64, hasTimestamp bool) error {
	return e.CollectTagged(tag.ID, record.StreamRecord[any]{Value: value, Timestamp: timestamp, HasTimestamp: hasTimestamp})
}

// OutputSink is what a chain builder wires as an operator's downstream
// target: an Emitter that can also be drained/closed and that exposes
// the watermark gauge the chain registers as that seam's
// current-output-watermark metric (spec.md §4.1). Concrete
// implementations (ChainingOutput, BroadcastingOutput, DirectedOutput,
// NetworkWriterOutput) live in the chain package; this interface lives
// here so writer, whose Output embeds it, does not need to import chain.
type OutputSink interface {
	Emitter
	Close() error
	WatermarkGauge() *metrics.WatermarkGauge
}

// OneInputOperator is the contract for an operator with a single input
// stream (spec.md §3's "OneInput" capability tag).
type OneInputOperator[IN, OUT any] interface {
	Open(ctx Context, out Emitter) error
	Close() error
	ProcessElement(rec record.StreamRecord[IN]) error
	ProcessWatermark(w record.Watermark) error
	ProcessLatencyMarker(m record.LatencyMarker) error
	SetKeyContextElement1(rec record.StreamRecord[IN])
	PrepareSnapshotPreBarrier(checkpointID int64) error
}

// TwoInputOperator is the contract for a chain's head operator when it
// joins two input streams (spec.md §3's "TwoInput" capability tag;
// spec.md §1 bounds multi-input arity at two, and only the head may be
// two-input — chained, non-head operators are always one-input, see
// chain/builder.go).
type TwoInputOperator[IN1, IN2, OUT any] interface {
	Open(ctx Context, out Emitter) error
	Close() error
	ProcessElement1(rec record.StreamRecord[IN1]) error
	ProcessElement2(rec record.StreamRecord[IN2]) error
	ProcessWatermark(w record.Watermark) error
	ProcessLatencyMarker(m record.LatencyMarker) error
	SetKeyContextElement1(rec record.StreamRecord[IN1])
	PrepareSnapshotPreBarrier(checkpointID int64) error
}

// BoundedOneInput and BoundedMultiInput are optional capabilities a
// concrete operator implementation may additionally satisfy; the chain
// controller probes for them with a type assertion rather than a
// separate registration step (spec.md's DESIGN NOTES: "model as an
// interface with optional-capability queries").
type BoundedOneInput interface {
	EndInput() error
}

type BoundedMultiInput interface {
	EndInput(inputID int) error
}

// NewOneInputOperator and NewTwoInputOperator are the factory functions
// a StreamConfig node carries (spec.md §3 "StreamConfig ... operator
// factory"), mirroring the teacher's component.NewOperator[IN1,IN2,OUT].
type NewOneInputOperator[IN, OUT any] func() OneInputOperator[IN, OUT]
type NewTwoInputOperator[IN1, IN2, OUT any] func() TwoInputOperator[IN1, IN2, OUT]

// TypeMismatchError is raised when a value flowing through the
// type-erased runtime boundary does not assert to the type an operator
// (or a side-output tag) expects. It is the Go analogue of the
// ClassCastException the original Java implementation can hit under
// type erasure, and is rewrapped by chain.ChainingOutput with the
// side-output tag's id when relevant (spec.md §4.2/§7).
type TypeMismatchError struct {
	Operator string
	Value    any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("operator %q: value of type %T is not assignable to the operator's declared input type", e.Operator, e.Value)
}
