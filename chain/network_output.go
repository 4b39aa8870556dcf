package chain

import (
	"github.com/ravelstream/opchain/config"
	"github.com/ravelstream/opchain/metrics"
	"github.com/ravelstream/opchain/record"
	"github.com/ravelstream/opchain/serde"
	"github.com/ravelstream/opchain/writer"
)

// NetworkWriterOutput is the sink at a non-chained edge: it encodes a
// record's value and its outgoing events through a writer.RecordWriter
// bound to the downstream task's input channel (spec.md §4.5). Encoding
// happens here rather than in the writer so the writer stays a plain
// byte-oriented transport contract.
type NetworkWriterOutput[T any] struct {
	name        string
	writer      writer.RecordWriter
	codec       serde.Codec[T]
	outputTagID string
	status      config.StatusSource
	gauge       *metrics.WatermarkGauge
}

func NewNetworkWriterOutput[T any](name string, w writer.RecordWriter, codec serde.Codec[T], outputTagID string, status config.StatusSource) *NetworkWriterOutput[T] {
	return &NetworkWriterOutput[T]{name: name, writer: w, codec: codec, outputTagID: outputTagID, status: status, gauge: metrics.NewWatermarkGauge()}
}

func (n *NetworkWriterOutput[T]) WatermarkGauge() *metrics.WatermarkGauge { return n.gauge }

func (n *NetworkWriterOutput[T]) Close() error { return n.writer.Close() }

func (n *NetworkWriterOutput[T]) Collect(rec record.StreamRecord[any]) error {
	if n.outputTagID != "" {
		return nil
	}
	return n.encodeAndWrite("", rec)
}

func (n *NetworkWriterOutput[T]) CollectTagged(tagID string, rec record.StreamRecord[any]) error {
	if n.outputTagID == "" || n.outputTagID != tagID {
		return nil
	}
	return n.encodeAndWrite(tagID, rec)
}

func (n *NetworkWriterOutput[T]) encodeAndWrite(tagID string, rec record.StreamRecord[any]) error {
	value, ok := rec.Value.(T)
	if !ok {
		return &typeMismatchOnEdge{name: n.name}
	}
	payload, err := n.codec.Encode(value)
	if err != nil {
		return err
	}
	return n.writer.WriteRecord(tagID, payload)
}

type typeMismatchOnEdge struct{ name string }

func (e *typeMismatchOnEdge) Error() string {
	return "network output " + e.name + ": value does not match the edge's declared type"
}

// EmitWatermark always updates the gauge, and forwards to the writer
// only while the stream is ACTIVE, the same gate every other sink the
// builder produces applies (spec.md §4.1, §8 testable-property-1).
func (n *NetworkWriterOutput[T]) EmitWatermark(w record.Watermark) error {
	n.gauge.Set(w.Timestamp)
	if !n.status.StreamStatus().IsActive() {
		return nil
	}
	return n.writer.WriteWatermark(w)
}

func (n *NetworkWriterOutput[T]) EmitLatencyMarker(m record.LatencyMarker) error {
	return n.writer.WriteLatencyMarker(m)
}

// BroadcastEvent, unlike Collect/EmitWatermark, is not part of
// operator.OutputSink: it is driven directly by the chain controller
// against every non-chained output's writer (spec.md §4.7
// BroadcastCheckpointBarrier / BroadcastCheckpointCancelMarker /
// ToggleStreamStatus), never by an operator.
func (n *NetworkWriterOutput[T]) BroadcastEvent(ev writer.Event) error {
	return n.writer.BroadcastEvent(ev)
}

func (n *NetworkWriterOutput[T]) Flush() error {
	return n.writer.Flush()
}
