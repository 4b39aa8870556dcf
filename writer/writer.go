// Package writer defines the network-facing collaborator a chain's
// non-chained outputs hand serialized records and broadcast events to
// (spec.md §1 "External interfaces": "A network writer output ...
// abstraction only"). This module owns none of the actual network
// stack — it only depends on the narrow contract below, grounded on the
// teacher's stream.Writer/stream.Reader channel abstraction.
package writer

import (
	"github.com/ravelstream/opchain/operator"
	"github.com/ravelstream/opchain/record"
)

// Event is broadcast to every non-chained output of a task uniformly,
// ahead of or instead of a data record (spec.md §4.5, §4.7
// BroadcastCheckpointBarrier/BroadcastCheckpointCancelMarker/
// ToggleStreamStatus).
type Event interface {
	isWriterEvent()
}

type CheckpointBarrier struct {
	CheckpointID int64
	Timestamp    int64
}

type CheckpointCancelMarker struct {
	CheckpointID int64
}

type StreamStatusChanged struct {
	Status record.StreamStatus
}

func (CheckpointBarrier) isWriterEvent()      {}
func (CheckpointCancelMarker) isWriterEvent() {}
func (StreamStatusChanged) isWriterEvent()    {}

// RecordWriter is the contract a NetworkWriterOutput drives (spec.md
// §4.5): serialize-and-send a record keyed by an optional side-output
// tag, forward a watermark or latency marker as an encoded event, and
// broadcast a control event to every downstream channel this writer
// owns. Grounded on the teacher's stream.Writer interface
// (element/stream/writer.go), generalized from a single Go channel of
// *element.Record to an explicit method set so a ChannelWriter test
// double and a real network transport can share the same seam.
type RecordWriter interface {
	// WriteRecord sends already-serialized record bytes downstream,
	// tagged with the optional side-output id ("" for main).
	WriteRecord(outputTagID string, payload []byte) error
	WriteWatermark(w record.Watermark) error
	WriteLatencyMarker(m record.LatencyMarker) error
	BroadcastEvent(ev Event) error
	Flush() error
	Close() error
}

// Output is what a non-chained edge's sink presents to the chain
// controller: the same operator.OutputSink facet every sink exposes to
// its producing operator, plus the two extra operations only the
// controller itself drives directly (broadcasting a control event ahead
// of/instead of records, and flushing on demand) — the Go analogue of
// the original implementation's streamOutputs list of RecordWriterOutput
// (spec.md §4.5, §4.7).
type Output interface {
	operator.OutputSink
	BroadcastEvent(ev Event) error
	Flush() error
}
