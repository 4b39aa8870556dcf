package writer

import (
	"github.com/pkg/errors"

	"github.com/ravelstream/opchain/record"
)

// Envelope is what a ChannelWriter puts on its channel: exactly one of a
// serialized record (OutputTagID/Payload set), a Watermark, a
// LatencyMark, or a control Event.
type Envelope struct {
	OutputTagID string
	Payload     []byte
	Watermark   *record.Watermark
	LatencyMark *record.LatencyMarker
	Event       Event
}

// ChannelWriter is a reference RecordWriter backed by a bounded Go
// channel, grounded on the teacher's task.collector Emit-func-over-a-
// channel plumbing (task/collector.go, task/mutex.go): sending blocks
// once the channel is full, giving the same natural backpressure a real
// network transport's bounded send buffer would.
type ChannelWriter struct {
	out    chan Envelope
	closed chan struct{}
}

func NewChannelWriter(capacity int) *ChannelWriter {
	return &ChannelWriter{out: make(chan Envelope, capacity), closed: make(chan struct{})}
}

func (w *ChannelWriter) Out() <-chan Envelope { return w.out }

func (w *ChannelWriter) send(e Envelope) error {
	select {
	case <-w.closed:
		return errors.New("channel writer is closed")
	case w.out <- e:
		return nil
	}
}

func (w *ChannelWriter) WriteRecord(outputTagID string, payload []byte) error {
	return w.send(Envelope{OutputTagID: outputTagID, Payload: payload})
}

func (w *ChannelWriter) WriteWatermark(wm record.Watermark) error {
	return w.send(Envelope{Watermark: &wm})
}

func (w *ChannelWriter) WriteLatencyMarker(m record.LatencyMarker) error {
	return w.send(Envelope{LatencyMark: &m})
}

func (w *ChannelWriter) BroadcastEvent(ev Event) error {
	return w.send(Envelope{Event: ev})
}

func (w *ChannelWriter) Flush() error { return nil }

func (w *ChannelWriter) Close() error {
	select {
	case <-w.closed:
		return nil
	default:
		close(w.closed)
	}
	return nil
}
