package chain

import (
	"github.com/ravelstream/opchain/config"
	"github.com/ravelstream/opchain/metrics"
	"github.com/ravelstream/opchain/operator"
	"github.com/ravelstream/opchain/record"
)

// directedRoute pairs an output with the named output streams it
// answers to, so DirectedOutput can match a selector's result against
// it (spec.md §4.4).
type directedRoute struct {
	names  map[string]struct{}
	output operator.OutputSink
}

func newDirectedRoute(names []string, output operator.OutputSink) directedRoute {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return directedRoute{names: set, output: output}
}

// DirectedOutput routes each record to the subset of its recipients
// whose declared output-stream names intersect the names the
// configured selectors produce for that record's value, without
// copying the record (spec.md §4.4). A record matching no selector name
// is silently dropped; a record matched by more than one selector is
// still delivered to each matching recipient exactly once.
type DirectedOutput struct {
	selectors []config.OutputSelector
	routes    []directedRoute
	status    statusSource
	gauge     *metrics.WatermarkGauge
}

func NewDirectedOutput(selectors []config.OutputSelector, routes []directedRoute, status statusSource) *DirectedOutput {
	return &DirectedOutput{selectors: selectors, routes: routes, status: status, gauge: metrics.NewWatermarkGauge()}
}

func (d *DirectedOutput) WatermarkGauge() *metrics.WatermarkGauge { return d.gauge }

func (d *DirectedOutput) Close() error {
	var first error
	for _, r := range d.routes {
		if err := r.output.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// matches evaluates every selector against value and returns the set of
// matched route indices, in route declaration order, each at most once.
func (d *DirectedOutput) matches(value any) []int {
	selected := make(map[string]struct{})
	for _, sel := range d.selectors {
		for _, name := range sel(value) {
			selected[name] = struct{}{}
		}
	}
	var idx []int
	for i, r := range d.routes {
		for name := range r.names {
			if _, ok := selected[name]; ok {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

func (d *DirectedOutput) Collect(rec record.StreamRecord[any]) error {
	for _, i := range d.matches(rec.Value) {
		if err := d.routes[i].output.Collect(rec); err != nil {
			return err
		}
	}
	return nil
}

func (d *DirectedOutput) CollectTagged(tagID string, rec record.StreamRecord[any]) error {
	for _, i := range d.matches(rec.Value) {
		if err := d.routes[i].output.CollectTagged(tagID, rec); err != nil {
			return err
		}
	}
	return nil
}

func (d *DirectedOutput) EmitWatermark(w record.Watermark) error {
	d.gauge.Set(w.Timestamp)
	if !d.status.StreamStatus().IsActive() {
		return nil
	}
	for _, r := range d.routes {
		if err := r.output.EmitWatermark(w); err != nil {
			return err
		}
	}
	return nil
}

func (d *DirectedOutput) EmitLatencyMarker(m record.LatencyMarker) error {
	for _, r := range d.routes {
		if err := r.output.EmitLatencyMarker(m); err != nil {
			return err
		}
	}
	return nil
}

// CopyingDirectedOutput is the copying counterpart of DirectedOutput,
// selected under the same inverted object-reuse rule as broadcasting
// output (spec.md §4.4, §4.6 step 5): every matched recipient but the
// last gets a fresh envelope around the same value reference.
type CopyingDirectedOutput struct {
	DirectedOutput
}

func NewCopyingDirectedOutput(selectors []config.OutputSelector, routes []directedRoute, status statusSource) *CopyingDirectedOutput {
	return &CopyingDirectedOutput{
		DirectedOutput: DirectedOutput{selectors: selectors, routes: routes, status: status, gauge: metrics.NewWatermarkGauge()},
	}
}

func (d *CopyingDirectedOutput) Collect(rec record.StreamRecord[any]) error {
	return d.fanOut(rec, func(out operator.OutputSink, r record.StreamRecord[any]) error { return out.Collect(r) })
}

func (d *CopyingDirectedOutput) CollectTagged(tagID string, rec record.StreamRecord[any]) error {
	return d.fanOut(rec, func(out operator.OutputSink, r record.StreamRecord[any]) error {
		return out.CollectTagged(tagID, r)
	})
}

func (d *CopyingDirectedOutput) fanOut(rec record.StreamRecord[any], send func(operator.OutputSink, record.StreamRecord[any]) error) error {
	idx := d.matches(rec.Value)
	n := len(idx)
	if n == 0 {
		return nil
	}
	for i := 0; i < n-1; i++ {
		if err := send(d.routes[idx[i]].output, rec.Copy()); err != nil {
			return err
		}
	}
	return send(d.routes[idx[n-1]].output, rec)
}
