// Package metrics wraps uber-go/tally the way the teacher repo's
// stream.metricsSource wraps it: a small facade that exposes exactly the
// counters and gauges this module's operators need, without leaking the
// tally.Scope construction details into chain code.
package metrics

import (
	"sync/atomic"

	"github.com/uber-go/tally/v4"
)

// MetricGroup is the per-operator metrics home referenced by
// operator.Context.MetricGroup and populated by the chain builder with
// num_records_in / current_input_watermark / current_output_watermark.
type MetricGroup struct {
	scope tally.Scope
}

func NewMetricGroup(scope tally.Scope, operatorName string) *MetricGroup {
	return &MetricGroup{scope: scope.SubScope(operatorName)}
}

func (g *MetricGroup) Counter(name string) tally.Counter {
	return g.scope.Counter(name)
}

func (g *MetricGroup) Gauge(name string) tally.Gauge {
	return g.scope.Gauge(name)
}

// WatermarkGauge tracks the last watermark timestamp a sink observed,
// exposed both to the tally scope and directly to callers that need the
// raw value (the chain builder wires currentInputWatermark /
// currentOutputWatermark gauges from these).
type WatermarkGauge struct {
	current int64
	tally   tally.Gauge
}

// NewWatermarkGauge starts a gauge at math.MinInt64, matching the
// teacher's convention that "no watermark observed yet" reads lower than
// any real watermark.
func NewWatermarkGauge() *WatermarkGauge {
	return &WatermarkGauge{current: minInt64}
}

const minInt64 = -1 << 63

func (g *WatermarkGauge) Set(timestamp int64) {
	atomic.StoreInt64(&g.current, timestamp)
	if g.tally != nil {
		g.tally.Update(float64(timestamp))
	}
}

func (g *WatermarkGauge) Value() int64 {
	return atomic.LoadInt64(&g.current)
}

// AttachTally wires this gauge to a tally.Gauge so every future Set also
// reports to the metrics backend, matching the chain builder's step of
// registering IO_CURRENT_INPUT_WATERMARK / IO_CURRENT_OUTPUT_WATERMARK
// on each operator's metric group (spec.md §4.6 step 5).
func (g *WatermarkGauge) AttachTally(gauge tally.Gauge) {
	g.tally = gauge
}
