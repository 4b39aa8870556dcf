package operator

import "github.com/ravelstream/opchain/record"

// BaseOneInput gives OneInputOperator implementers sane no-op defaults
// for the methods most operators never need to override, the same way
// the teacher's operator.BaseOperator saves its embedders from writing
// empty Close/NotifyCheckpoint* bodies.
type BaseOneInput[IN, OUT any] struct{}

func (BaseOneInput[IN, OUT]) Close() error                                  { return nil }
func (BaseOneInput[IN, OUT]) ProcessWatermark(record.Watermark) error       { return nil }
func (BaseOneInput[IN, OUT]) ProcessLatencyMarker(record.LatencyMarker) error { return nil }
func (BaseOneInput[IN, OUT]) SetKeyContextElement1(record.StreamRecord[IN]) {}
func (BaseOneInput[IN, OUT]) PrepareSnapshotPreBarrier(int64) error         { return nil }

// BaseTwoInput is the two-input analogue, used by head operators that
// only care about ProcessElement1/ProcessElement2.
type BaseTwoInput[IN1, IN2, OUT any] struct{}

func (BaseTwoInput[IN1, IN2, OUT]) Close() error                                   { return nil }
func (BaseTwoInput[IN1, IN2, OUT]) ProcessWatermark(record.Watermark) error        { return nil }
func (BaseTwoInput[IN1, IN2, OUT]) ProcessLatencyMarker(record.LatencyMarker) error { return nil }
func (BaseTwoInput[IN1, IN2, OUT]) SetKeyContextElement1(record.StreamRecord[IN1]) {}
func (BaseTwoInput[IN1, IN2, OUT]) PrepareSnapshotPreBarrier(int64) error          { return nil }
