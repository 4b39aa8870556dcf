package chain

import (
	"github.com/pkg/errors"

	"github.com/ravelstream/opchain/chainlog"
	"github.com/ravelstream/opchain/operator"
	"github.com/ravelstream/opchain/record"
	"github.com/ravelstream/opchain/writer"
)

// ChainController is the assembled chain: the operator list in
// tail-to-head order (deepest chained successor first, head last), the
// non-chained outputs it can broadcast control events to, the sink the
// head operator writes into, and the shared ACTIVE/IDLE status every
// sink in the chain reads (spec.md §4.7).
type ChainController struct {
	allOperators     []operator.Operator
	streamOutputs    []writer.Output
	chainEntryPoint  operator.OutputSink
	headOperator     operator.Operator
	headNumRecordsIn metricsCounter

	status *sharedStatus

	numInputs    int
	finishedMask uint32
}

func newChainController(allOperators []operator.Operator, streamOutputs []writer.Output, chainEntryPoint operator.OutputSink, headOperator operator.Operator, status *sharedStatus, headNumRecordsIn metricsCounter) *ChainController {
	numInputs := 1
	if headOperator.Kind() == operator.KindTwoInput {
		numInputs = 2
	}
	return &ChainController{
		allOperators:     allOperators,
		streamOutputs:    streamOutputs,
		chainEntryPoint:  chainEntryPoint,
		headOperator:     headOperator,
		headNumRecordsIn: headNumRecordsIn,
		status:           status,
		numInputs:        numInputs,
	}
}

// GetChainEntryPoint returns the sink the head operator was constructed
// against — the topmost sink the builder's recursion produced (spec.md
// §4.6, §6).
func (c *ChainController) GetChainEntryPoint() operator.OutputSink { return c.chainEntryPoint }

// GetHeadOperator returns the chain's head, the operator a containing
// task drives directly with its own input records (spec.md §6).
func (c *ChainController) GetHeadOperator() operator.Operator { return c.headOperator }

// AllOperators returns the full fused chain in tail-to-head order.
func (c *ChainController) AllOperators() []operator.Operator {
	out := make([]operator.Operator, len(c.allOperators))
	copy(out, c.allOperators)
	return out
}

func (c *ChainController) StreamStatus() record.StreamStatus { return c.status.StreamStatus() }

// Emit pushes a record into the chain's head operator, standing in for
// the containing task's input reader for a one-input or source head
// (spec.md §6's "receives records from the task's input reader";
// two-input heads are driven by the containing task's own input
// demultiplexing, out of this module's scope). It increments the head's
// own num_records_in counter first, the same accounting every chained
// successor gets from its ChainingOutput, since nothing sits in front
// of the head to count on its behalf.
func (c *ChainController) Emit(rec record.StreamRecord[any]) error {
	sink, ok := c.headOperator.(operator.ElementSink)
	if !ok {
		return errors.Errorf("chain: head operator %q does not accept single-stream input", c.headOperator.Name())
	}
	c.headNumRecordsIn.Inc(1)
	return sink.ProcessElement(rec)
}

// EmitWatermark pushes a watermark into the chain's head operator.
func (c *ChainController) EmitWatermark(w record.Watermark) error {
	sink, ok := c.headOperator.(operator.ElementSink)
	if !ok {
		return errors.Errorf("chain: head operator %q does not accept single-stream input", c.headOperator.Name())
	}
	return sink.ProcessWatermark(w)
}

// ToggleStreamStatus updates the shared ACTIVE/IDLE flag and broadcasts
// the change to every non-chained output, but only when the status
// actually changes (spec.md §4.7).
func (c *ChainController) ToggleStreamStatus(status record.StreamStatus) error {
	if !c.status.set(status) {
		return nil
	}
	return c.broadcast(writer.StreamStatusChanged{Status: status})
}

// BroadcastCheckpointBarrier sends a checkpoint barrier to every
// non-chained output of this task (spec.md §4.7).
func (c *ChainController) BroadcastCheckpointBarrier(checkpointID, timestamp int64) error {
	return c.broadcast(writer.CheckpointBarrier{CheckpointID: checkpointID, Timestamp: timestamp})
}

// BroadcastCheckpointCancelMarker sends a checkpoint cancellation marker
// to every non-chained output of this task (spec.md §4.7).
func (c *ChainController) BroadcastCheckpointCancelMarker(checkpointID int64) error {
	return c.broadcast(writer.CheckpointCancelMarker{CheckpointID: checkpointID})
}

func (c *ChainController) broadcast(ev writer.Event) error {
	var first error
	for _, out := range c.streamOutputs {
		if err := out.BroadcastEvent(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PrepareSnapshotPreBarrier walks the chain head-to-tail, calling
// PrepareSnapshotPreBarrier on every operator so an upstream operator's
// pre-barrier flush can still push records into a downstream operator
// that hasn't been asked to flush yet (spec.md §4.7).
func (c *ChainController) PrepareSnapshotPreBarrier(checkpointID int64) error {
	for i := len(c.allOperators) - 1; i >= 0; i-- {
		if err := c.allOperators[i].PrepareSnapshotPreBarrier(checkpointID); err != nil {
			return errors.WithMessagef(err, "operator %q failed to prepare snapshot pre-barrier", c.allOperators[i].Name())
		}
	}
	return nil
}

func (c *ChainController) allInputsSelected() bool {
	return c.finishedMask == (uint32(1)<<uint(c.numInputs))-1
}

// EndInput signals that the containing task's input reader has
// exhausted the given input id. Input ids are 1-based (spec.md §3's
// finished-inputs bitmask, §4.7's end-of-input state machine).
//
// For a one-input or source head, any call marks every input finished
// immediately, matching the original implementation's convention that a
// non-multi-input head only ever has a single logical input. For a
// two-input head, each id is tracked independently: EndInput forwards
// to the head's BoundedMultiInput.EndInput before recording that input
// as finished, and repeated calls for an already-finished input are a
// no-op. Once every input is finished, EndInput() is invoked, head to
// tail, on every operator in the chain that implements
// BoundedOneInput.
func (c *ChainController) EndInput(inputID int) error {
	if c.allInputsSelected() {
		return nil
	}

	if c.headOperator.Kind() == operator.KindTwoInput {
		bit := uint32(1) << uint(inputID-1)
		if c.finishedMask&bit != 0 {
			return nil
		}
		if multi, ok := c.headOperator.AsBoundedMultiInput(); ok {
			if err := multi.EndInput(inputID); err != nil {
				return errors.WithMessagef(err, "head operator %q failed to end input %d", c.headOperator.Name(), inputID)
			}
		}
		c.finishedMask |= bit
	} else {
		c.finishedMask = (uint32(1) << uint(c.numInputs)) - 1
	}

	if !c.allInputsSelected() {
		return nil
	}

	for i := len(c.allOperators) - 1; i >= 0; i-- {
		if one, ok := c.allOperators[i].AsBoundedOneInput(); ok {
			if err := one.EndInput(); err != nil {
				return errors.WithMessagef(err, "operator %q failed to end input", c.allOperators[i].Name())
			}
		}
	}
	return nil
}

// FlushOutputs flushes every non-chained output (spec.md §4.7).
func (c *ChainController) FlushOutputs() error {
	var first error
	for _, out := range c.streamOutputs {
		if err := out.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ReleaseOutputs closes every operator and every non-chained output.
// Failures are logged rather than propagated: a chain being torn down
// must not be left half-closed because one operator's Close returned an
// error (spec.md §4.7, mirroring the teacher's safe.Run "be safe, don't
// panic" convention applied to teardown).
func (c *ChainController) ReleaseOutputs(logger chainlog.Logger) {
	for i := len(c.allOperators) - 1; i >= 0; i-- {
		if err := c.allOperators[i].Close(); err != nil {
			logger.Errorf("failed to close operator %q: %v", c.allOperators[i].Name(), err)
		}
	}
	for _, out := range c.streamOutputs {
		if err := out.Close(); err != nil {
			logger.Errorf("failed to close stream output: %v", err)
		}
	}
}
