package chain_test

import (
	"bytes"
	"encoding/gob"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"

	"github.com/ravelstream/opchain/chain"
	"github.com/ravelstream/opchain/chainlog"
	"github.com/ravelstream/opchain/config"
	"github.com/ravelstream/opchain/operator"
	"github.com/ravelstream/opchain/record"
	"github.com/ravelstream/opchain/serde"
	"github.com/ravelstream/opchain/writer"
)

func newTestCtx() (tally.TestScope, chainlog.Logger) {
	scope := tally.NewTestScope("", nil)
	return scope, chainlog.Named("chain_test")
}

// Scenario A: head H (identity) chained into C (increments its input),
// C's sole output non-chained to N. Feeding [1,2,3] must deliver
// [2,3,4] to N, and both H and C must count exactly 3 records in.
func TestChainForwardsElementsToChainedSuccessor(t *testing.T) {
	w := writer.NewChannelWriter(4)
	c := &mockOneInput[int, int]{
		name: "C",
		process: func(m *mockOneInput[int, int], rec record.StreamRecord[int]) error {
			return operator.Emit[int](m.emit, rec.Value+1, rec.Timestamp, rec.HasTimestamp)
		},
	}
	cCfg := &config.StreamConfig{
		OperatorName: "C",
		Factory:      chain.OneInputNode[int, int](func() operator.OneInputOperator[int, int] { return c }),
		NonChainedOutputs: []config.StreamEdge{{
			SourceID:       "C",
			TargetID:       "N",
			Writer:         w,
			NetworkFactory: chain.NetworkEdge[int]("N", serde.GobCodec[int]{}, ""),
		}},
	}
	h := &mockOneInput[int, int]{name: "H"}
	root := &config.StreamConfig{
		OperatorName:   "H",
		Factory:        chain.OneInputNode[int, int](func() operator.OneInputOperator[int, int] { return h }),
		ChainedOutputs: []config.StreamEdge{{SourceID: "H", TargetID: "C"}},
		Chained:        map[string]*config.StreamConfig{"C": cCfg},
	}

	scope, logger := newTestCtx()
	controller, err := chain.Build(&testTask{objectReuse: true, root: root}, scope, logger)
	require.NoError(t, err)

	for _, v := range []int{1, 2, 3} {
		require.NoError(t, controller.Emit(record.StreamRecord[any]{Value: v}))
	}

	var got []int
	for i := 0; i < 3; i++ {
		env := <-w.Out()
		var v int
		require.NoError(t, gob.NewDecoder(bytes.NewReader(env.Payload)).Decode(&v))
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 3, 4}, got)

	// tally's snapshot keys end in a '+' tag separator even when a metric
	// carries no tags.
	assert.Equal(t, int64(3), scope.Snapshot().Counters()["H.num_records_in+"].Value(), "H.numRecordsIn")
	assert.Equal(t, int64(3), scope.Snapshot().Counters()["C.num_records_in+"].Value(), "C.numRecordsIn")
}

// Payload carries a pointer field so a defensive copy is observable: a
// gob round trip always allocates a fresh *Tag, while passing the value
// through unchanged keeps the same pointer.
type Payload struct {
	Tag *int
}

func init() {
	gob.Register(Payload{})
}

// Scenario B: object reuse disabled forces a defensive copy into the
// chained successor; object reuse enabled does not.
func TestChainCopyingModeFollowsObjectReuse(t *testing.T) {
	run := func(t *testing.T, objectReuse bool, expectSamePointer bool) {
		sink := &mockOneInput[Payload, any]{name: "sink"}
		sinkCfg := &config.StreamConfig{
			OperatorName: "sink",
			Factory:      chain.OneInputNode[Payload, any](func() operator.OneInputOperator[Payload, any] { return sink }),
		}
		head := &mockOneInput[Payload, Payload]{name: "head"}
		root := &config.StreamConfig{
			OperatorName:   "head",
			Factory:        chain.OneInputNode[Payload, Payload](func() operator.OneInputOperator[Payload, Payload] { return head }),
			ChainedOutputs: []config.StreamEdge{{SourceID: "head", TargetID: "sink"}},
			Chained:        map[string]*config.StreamConfig{"sink": sinkCfg},
		}

		scope, logger := newTestCtx()
		controller, err := chain.Build(&testTask{objectReuse: objectReuse, root: root}, scope, logger)
		require.NoError(t, err)

		tag := 9
		require.NoError(t, controller.Emit(record.StreamRecord[any]{Value: Payload{Tag: &tag}}))
		require.Len(t, sink.received, 1)
		gotSamePointer := sink.received[0].Value.Tag == &tag
		assert.Equal(t, expectSamePointer, gotSamePointer)
		assert.Equal(t, tag, *sink.received[0].Value.Tag)
	}

	t.Run("object reuse enabled forwards without copying", func(t *testing.T) {
		run(t, true, true)
	})
	t.Run("object reuse disabled copies defensively", func(t *testing.T) {
		run(t, false, false)
	})
}

// Scenario C: a producer with two chained successors fans its output
// out to both.
func TestChainBroadcastsToMultipleSuccessors(t *testing.T) {
	sinkA := &mockOneInput[int, any]{name: "sinkA"}
	sinkB := &mockOneInput[int, any]{name: "sinkB"}
	sinkACfg := &config.StreamConfig{
		OperatorName: "sinkA",
		Factory:      chain.OneInputNode[int, any](func() operator.OneInputOperator[int, any] { return sinkA }),
	}
	sinkBCfg := &config.StreamConfig{
		OperatorName: "sinkB",
		Factory:      chain.OneInputNode[int, any](func() operator.OneInputOperator[int, any] { return sinkB }),
	}
	head := &mockOneInput[int, int]{name: "head"}
	root := &config.StreamConfig{
		OperatorName: "head",
		Factory:      chain.OneInputNode[int, int](func() operator.OneInputOperator[int, int] { return head }),
		ChainedOutputs: []config.StreamEdge{
			{SourceID: "head", TargetID: "sinkA"},
			{SourceID: "head", TargetID: "sinkB"},
		},
		Chained: map[string]*config.StreamConfig{"sinkA": sinkACfg, "sinkB": sinkBCfg},
	}

	scope, logger := newTestCtx()
	controller, err := chain.Build(&testTask{objectReuse: true, root: root}, scope, logger)
	require.NoError(t, err)

	require.NoError(t, controller.Emit(record.StreamRecord[any]{Value: 3}))
	require.Len(t, sinkA.received, 1)
	require.Len(t, sinkB.received, 1)
	assert.Equal(t, 3, sinkA.received[0].Value)
	assert.Equal(t, 3, sinkB.received[0].Value)
}

// Scenario D: a two-input head only finalizes once both of its inputs
// have ended, then every BoundedOneInput operator in the chain is ended
// head to tail.
func TestChainEndInputStateMachine(t *testing.T) {
	var endOrder []string
	sink := &mockOneInput[int, any]{name: "sink", endInputs: &endOrder}
	sinkCfg := &config.StreamConfig{
		OperatorName: "sink",
		Factory:      chain.OneInputNode[int, any](func() operator.OneInputOperator[int, any] { return sink }),
	}
	head := &mockTwoInput[int, string, int]{name: "head", endInputs: &endOrder}
	root := &config.StreamConfig{
		OperatorName:   "head",
		Factory:        chain.TwoInputNode[int, string, int](func() operator.TwoInputOperator[int, string, int] { return head }),
		ChainedOutputs: []config.StreamEdge{{SourceID: "head", TargetID: "sink"}},
		Chained:        map[string]*config.StreamConfig{"sink": sinkCfg},
	}

	scope, logger := newTestCtx()
	controller, err := chain.Build(&testTask{objectReuse: true, root: root}, scope, logger)
	require.NoError(t, err)

	require.NoError(t, controller.EndInput(1))
	assert.Equal(t, []string{"head:1"}, endOrder, "the two-input head forwards EndInput per input id, but the chain is not finalized yet")

	require.NoError(t, controller.EndInput(1))
	assert.Equal(t, []string{"head:1"}, endOrder, "repeating an already-finished input must be a no-op")

	require.NoError(t, controller.EndInput(2))
	require.Equal(t, []string{"head:1", "head:2", "sink"}, endOrder)
}

// Scenario E: pushing a side-output record whose value does not match
// the tag's declared type surfaces as a chained-operator failure naming
// the offending tag.
func TestChainSideOutputTypeMismatch(t *testing.T) {
	sink := &mockOneInput[string, any]{name: "sink"}
	sinkCfg := &config.StreamConfig{
		OperatorName: "sink",
		Factory:      chain.OneInputNode[string, any](func() operator.OneInputOperator[string, any] { return sink }),
	}
	head := &mockOneInput[int, int]{name: "head"}
	head.process = func(m *mockOneInput[int, int], rec record.StreamRecord[int]) error {
		return operator.EmitTagged(m.emit, record.OutputTag[int]{ID: "sideA"}, rec.Value, rec.Timestamp, rec.HasTimestamp)
	}
	root := &config.StreamConfig{
		OperatorName:   "head",
		Factory:        chain.OneInputNode[int, int](func() operator.OneInputOperator[int, int] { return head }),
		ChainedOutputs: []config.StreamEdge{{SourceID: "head", TargetID: "sink", OutputTagID: "sideA"}},
		Chained:        map[string]*config.StreamConfig{"sink": sinkCfg},
	}

	scope, logger := newTestCtx()
	controller, err := chain.Build(&testTask{objectReuse: true, root: root}, scope, logger)
	require.NoError(t, err)

	err = controller.Emit(record.StreamRecord[any]{Value: 5})
	require.Error(t, err)
	var chained *chain.ExceptionInChainedOperator
	require.True(t, errors.As(err, &chained))
	assert.Contains(t, err.Error(), "sideA")
}

// Scenario F: an IDLE stream drops watermarks at a chaining output
// rather than forwarding them, while the exposed gauge still updates.
func TestChainDropsWatermarksWhileIdle(t *testing.T) {
	sink := &mockOneInput[int, any]{name: "sink"}
	sinkCfg := &config.StreamConfig{
		OperatorName: "sink",
		Factory:      chain.OneInputNode[int, any](func() operator.OneInputOperator[int, any] { return sink }),
	}
	head := &mockOneInput[int, int]{name: "head"}
	root := &config.StreamConfig{
		OperatorName:   "head",
		Factory:        chain.OneInputNode[int, int](func() operator.OneInputOperator[int, int] { return head }),
		ChainedOutputs: []config.StreamEdge{{SourceID: "head", TargetID: "sink"}},
		Chained:        map[string]*config.StreamConfig{"sink": sinkCfg},
	}

	scope, logger := newTestCtx()
	controller, err := chain.Build(&testTask{objectReuse: true, root: root}, scope, logger)
	require.NoError(t, err)

	require.NoError(t, controller.ToggleStreamStatus(record.Idle))
	require.NoError(t, controller.EmitWatermark(record.Watermark{Timestamp: 42}))
	assert.Empty(t, sink.watermarks, "an idle stream must drop watermarks rather than forward them")
	assert.Equal(t, int64(42), controller.GetChainEntryPoint().WatermarkGauge().Value())

	require.NoError(t, controller.ToggleStreamStatus(record.Active))
	require.NoError(t, controller.EmitWatermark(record.Watermark{Timestamp: 43}))
	require.Len(t, sink.watermarks, 1)
	assert.Equal(t, int64(43), sink.watermarks[0].Timestamp)
}

// A producer with output selectors routes each record only to the
// chained successors whose declared stream names match.
func TestChainDirectedOutputRoutesBySelector(t *testing.T) {
	even := &mockOneInput[int, any]{name: "even"}
	odd := &mockOneInput[int, any]{name: "odd"}
	evenCfg := &config.StreamConfig{
		OperatorName: "even",
		Factory:      chain.OneInputNode[int, any](func() operator.OneInputOperator[int, any] { return even }),
	}
	oddCfg := &config.StreamConfig{
		OperatorName: "odd",
		Factory:      chain.OneInputNode[int, any](func() operator.OneInputOperator[int, any] { return odd }),
	}
	selector := func(value any) []string {
		if value.(int)%2 == 0 {
			return []string{"even-stream"}
		}
		return []string{"odd-stream"}
	}
	head := &mockOneInput[int, int]{name: "head"}
	root := &config.StreamConfig{
		OperatorName: "head",
		Factory:      chain.OneInputNode[int, int](func() operator.OneInputOperator[int, int] { return head }),
		ChainedOutputs: []config.StreamEdge{
			{SourceID: "head", TargetID: "even", SelectorNames: []string{"even-stream"}},
			{SourceID: "head", TargetID: "odd", SelectorNames: []string{"odd-stream"}},
		},
		OutputSelectors: []config.OutputSelector{selector},
		Chained:         map[string]*config.StreamConfig{"even": evenCfg, "odd": oddCfg},
	}

	scope, logger := newTestCtx()
	controller, err := chain.Build(&testTask{objectReuse: false, root: root}, scope, logger)
	require.NoError(t, err)

	require.NoError(t, controller.Emit(record.StreamRecord[any]{Value: 4}))
	require.Len(t, even.received, 1)
	assert.Empty(t, odd.received)
	assert.Equal(t, 4, even.received[0].Value)

	require.NoError(t, controller.Emit(record.StreamRecord[any]{Value: 7}))
	require.Len(t, odd.received, 1)
	assert.Len(t, even.received, 1)
	assert.Equal(t, 7, odd.received[0].Value)
}

// A BarrierIDGenerator mints strictly increasing ids, suitable for a
// caller of BroadcastCheckpointBarrier with no externally supplied id.
func TestBarrierIDGeneratorMonotonic(t *testing.T) {
	gen, err := chain.NewBarrierIDGenerator(1)
	require.NoError(t, err)

	first := gen.Next()
	second := gen.Next()
	assert.Greater(t, second, first)
}

// A non-chained edge routes through a network writer output rather than
// a chained successor.
func TestChainRoutesNonChainedEdgeToNetworkWriter(t *testing.T) {
	w := writer.NewChannelWriter(4)
	head := &mockOneInput[int, int]{name: "head"}
	root := &config.StreamConfig{
		OperatorName: "head",
		Factory:      chain.OneInputNode[int, int](func() operator.OneInputOperator[int, int] { return head }),
		NonChainedOutputs: []config.StreamEdge{{
			SourceID:       "head",
			TargetID:       "downstream-task",
			Writer:         w,
			NetworkFactory: chain.NetworkEdge[int]("downstream-task", serde.GobCodec[int]{}, ""),
		}},
	}

	scope, logger := newTestCtx()
	controller, err := chain.Build(&testTask{objectReuse: true, root: root}, scope, logger)
	require.NoError(t, err)

	require.NoError(t, controller.Emit(record.StreamRecord[any]{Value: 11}))
	select {
	case env := <-w.Out():
		assert.NotEmpty(t, env.Payload)
	default:
		t.Fatal("expected a record to be written to the network writer")
	}

	require.NoError(t, controller.BroadcastCheckpointBarrier(1, 1000))
	select {
	case env := <-w.Out():
		barrier, ok := env.Event.(writer.CheckpointBarrier)
		require.True(t, ok)
		assert.Equal(t, int64(1), barrier.CheckpointID)
	default:
		t.Fatal("expected a checkpoint barrier to be broadcast")
	}
}
