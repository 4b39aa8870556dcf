package chain

import (
	"github.com/ravelstream/opchain/config"
	"github.com/ravelstream/opchain/operator"
	"github.com/ravelstream/opchain/serde"
	"github.com/ravelstream/opchain/writer"
)

// OneInputNode builds a config.NodeFactory for a one-input operator,
// capturing IN/OUT in the closure so config.StreamConfig itself never
// needs to be generic (spec.md §3, §4.6). Defensive copying for this
// node's inbound edge, when the builder needs it, is applied by the
// builder itself against the record's dynamic value (see
// chain.CopyingChainingOutput) rather than here.
func OneInputNode[IN, OUT any](newOp operator.NewOneInputOperator[IN, OUT]) config.NodeFactory {
	return func(build config.BuildContext) (config.NodeResult, error) {
		op := newOp()
		sink := operator.AdaptOneInput[IN, OUT](build.Name, op)
		type opener interface {
			Open(ctx operator.Context, out operator.Emitter) error
		}
		if err := sink.(opener).Open(build.Ctx, build.Output); err != nil {
			return config.NodeResult{}, err
		}
		return config.NodeResult{Operator: sink}, nil
	}
}

// TwoInputNode is the head-only analogue of OneInputNode.
func TwoInputNode[IN1, IN2, OUT any](newOp operator.NewTwoInputOperator[IN1, IN2, OUT]) config.NodeFactory {
	return func(build config.BuildContext) (config.NodeResult, error) {
		op := newOp()
		out := operator.AdaptTwoInput[IN1, IN2, OUT](build.Name, op)
		type opener interface {
			Open(ctx operator.Context, out operator.Emitter) error
		}
		if err := out.(opener).Open(build.Ctx, build.Output); err != nil {
			return config.NodeResult{}, err
		}
		return config.NodeResult{Operator: out}, nil
	}
}

// NetworkEdge builds a config.NetworkFactory for a non-chained edge
// whose element type is T, using codec to encode outgoing records
// (spec.md §4.5).
func NetworkEdge[T any](name string, codec serde.Codec[T], outputTagID string) config.NetworkFactory {
	return func(w writer.RecordWriter, status config.StatusSource) (writer.Output, error) {
		return NewNetworkWriterOutput[T](name, w, codec, outputTagID, status), nil
	}
}
