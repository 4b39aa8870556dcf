// Package config models the static, read-only topology a chain is built
// from: StreamEdge, StreamConfig, output selectors and the partitioner/
// serializer descriptors an edge carries (spec.md §3).
//
// StreamConfig deliberately does not know how to construct an operator
// by itself — Go has no runtime type erasure to fall back on the way the
// original Java implementation's reflection-loaded StreamOperatorFactory
// does. Instead each node carries a NodeFactory closure that captures
// its own operator's concrete IN/OUT types at the point the topology is
// assembled (see chain.OneInputNode / chain.TwoInputNode), and the
// builder only ever calls that closure — it never needs to know the
// concrete type parameters itself.
package config

import (
	"github.com/ravelstream/opchain/operator"
	"github.com/ravelstream/opchain/record"
	"github.com/ravelstream/opchain/writer"
)

// PartitionerKind selects how a non-chained edge distributes records
// across the target task's parallel subtasks.
type PartitionerKind int

const (
	Forward PartitionerKind = iota
	Broadcast
	KeyHash
)

// PartitionerDescriptor is carried by a StreamEdge (spec.md §3) as data;
// the network writer output built from that edge does not receive it and
// writes every record to the edge's single writer. A KeyHash target
// index can be computed with murmur3 (see
// chain.KeyHashPartitioner), the same hashing library the teacher
// depends on transitively through its checkpoint backend and otherwise
// never exercises directly in this component's scope.
type PartitionerDescriptor struct {
	Kind PartitionerKind
	Seed uint32
}

// SerializerKind names the codec an edge's payload was designed for.
// It is data-model-only: the builder always copies a chained fan-out's
// dynamic value with serde.GobSerializer[any] (the one serializer that
// works for a heterogeneous mix of main-stream and side-output types
// sharing a single node, see chain.CopyingChainingOutput), and a
// non-chained edge's writer.Output is built directly from the
// serde.Codec[T] passed to chain.NetworkEdge rather than resolved from
// this descriptor. SerializerKind exists so an edge can still record,
// for tooling or diagnostics, which wire format its payload maps to.
type SerializerKind int

const (
	GobCodec SerializerKind = iota
	ProtoCodec
)

type SerializerDescriptor struct {
	Kind SerializerKind
}

// OutputSelector maps a record's value to zero or more named output
// streams (spec.md §4.4). Selectors are evaluated in declaration order.
type OutputSelector func(value any) []string

// StreamEdge is a static topology edge: {source, target, optional
// side-output tag, partitioner, serializer} (spec.md §3). It is
// read-only once constructed.
type StreamEdge struct {
	SourceID string
	TargetID string

	// OutputTagID is "" for the main stream and non-empty for a side
	// output; SelectorNames lists the named output streams this edge
	// answers to for directed-output routing (spec.md §4.4). An edge
	// with no selector names is only reachable when the producer has no
	// selectors at all (the broadcasting/single-successor fast paths).
	OutputTagID   string
	SelectorNames []string

	Partitioner PartitionerDescriptor
	Serializer  SerializerDescriptor

	// Writer and NetworkFactory are set only on non-chained edges: Writer
	// is the already-constructed transport for this edge, and
	// NetworkFactory captures the edge's concrete element type to build
	// the writer.Output that encodes records onto it (see chain.NetworkEdge).
	Writer         writer.RecordWriter
	NetworkFactory NetworkFactory
}

// StatusSource lets a non-chained edge's sink ask the owning chain
// whether it is currently ACTIVE or IDLE, the same gate every chained
// sink applies to watermark forwarding (spec.md §4.1). It exists in
// this package, rather than being imported from chain, purely to avoid
// an import cycle; chain's own status type satisfies it structurally.
type StatusSource interface {
	StreamStatus() record.StreamStatus
}

// NetworkFactory builds a non-chained edge's sink around an already
// constructed writer.RecordWriter and the chain's shared status source
// (spec.md §4.5).
type NetworkFactory func(w writer.RecordWriter, status StatusSource) (writer.Output, error)

// BuildContext is what the chain builder hands a NodeFactory when
// instantiating the operator that node describes.
type BuildContext struct {
	Name        string
	Output      operator.Emitter
	Ctx         operator.Context
	ObjectReuse bool
}

// NodeResult is what a NodeFactory hands back to the builder: the
// runtime-erased operator to register in the chain's operator list. The
// OutputSink a chained, non-head node's predecessor pushes into
// (ChainingOutput or CopyingChainingOutput) is built by the builder
// itself, wrapping this Operator, once it has come back here — see
// chain.buildChainedOperator.
type NodeResult struct {
	Operator operator.Operator
}

// NodeFactory is supplied by whoever assembles a StreamConfig tree
// (typically via chain.OneInputNode / chain.TwoInputNode, which capture
// the operator's concrete generic types in the closure).
type NodeFactory func(build BuildContext) (NodeResult, error)

// StreamConfig is the per-operator static configuration the builder
// walks (spec.md §3): the node's own factory, its chained/non-chained
// out-edges, its nested chained configs keyed by target operator id, and
// any output selectors.
type StreamConfig struct {
	OperatorName string
	Factory      NodeFactory

	ChainedOutputs    []StreamEdge
	NonChainedOutputs []StreamEdge
	OutputSelectors   []OutputSelector

	// Chained maps a chained edge's TargetID to that successor's own
	// StreamConfig, letting the builder recurse without a separate
	// registry.
	Chained map[string]*StreamConfig
}
