// Package chain assembles and drives an in-task operator chain: the
// fused sequence of operators a single task runs without crossing a
// network boundary between them, plus the sinks that fan a producer's
// output out to its chained successors, network writers, or both
// (spec.md, all sections).
package chain

import (
	"github.com/pkg/errors"
	"github.com/uber-go/tally/v4"

	"github.com/ravelstream/opchain/chainlog"
	"github.com/ravelstream/opchain/config"
	"github.com/ravelstream/opchain/metrics"
	"github.com/ravelstream/opchain/operator"
	"github.com/ravelstream/opchain/serde"
	"github.com/ravelstream/opchain/writer"
)

// ContainingTask is the external collaborator the builder needs: the
// task's object-reuse mode and the static configuration of its head
// operator, whose own out-edges describe the rest of the chain (spec.md
// §1 "Out of scope: task scheduling", §4.6).
type ContainingTask interface {
	ObjectReuseEnabled() bool
	RootConfig() *config.StreamConfig
}

type builder struct {
	objectReuse   bool
	status        *sharedStatus
	scope         tally.Scope
	logger        chainlog.Logger
	allOperators  []operator.Operator
	streamOutputs []writer.Output
}

// Build assembles a chain bottom-up from task's configuration (spec.md
// §4.6): recursively resolving each chained successor before its
// predecessor, choosing copying vs non-copying sinks per the object
// reuse mode, and instantiating the head operator last against the
// topmost sink the recursion produced. If any step fails, every
// non-chained output already constructed is closed before the error is
// returned, mirroring the original implementation's constructor
// try/finally.
func Build(task ContainingTask, scope tally.Scope, logger chainlog.Logger) (*ChainController, error) {
	root := task.RootConfig()
	if root == nil {
		return nil, errors.New("chain: containing task has no root configuration")
	}
	b := &builder{
		objectReuse: task.ObjectReuseEnabled(),
		status:      newSharedStatus(),
		scope:       scope,
		logger:      logger,
	}

	entryOutput, err := b.buildFanOut(root)
	if err != nil {
		b.closeStreamOutputs()
		return nil, err
	}

	headCtx := b.operatorContext(root.OperatorName)
	result, err := root.Factory(config.BuildContext{
		Name:        root.OperatorName,
		Output:      entryOutput,
		Ctx:         headCtx,
		ObjectReuse: b.objectReuse,
	})
	if err != nil {
		b.closeStreamOutputs()
		return nil, errors.WithMessagef(err, "failed to construct head operator %q", root.OperatorName)
	}
	result.Operator.SetMetricGroup(headCtx.MetricGroup())
	entryOutput.WatermarkGauge().AttachTally(headCtx.MetricGroup().Gauge("current_output_watermark"))
	b.allOperators = append(b.allOperators, result.Operator)

	headCounter := headCtx.MetricGroup().Counter("num_records_in")
	return newChainController(b.allOperators, b.streamOutputs, entryOutput, result.Operator, b.status, headCounter), nil
}

func (b *builder) operatorContext(name string) operator.Context {
	group := metrics.NewMetricGroup(b.scope, name)
	return operator.NewContext(b.logger.Named(name), group)
}

func (b *builder) closeStreamOutputs() {
	for _, out := range b.streamOutputs {
		_ = out.Close()
	}
}

// buildFanOut resolves the sink a single operator's own StreamConfig
// describes: its non-chained (network) outputs, its chained successors
// (built recursively, predecessor last), and the selectors that decide
// how those come together (spec.md §4.6 steps 1-4).
func (b *builder) buildFanOut(cfg *config.StreamConfig) (operator.OutputSink, error) {
	var allOutputs []operator.OutputSink
	var routes []directedRoute

	for _, edge := range cfg.NonChainedOutputs {
		if edge.NetworkFactory == nil {
			return nil, errors.Errorf("chain: non-chained edge %s->%s has no network factory", edge.SourceID, edge.TargetID)
		}
		out, err := edge.NetworkFactory(edge.Writer, b.status)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to build network output for edge %s->%s", edge.SourceID, edge.TargetID)
		}
		b.streamOutputs = append(b.streamOutputs, out)
		allOutputs = append(allOutputs, out)
		routes = append(routes, newDirectedRoute(edge.SelectorNames, out))
	}

	for _, edge := range cfg.ChainedOutputs {
		child, ok := cfg.Chained[edge.TargetID]
		if !ok || child == nil {
			return nil, errors.Errorf("chain: chained edge %s->%s has no target configuration", edge.SourceID, edge.TargetID)
		}
		wrapped, err := b.buildChainedOperator(child, edge)
		if err != nil {
			return nil, err
		}
		allOutputs = append(allOutputs, wrapped)
		routes = append(routes, newDirectedRoute(edge.SelectorNames, wrapped))
	}

	switch {
	case len(cfg.OutputSelectors) > 0:
		if b.objectReuse {
			return NewCopyingDirectedOutput(cfg.OutputSelectors, routes, b.status), nil
		}
		return NewDirectedOutput(cfg.OutputSelectors, routes, b.status), nil
	case len(allOutputs) == 1:
		return allOutputs[0], nil
	default:
		if b.objectReuse {
			return NewCopyingBroadcastingOutput(allOutputs, b.status), nil
		}
		return NewBroadcastingOutput(allOutputs, b.status), nil
	}
}

// buildChainedOperator recurses into child's own fan-out, instantiates
// child's operator against it, registers its metric gauges, appends it
// to allOperators, and returns the ChainingOutput/CopyingChainingOutput
// binding it back to its predecessor (spec.md §4.6 step 5).
//
// The copying decision here is the inverse of buildFanOut's combinators:
// a chaining output copies iff object reuse is DISABLED, while
// broadcasting/directed outputs copy iff object reuse is ENABLED. Under
// object reuse, a chained successor never copies its input, so a
// multi-way fan-out feeding more than one successor must copy on the
// way out instead; a single chained successor doesn't need that,
// because nothing else observes the same value.
func (b *builder) buildChainedOperator(child *config.StreamConfig, edge config.StreamEdge) (operator.OutputSink, error) {
	childOutput, err := b.buildFanOut(child)
	if err != nil {
		return nil, err
	}
	childCtx := b.operatorContext(child.OperatorName)
	result, err := child.Factory(config.BuildContext{
		Name:        child.OperatorName,
		Output:      childOutput,
		Ctx:         childCtx,
		ObjectReuse: b.objectReuse,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to construct chained operator %q", child.OperatorName)
	}
	result.Operator.SetMetricGroup(childCtx.MetricGroup())
	childOutput.WatermarkGauge().AttachTally(childCtx.MetricGroup().Gauge("current_output_watermark"))
	b.allOperators = append(b.allOperators, result.Operator)

	sink, ok := result.Operator.(operator.ElementSink)
	if !ok {
		return nil, errors.Errorf("chain: chained operator %q must be one-input", child.OperatorName)
	}

	counter := childCtx.MetricGroup().Counter("num_records_in")
	var wrapped operator.OutputSink
	if b.objectReuse {
		wrapped = NewChainingOutput(child.OperatorName, sink, edge.OutputTagID, b.status, counter)
	} else {
		wrapped = NewCopyingChainingOutput(child.OperatorName, sink, edge.OutputTagID, b.status, counter, serde.GobSerializer[any]{})
	}
	wrapped.WatermarkGauge().AttachTally(childCtx.MetricGroup().Gauge("current_input_watermark"))
	return wrapped, nil
}
