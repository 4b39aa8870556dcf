package chain

import "github.com/pkg/errors"

// ExceptionInChainedOperator wraps a failure raised by a chained
// operator's own code (ProcessElement, ProcessWatermark, ...), the way
// the original Java implementation's ExceptionInChainedOperatorException
// tags a raw exception with the chained operator's name so an operator
// failing deep in a fused chain doesn't read like the chain itself
// broke (spec.md §7).
type ExceptionInChainedOperator struct {
	Operator string
	cause    error
}

func (e *ExceptionInChainedOperator) Error() string {
	return "could not forward element to next operator " + e.Operator + ": " + e.cause.Error()
}

func (e *ExceptionInChainedOperator) Unwrap() error { return e.cause }

func wrapChainedOperatorError(operatorName string, cause error) error {
	if cause == nil {
		return nil
	}
	return &ExceptionInChainedOperator{Operator: operatorName, cause: errors.WithStack(cause)}
}
