package chain_test

import (
	"fmt"

	"github.com/ravelstream/opchain/config"
	"github.com/ravelstream/opchain/operator"
	"github.com/ravelstream/opchain/record"
)

// mockOneInput is a minimal OneInputOperator used across the scenario
// tests: it records every element and watermark it sees and, unless
// process is set, forwards the element's value unchanged to its own
// output.
type mockOneInput[IN, OUT any] struct {
	operator.BaseOneInput[IN, OUT]
	name       string
	emit       operator.Emitter
	received   []record.StreamRecord[IN]
	watermarks []record.Watermark
	process    func(m *mockOneInput[IN, OUT], rec record.StreamRecord[IN]) error
	endInputs  *[]string
}

func (m *mockOneInput[IN, OUT]) Open(_ operator.Context, out operator.Emitter) error {
	m.emit = out
	return nil
}

func (m *mockOneInput[IN, OUT]) ProcessElement(rec record.StreamRecord[IN]) error {
	m.received = append(m.received, rec)
	if m.process != nil {
		return m.process(m, rec)
	}
	return operator.Emit[IN](m.emit, rec.Value, rec.Timestamp, rec.HasTimestamp)
}

func (m *mockOneInput[IN, OUT]) ProcessWatermark(w record.Watermark) error {
	m.watermarks = append(m.watermarks, w)
	return m.emit.EmitWatermark(w)
}

func (m *mockOneInput[IN, OUT]) EndInput() error {
	if m.endInputs != nil {
		*m.endInputs = append(*m.endInputs, m.name)
	}
	return nil
}

// mockTwoInput is a minimal TwoInputOperator used only as a chain head,
// exercising the multi-input end-of-input state machine.
type mockTwoInput[IN1, IN2, OUT any] struct {
	operator.BaseTwoInput[IN1, IN2, OUT]
	name      string
	emit      operator.Emitter
	endInputs *[]string
}

func (m *mockTwoInput[IN1, IN2, OUT]) Open(_ operator.Context, out operator.Emitter) error {
	m.emit = out
	return nil
}

func (m *mockTwoInput[IN1, IN2, OUT]) ProcessElement1(record.StreamRecord[IN1]) error { return nil }
func (m *mockTwoInput[IN1, IN2, OUT]) ProcessElement2(record.StreamRecord[IN2]) error { return nil }

func (m *mockTwoInput[IN1, IN2, OUT]) EndInput(inputID int) error {
	if m.endInputs != nil {
		*m.endInputs = append(*m.endInputs, fmt.Sprintf("%s:%d", m.name, inputID))
	}
	return nil
}

// testTask is a minimal chain.ContainingTask for tests.
type testTask struct {
	objectReuse bool
	root        *config.StreamConfig
}

func (t *testTask) ObjectReuseEnabled() bool             { return t.objectReuse }
func (t *testTask) RootConfig() *config.StreamConfig     { return t.root }
