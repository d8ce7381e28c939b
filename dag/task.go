package dag

import (
	"fmt"

	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/operation"
	"github.com/davidhesselbom/freq-sub001/signal"
)

// ContractError is the panic value used when an operation description or
// an operation breaks its contract.
type ContractError struct {
	Node     string
	Expected interval.Interval
	Got      interval.Interval
	Reason   string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s: expected %v got %v", e.Node, e.Reason, e.Expected, e.Got)
}

// Task is a reserved unit of work: the node to compute, its input and the
// interval the result must cover.
type Task struct {
	Node      *Node
	Data      signal.Buffer
	Expected  interval.Interval
	Operation operation.Operation
	Engine    operation.Engine

	required interval.Interval
}

// NewTask creates operation for the engine and reserves expected samples
// of the node. It returns false if the engine is not supported or the
// samples are already in flight. Input is read separately by ReadInput.
func NewTask(engine operation.Engine, n *Node, required, expected interval.Interval) (*Task, bool) {
	op, ok := n.desc.CreateOperation(engine)
	if !ok {
		return nil, false
	}
	if !n.StartSampleProcessing(expected) {
		return nil, false
	}
	return &Task{
		Node:      n,
		Expected:  expected,
		Operation: op,
		Engine:    engine,
		required:  required,
	}, true
}

// ReadInput copies required input from the child cache. Source nodes get
// an input buffer without data. If the input was invalidated after the
// task was created the reservation is released and false is returned.
func (t *Task) ReadInput() bool {
	child := t.Node.Child()
	if child == nil {
		t.Data = signal.Buffer{Interval: t.required}
		return true
	}
	data := child.cache.Read(t.required)
	if !child.cache.SamplesDesc().Covers(t.required) {
		t.Node.CancelProcessing(t.Expected)
		return false
	}
	t.Data = data
	return true
}

// Run executes the operation without holding any lock and commits the
// result into the node. Result that doesn't match expected interval
// panics with ContractError. Reservation is released unless the result
// is committed, also when the operation panics.
func (t *Task) Run() (interval.Intervals, error) {
	committed := false
	defer func() {
		if !committed {
			t.Node.CancelProcessing(t.Expected)
		}
	}()

	measure := t.Node.meter()
	out, err := t.Operation.Process(t.Data)
	if err != nil {
		return interval.Intervals{}, fmt.Errorf("error processing %v in %s: %w", t.Expected, t.Node.Name(), err)
	}
	if out.Interval != t.Expected {
		panic(&ContractError{
			Node:     t.Node.Name(),
			Expected: t.Expected,
			Got:      out.Interval,
			Reason:   "result interval mismatch",
		})
	}
	measure(int64(out.Interval.Count()), out.SampleRate)
	valid := t.Node.ValidateSamples(out)
	committed = true
	return valid, nil
}

func (t *Task) String() string {
	return fmt.Sprintf("%s %v on %s", t.Node.Name(), t.Expected, t.Engine.Name())
}
