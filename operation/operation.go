// Package operation defines the contract between the scheduler and signal
// transforms.
//
// A transform stage is described by an immutable Desc. The Desc tells which
// input is required to produce an output interval, which output is affected
// when an input interval changes, and creates Operation instances for the
// engines it supports:
//
//	in, actual := desc.RequiredInterval(wanted)
//	op, ok := desc.CreateOperation(operation.CPU(0))
//	if !ok {
//	    // stage can't run on this engine, look for work elsewhere
//	}
//	out, err := op.Process(input)
//
// Output of Process must cover exactly the actual interval returned by
// RequiredInterval.
package operation

import (
	"fmt"

	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/signal"
)

// Engine identifies where computation runs, e.g. a CPU worker or a GPU
// context. Engines are compared with ==.
type Engine interface {
	Name() string
}

// Kind of engine.
type Kind int

const (
	// KindCPU is computation on a CPU goroutine.
	KindCPU Kind = iota
	// KindGPU is computation in a GPU context.
	KindGPU
)

func (k Kind) String() string {
	switch k {
	case KindCPU:
		return "cpu"
	case KindGPU:
		return "gpu"
	}
	return "unknown"
}

// Device is an Engine identified by kind and index.
type Device struct {
	Kind  Kind
	Index int
}

// CPU returns engine for cpu worker with provided index.
func CPU(index int) Device {
	return Device{Kind: KindCPU, Index: index}
}

// GPU returns engine for gpu context with provided index.
func GPU(index int) Device {
	return Device{Kind: KindGPU, Index: index}
}

// Name implements Engine.
func (d Device) Name() string {
	return fmt.Sprintf("%v:%d", d.Kind, d.Index)
}

// KindOf returns kind of the engine. Engines that are not devices are
// reported as CPU.
func KindOf(e Engine) Kind {
	if d, ok := e.(Device); ok {
		return d.Kind
	}
	return KindCPU
}

// Operation transforms an input buffer into an output buffer.
type Operation interface {
	Process(in signal.Buffer) (signal.Buffer, error)
}

// OperationFunc allows to use a function as Operation.
type OperationFunc func(in signal.Buffer) (signal.Buffer, error)

// Process implements Operation.
func (fn OperationFunc) Process(in signal.Buffer) (signal.Buffer, error) {
	return fn(in)
}

// Desc is an immutable description of a transform stage.
type Desc interface {
	// Name is used in logs and metrics.
	Name() string
	// RequiredInterval returns the input needed to produce at least a part
	// of output and the output that will actually be produced. Actual
	// output must overlap requested output and the result must be the same
	// for the same argument.
	RequiredInterval(output interval.Interval) (input, actual interval.Interval)
	// AffectedInterval returns output that becomes invalid if the input
	// changes.
	AffectedInterval(input interval.Interval) interval.Interval
	// CreateOperation returns false if the stage can't run on the engine.
	CreateOperation(engine Engine) (Operation, bool)
}

// Passthrough is a stage that outputs its input.
type Passthrough struct {
	kinds []Kind
}

// NewPassthrough returns a pass-through stage that runs on provided engine
// kinds. Without kinds it runs everywhere.
func NewPassthrough(kinds ...Kind) Passthrough {
	return Passthrough{kinds: kinds}
}

// Name implements Desc.
func (Passthrough) Name() string {
	return "passthrough"
}

// RequiredInterval implements Desc.
func (Passthrough) RequiredInterval(output interval.Interval) (interval.Interval, interval.Interval) {
	return output, output
}

// AffectedInterval implements Desc.
func (Passthrough) AffectedInterval(input interval.Interval) interval.Interval {
	return input
}

// CreateOperation implements Desc.
func (p Passthrough) CreateOperation(engine Engine) (Operation, bool) {
	if !Supports(KindOf(engine), p.kinds...) {
		return nil, false
	}
	return OperationFunc(func(in signal.Buffer) (signal.Buffer, error) {
		return in, nil
	}), true
}

// Supports returns true if kinds is empty or contains k.
func Supports(k Kind, kinds ...Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
