// Package mock provides mocks for graph stages and allows to execute
// integration tests of the scheduler.
package mock

import (
	"sync"
	"time"

	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/operation"
	"github.com/davidhesselbom/freq-sub001/signal"
)

const (
	defaultSampleRate  = 44100
	defaultNumChannels = 1
)

// Desc mocks an operation.Desc. Outputs are aligned to BlockSize if it's
// set. Sources fill output with Value, other stages add Value to input.
type Desc struct {
	counter
	Label       string
	BlockSize   uint64
	Source      bool
	Value       float64
	NumChannels int
	SampleRate  int
	// Kinds of engines the stage runs on, all if empty.
	Kinds []operation.Kind
	// Unsupported engines in addition to Kinds.
	Unsupported []operation.Engine
	Interval    time.Duration
	ErrorOnCall error
	PanicOnCall error
	// Shift makes operation return wrong interval.
	Shift uint64
}

// Name implements operation.Desc.
func (m *Desc) Name() string {
	if m.Label == "" {
		return "mock"
	}
	return m.Label
}

// RequiredInterval implements operation.Desc.
func (m *Desc) RequiredInterval(output interval.Interval) (interval.Interval, interval.Interval) {
	actual := output.Align(m.BlockSize)
	if m.BlockSize > 0 && actual.Count() > m.BlockSize {
		// compute one block at a time
		actual.Last = actual.First + m.BlockSize
	}
	return actual, actual
}

// AffectedInterval implements operation.Desc.
func (m *Desc) AffectedInterval(input interval.Interval) interval.Interval {
	return input.Align(m.BlockSize)
}

// CreateOperation implements operation.Desc.
func (m *Desc) CreateOperation(engine operation.Engine) (operation.Operation, bool) {
	if !operation.Supports(operation.KindOf(engine), m.Kinds...) {
		return nil, false
	}
	for _, e := range m.Unsupported {
		if e == engine {
			return nil, false
		}
	}
	m.created(engine)
	return operation.OperationFunc(m.process), true
}

func (m *Desc) process(in signal.Buffer) (signal.Buffer, error) {
	if m.ErrorOnCall != nil {
		return signal.Buffer{}, m.ErrorOnCall
	}
	if m.PanicOnCall != nil {
		panic(m.PanicOnCall)
	}
	time.Sleep(m.Interval)
	out := in
	if m.Source {
		numChannels, sampleRate := m.NumChannels, m.SampleRate
		if numChannels == 0 {
			numChannels = defaultNumChannels
		}
		if sampleRate == 0 {
			sampleRate = defaultSampleRate
		}
		out = signal.NewBuffer(in.Interval, sampleRate, numChannels)
		for i := range out.Data {
			for j := range out.Data[i] {
				out.Data[i][j] = m.Value
			}
		}
	} else {
		out = signal.NewBuffer(in.Interval, in.SampleRate, in.NumChannels())
		for i := range out.Data {
			for j := range out.Data[i] {
				out.Data[i][j] = in.Data[i][j] + m.Value
			}
		}
	}
	out.Interval = interval.New(out.Interval.First+m.Shift, out.Interval.Last+m.Shift)
	m.advance(in.Interval)
	return out, nil
}

// Engine mocks an engine that isn't a device.
type Engine string

// Name implements operation.Engine.
func (e Engine) Name() string {
	return string(e)
}

// counter counts tasks and samples.
type counter struct {
	mu        sync.Mutex
	tasks     int
	samples   uint64
	processed interval.Intervals
	engines   map[string]int
}

func (c *counter) advance(i interval.Interval) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks++
	c.samples += i.Count()
	c.processed = c.processed.Add(i)
}

func (c *counter) created(e operation.Engine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engines == nil {
		c.engines = make(map[string]int)
	}
	c.engines[e.Name()]++
}

// Count returns number of processed tasks and samples.
func (c *counter) Count() (int, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tasks, c.samples
}

// Processed returns samples processed so far.
func (c *counter) Processed() interval.Intervals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed
}

// Created returns number of operations created for the engine.
func (c *counter) Created(e operation.Engine) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engines[e.Name()]
}

// Reset resets counters.
func (c *counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks, c.samples = 0, 0
	c.processed = interval.Intervals{}
	c.engines = nil
}
