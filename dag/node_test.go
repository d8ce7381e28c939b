package dag_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidhesselbom/freq-sub001/dag"
	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/mock"
	"github.com/davidhesselbom/freq-sub001/operation"
	"github.com/davidhesselbom/freq-sub001/signal"
)

func TestStartSampleProcessing(t *testing.T) {
	n := dag.NewNode(&mock.Desc{Source: true}, nil)
	assert.True(t, n.StartSampleProcessing(interval.New(0, 10)))
	assert.False(t, n.StartSampleProcessing(interval.New(5, 15)))
	assert.True(t, n.StartSampleProcessing(interval.New(10, 15)))
	assert.Equal(t, []interval.Interval{{First: 0, Last: 15}}, n.Processing().Slice())

	n.CancelProcessing(interval.New(0, 10))
	assert.Equal(t, []interval.Interval{{First: 10, Last: 15}}, n.Processing().Slice())
}

func TestConcurrentReservation(t *testing.T) {
	for i := 0; i < 100; i++ {
		n := dag.NewNode(&mock.Desc{Source: true}, nil)
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		start := make(chan struct{})
		for _, i := range []interval.Interval{interval.New(0, 100), interval.New(50, 150)} {
			wg.Add(1)
			go func(i interval.Interval) {
				defer wg.Done()
				<-start
				if n.StartSampleProcessing(i) {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}(i)
		}
		close(start)
		wg.Wait()
		assert.Equal(t, 1, winners)
	}
}

func TestValidateSamples(t *testing.T) {
	n := dag.NewNode(&mock.Desc{Source: true}, nil)
	i := interval.New(0, 100)
	require.True(t, n.StartSampleProcessing(i))

	committed := n.ValidateSamples(signal.NewBuffer(i, 44100, 1))
	assert.True(t, committed.Equal(interval.From(i)))
	assert.True(t, n.Cache().SamplesDesc().Clip(i).Equal(interval.From(i)))
	assert.True(t, n.Processing().Clip(i).Empty())
	assert.True(t, n.Missing(interval.From(interval.New(0, 200))).Equal(interval.From(interval.New(100, 200))))
}

func TestStaleCommit(t *testing.T) {
	n := dag.NewNode(&mock.Desc{Source: true}, nil)
	i := interval.New(0, 100)
	require.True(t, n.StartSampleProcessing(i))
	n.Invalidate(interval.From(interval.New(20, 30)))

	committed := n.ValidateSamples(signal.NewBuffer(i, 44100, 1))
	assert.Equal(t, []interval.Interval{{First: 0, Last: 20}, {First: 30, Last: 100}}, committed.Slice())
	assert.True(t, n.Cache().SamplesDesc().Equal(committed))

	// stale marks are consumed by the commit
	require.True(t, n.StartSampleProcessing(interval.New(20, 30)))
	n.ValidateSamples(signal.NewBuffer(interval.New(20, 30), 44100, 1))
	assert.True(t, n.Cache().SamplesDesc().Equal(interval.From(i)))
}

func TestTaskRun(t *testing.T) {
	errTest := errors.New("test error")
	tests := []struct {
		desc      *mock.Desc
		engine    operation.Engine
		supported bool
		err       error
		panics    bool
	}{
		{
			desc:      &mock.Desc{Source: true, Value: 1},
			engine:    operation.CPU(0),
			supported: true,
		},
		{
			desc:   &mock.Desc{Source: true, Kinds: []operation.Kind{operation.KindGPU}},
			engine: operation.CPU(0),
		},
		{
			desc:      &mock.Desc{Source: true, ErrorOnCall: errTest},
			engine:    operation.CPU(0),
			supported: true,
			err:       errTest,
		},
		{
			desc:      &mock.Desc{Source: true, Shift: 1},
			engine:    operation.CPU(0),
			supported: true,
			panics:    true,
		},
	}
	for _, test := range tests {
		n := dag.NewNode(test.desc, nil)
		expected := interval.New(0, 10)
		task, ok := dag.NewTask(test.engine, n, expected, expected)
		assert.Equal(t, test.supported, ok)
		if !ok {
			assert.True(t, n.Processing().Empty())
			continue
		}
		assert.Equal(t, "mock [0, 10) on cpu:0", task.String())
		require.True(t, task.ReadInput())
		if test.panics {
			assert.PanicsWithError(t, "mock: result interval mismatch: expected [0, 10) got [1, 11)", func() {
				_, _ = task.Run()
			})
			assert.True(t, n.Processing().Empty())
			continue
		}
		committed, err := task.Run()
		if test.err != nil {
			assert.True(t, errors.Is(err, test.err))
			assert.True(t, n.Processing().Empty())
			assert.True(t, n.Cache().SamplesDesc().Empty())
			continue
		}
		assert.NoError(t, err)
		assert.True(t, committed.Equal(interval.From(expected)))
		assert.Equal(t, 1.0, n.Cache().Read(expected).Data[0][9])
	}

	// reservation conflict
	n := dag.NewNode(&mock.Desc{Source: true}, nil)
	_, ok := dag.NewTask(operation.CPU(0), n, interval.New(0, 10), interval.New(0, 10))
	assert.True(t, ok)
	_, ok = dag.NewTask(operation.CPU(1), n, interval.New(5, 10), interval.New(5, 10))
	assert.False(t, ok)
}

func TestTaskInput(t *testing.T) {
	source := dag.NewNode(&mock.Desc{Source: true}, nil)
	gain := dag.NewNode(&mock.Desc{Value: 1}, source)
	i := interval.New(0, 10)

	task, ok := dag.NewTask(operation.CPU(0), gain, i, i)
	require.True(t, ok)
	assert.False(t, task.ReadInput(), "input is not cached")
	assert.True(t, gain.Processing().Empty())

	b := signal.NewBuffer(i, 44100, 1)
	b.Data[0][3] = 0.5
	require.True(t, source.StartSampleProcessing(i))
	source.ValidateSamples(b)

	task, ok = dag.NewTask(operation.CPU(0), gain, i, i)
	require.True(t, ok)
	require.True(t, task.ReadInput())
	assert.Equal(t, b, task.Data)
	_, err := task.Run()
	require.NoError(t, err)
	assert.Equal(t, 1.5, gain.Cache().Read(i).Data[0][3])
}

func TestTaskInputInvalidated(t *testing.T) {
	source := dag.NewNode(&mock.Desc{Source: true}, nil)
	gain := dag.NewNode(&mock.Desc{Value: 1}, source)
	i := interval.New(0, 10)
	require.True(t, source.StartSampleProcessing(i))
	source.ValidateSamples(signal.NewBuffer(i, 44100, 1))

	task, ok := dag.NewTask(operation.CPU(0), gain, i, i)
	require.True(t, ok)
	source.Invalidate(interval.From(interval.New(4, 6)))

	assert.False(t, task.ReadInput())
	assert.True(t, gain.Processing().Empty())
	assert.True(t, gain.StartSampleProcessing(i))
}

func TestTaskPanicReleasesReservation(t *testing.T) {
	errPanic := errors.New("operation panic")
	n := dag.NewNode(&mock.Desc{Source: true, PanicOnCall: errPanic}, nil)
	i := interval.New(0, 10)
	task, ok := dag.NewTask(operation.CPU(0), n, i, i)
	require.True(t, ok)
	require.True(t, task.ReadInput())

	assert.PanicsWithError(t, errPanic.Error(), func() {
		_, _ = task.Run()
	})
	assert.True(t, n.Processing().Empty())
	assert.True(t, n.Cache().SamplesDesc().Empty())
	assert.True(t, n.StartSampleProcessing(i))
}
