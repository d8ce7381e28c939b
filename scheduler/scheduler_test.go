package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/davidhesselbom/freq-sub001/dag"
	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/mock"
	"github.com/davidhesselbom/freq-sub001/operation"
	"github.com/davidhesselbom/freq-sub001/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errTest = errors.New("test error")

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(
		scheduler.WithName(t.Name()),
		scheduler.WithPollTimeout(10*time.Millisecond),
	)
	require.NoError(t, err)
	return s
}

func newChain(t *testing.T, descs ...operation.Desc) (*dag.Chain, *dag.Head) {
	t.Helper()
	c, err := dag.NewChain(descs[0])
	require.NoError(t, err)
	for _, d := range descs[1:] {
		c.Append(d)
	}
	return c, c.NewHead()
}

func TestNew(t *testing.T) {
	_, err := scheduler.New(scheduler.WithPollTimeout(0))
	assert.True(t, errors.Is(err, scheduler.ErrInvalidTimeout))
}

func TestRoundRobin(t *testing.T) {
	const numHeads = 4
	s := newScheduler(t)
	heads := make(map[*dag.Node]int)
	for i := 0; i < numHeads; i++ {
		c, h := newChain(t, &mock.Desc{Label: fmt.Sprintf("source %d", i), Source: true, BlockSize: 10})
		h.Request(interval.From(interval.New(0, 100)))
		s.AddHead(h)
		heads[c.Source()] = i
	}
	// same head twice is ignored
	s.AddHead(s.Heads()[0])
	assert.Len(t, s.Heads(), numHeads)

	visits := make([]int, numHeads)
	for i := 0; i < 2*numHeads; i++ {
		task, ok := s.GetNextTask(operation.CPU(0))
		require.True(t, ok)
		visits[heads[task.Node]]++
	}
	for i, v := range visits {
		assert.Equal(t, 2, v, "head %d", i)
	}
}

func TestGetNextTask(t *testing.T) {
	source := &mock.Desc{Label: "source", Source: true, Value: 1}
	gain := &mock.Desc{Label: "gain", Value: 2}
	c, h := newChain(t, source, gain)
	s := newScheduler(t)
	s.AddHead(h)
	engine := operation.CPU(0)
	all := interval.New(0, 100)

	_, ok := s.GetNextTask(engine)
	assert.False(t, ok, "nothing is needed")
	assert.False(t, s.HasWork())

	h.Request(interval.From(all))
	assert.True(t, s.HasWork())
	var executed []string
	for {
		task, ok := s.GetNextTask(engine)
		if !ok {
			break
		}
		assert.Equal(t, all, task.Expected)
		executed = append(executed, task.Node.Name())
		require.NoError(t, s.Execute(task))
	}
	assert.Equal(t, []string{"source", "gain"}, executed, "child is computed first")
	assert.False(t, s.HasWork())
	assert.True(t, h.InvalidSamples().Empty())

	out := c.Terminal().Cache().Read(all)
	for _, v := range out.Data[0] {
		assert.Equal(t, 3.0, v)
	}

	h.Request(interval.From(all))
	_, ok = s.GetNextTask(engine)
	assert.False(t, ok, "cached samples are not computed again")
	tasks, samples := source.Count()
	assert.Equal(t, 1, tasks)
	assert.Equal(t, all.Count(), samples)
	tasks, _ = gain.Count()
	assert.Equal(t, 1, tasks)
}

func TestInFlight(t *testing.T) {
	source := &mock.Desc{Label: "source", Source: true, BlockSize: 50}
	_, h := newChain(t, source)
	s := newScheduler(t)
	s.AddHead(h)
	h.Request(interval.From(interval.New(0, 100)))

	first, ok := s.GetNextTask(operation.CPU(0))
	require.True(t, ok)
	second, ok := s.GetNextTask(operation.CPU(1))
	require.True(t, ok)
	assert.NotEqual(t, first.Expected, second.Expected)
	_, ok = s.GetNextTask(operation.CPU(2))
	assert.False(t, ok, "all samples are in flight")
	assert.True(t, s.HasWork())

	require.NoError(t, s.Execute(first))
	require.NoError(t, s.Execute(second))
	assert.False(t, s.HasWork())
}

func TestUnsupportedEngine(t *testing.T) {
	source := &mock.Desc{Label: "source", Source: true}
	gpuOnly := &mock.Desc{Label: "gpu", Kinds: []operation.Kind{operation.KindGPU}}
	c, h := newChain(t, source, gpuOnly)
	s := newScheduler(t)
	s.AddHead(h)
	h.Request(interval.From(interval.New(0, 10)))

	cpu, gpu := operation.CPU(0), operation.GPU(0)
	task, ok := s.GetNextTask(cpu)
	require.True(t, ok)
	assert.Same(t, c.Source(), task.Node)
	require.NoError(t, s.Execute(task))

	_, ok = s.GetNextTask(cpu)
	assert.False(t, ok, "gpu stage is skipped by cpu")
	task, ok = s.GetNextTask(gpu)
	require.True(t, ok)
	assert.Same(t, c.Terminal(), task.Node)
	require.NoError(t, s.Execute(task))
	assert.Equal(t, 1, gpuOnly.Created(gpu))
	assert.Equal(t, 0, gpuOnly.Created(cpu))
}

type disjoint struct {
	*mock.Desc
}

func (d disjoint) RequiredInterval(output interval.Interval) (interval.Interval, interval.Interval) {
	actual := interval.New(output.Last+10, output.Last+20)
	return actual, actual
}

func TestContractViolation(t *testing.T) {
	_, h := newChain(t, disjoint{&mock.Desc{Source: true}})
	s := newScheduler(t)
	s.AddHead(h)
	h.Request(interval.From(interval.New(0, 10)))
	assert.Panics(t, func() {
		s.GetNextTask(operation.CPU(0))
	})
}

func TestRemoveHead(t *testing.T) {
	_, h := newChain(t, &mock.Desc{Source: true})
	s := newScheduler(t)
	s.AddHead(h)
	h.Request(interval.From(interval.New(0, 10)))

	bed := s.Bedroom().GetBed()
	defer bed.Release()
	s.RemoveHead(h)
	assert.Empty(t, s.Heads())
	woken, err := bed.Sleep(0)
	require.NoError(t, err)
	assert.True(t, woken, "removal wakes workers")

	_, ok := s.GetNextTask(operation.CPU(0))
	assert.False(t, ok)
	assert.False(t, s.HasWork())

	// removed head doesn't wake scheduler anymore
	h.Request(interval.From(interval.New(10, 20)))
	woken, err = bed.Sleep(time.Millisecond)
	require.NoError(t, err)
	assert.False(t, woken)
}

func TestServe(t *testing.T) {
	tests := []struct {
		description string
		source      *mock.Desc
		engines     []operation.Engine
		err         error
	}{
		{
			description: "single worker",
			source:      &mock.Desc{Source: true, BlockSize: 64},
			engines:     []operation.Engine{operation.CPU(0)},
		},
		{
			description: "multiple workers",
			source:      &mock.Desc{Source: true, BlockSize: 64, Interval: time.Millisecond},
			engines:     []operation.Engine{operation.CPU(0), operation.CPU(1), operation.GPU(0)},
		},
		{
			description: "operation error",
			source:      &mock.Desc{Source: true, BlockSize: 64, ErrorOnCall: errTest},
			engines:     []operation.Engine{operation.CPU(0), operation.CPU(1)},
			err:         errTest,
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			c, h := newChain(t, test.source, &mock.Desc{Label: "gain", BlockSize: 32})
			s := newScheduler(t)
			s.AddHead(h)

			ctx, cancel := context.WithCancel(context.Background())
			errc := make(chan error, 1)
			go func() {
				errc <- s.Serve(ctx, test.engines...)
			}()

			all := interval.New(0, 1000)
			h.Request(interval.From(all))
			if test.err != nil {
				err := <-errc
				cancel()
				assert.True(t, errors.Is(err, test.err))
				return
			}

			waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer waitCancel()
			require.NoError(t, s.WaitFor(waitCtx, h))
			assert.True(t, c.Terminal().Cache().SamplesDesc().Covers(all))
			assert.True(t, test.source.Processed().Covers(all))

			cancel()
			assert.NoError(t, <-errc)
			assert.True(t, s.Bedroom().Closed())
		})
	}
}

func TestCloseStopsWorkers(t *testing.T) {
	s := newScheduler(t)
	errc := make(chan error, 1)
	go func() {
		errc <- s.Serve(context.Background(), operation.CPU(0), operation.CPU(1))
	}()
	s.Close()
	assert.NoError(t, <-errc)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", scheduler.Idle.String())
	assert.Equal(t, "sleeping", scheduler.Sleeping.String())
	assert.Equal(t, "unknown", scheduler.State(42).String())
}

func TestPassthroughChain(t *testing.T) {
	source := &mock.Desc{Label: "source", Source: true}
	c, h := newChain(t, source, operation.NewPassthrough())
	s := newScheduler(t)
	s.AddHead(h)

	request := func() map[*dag.Node]int {
		tasks := make(map[*dag.Node]int)
		h.Request(interval.From(interval.New(0, 100)))
		for {
			task, ok := s.GetNextTask(operation.CPU(0))
			if !ok {
				return tasks
			}
			tasks[task.Node]++
			require.NoError(t, s.Execute(task))
		}
	}
	tasks := request()
	assert.Equal(t, map[*dag.Node]int{c.Source(): 1, c.Terminal(): 1}, tasks)
	assert.True(t, h.InvalidSamples().Empty())
	assert.Empty(t, request(), "full cache hit")
}
