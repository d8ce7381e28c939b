package scheduler

import (
	"context"
	"errors"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/davidhesselbom/freq-sub001/bedroom"
	"github.com/davidhesselbom/freq-sub001/dag"
	"github.com/davidhesselbom/freq-sub001/operation"
)

// Run executes tasks for the engine until the scheduler is closed or a
// task fails. It returns nil when the scheduler is closed.
func (s *Scheduler) Run(engine operation.Engine) error {
	id := xid.New().String()
	l := s.log.WithField("worker", id).WithField("engine", engine.Name())
	bed := s.bedroom.GetBed()
	defer bed.Release()

	state := Idle
	setState := func(next State) {
		l.Debugf("%v -> %v", state, next)
		state = next
	}
	for {
		if s.bedroom.Closed() {
			return nil
		}
		setState(Searching)
		if task, ok := s.GetNextTask(engine); ok {
			setState(Dispatching)
			if err := s.Execute(task); err != nil {
				l.Errorf("task %v failed: %v", task, err)
				return err
			}
			setState(Idle)
			continue
		}
		setState(Sleeping)
		if err := s.SleepUntilWork(bed); err != nil {
			if errors.Is(err, bedroom.ErrClosed) {
				return nil
			}
			return err
		}
		setState(Idle)
	}
}

// Serve starts a worker per engine and blocks until the context is done,
// the scheduler is closed or any worker fails. Scheduler is closed when
// Serve returns.
func (s *Scheduler) Serve(ctx context.Context, engines ...operation.Engine) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range engines {
		e := e
		g.Go(func() error {
			return s.Run(e)
		})
	}
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		// ctx is also cancelled when all workers are done
		<-ctx.Done()
		s.Close()
	}()
	err := g.Wait()
	<-closed
	return err
}

// WaitFor blocks until the head has no invalid samples or the context is
// done.
func (s *Scheduler) WaitFor(ctx context.Context, h *dag.Head) error {
	bed := s.bedroom.GetBed()
	defer bed.Release()
	for {
		if h.InvalidSamples().Empty() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := bed.Sleep(s.pollTimeout); err != nil {
			return err
		}
	}
}
