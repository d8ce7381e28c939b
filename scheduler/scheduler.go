// Package scheduler finds and executes work for processing chains.
//
// Scheduler keeps a set of heads and distributes their missing samples
// between workers. Each worker is bound to a single engine and repeats the
// same cycle:
//
//	Idle -> Searching -> Dispatching -> Idle
//	Idle -> Searching -> Sleeping -> Idle
//
// Heads are visited in round-robin order. Within a head the search goes
// from the terminal node towards the source and prefers the shallowest
// node whose input is already cached.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/davidhesselbom/freq-sub001/bedroom"
	"github.com/davidhesselbom/freq-sub001/dag"
	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/log"
	"github.com/davidhesselbom/freq-sub001/operation"
)

// DefaultPollTimeout is how long a worker sleeps when work exists but none
// of it can run on its engine.
const DefaultPollTimeout = 100 * time.Millisecond

// ErrInvalidTimeout is returned when poll timeout is not positive.
var ErrInvalidTimeout = errors.New("poll timeout must be positive")

// State of a worker.
type State int

const (
	// Idle worker is between cycles.
	Idle State = iota
	// Searching worker looks for a task.
	Searching
	// Dispatching worker executes a task.
	Dispatching
	// Sleeping worker waits for new work.
	Sleeping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case Dispatching:
		return "dispatching"
	case Sleeping:
		return "sleeping"
	}
	return "unknown"
}

// Scheduler distributes work of registered heads between engines.
type Scheduler struct {
	name        string
	log         log.Logger
	pollTimeout time.Duration
	bedroom     *bedroom.Bedroom

	mu     sync.Mutex
	heads  []*dag.Head
	cursor int
}

// Option provides a way to set functional parameters to scheduler.
type Option func(s *Scheduler) error

// WithLogger sets logger to scheduler. If this option is not provided,
// silent logger is used.
func WithLogger(logger log.Logger) Option {
	return func(s *Scheduler) error {
		s.log = logger
		return nil
	}
}

// WithName sets name to scheduler.
func WithName(n string) Option {
	return func(s *Scheduler) error {
		s.name = n
		return nil
	}
}

// WithPollTimeout sets how long workers sleep when there is work they
// can't do.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Scheduler) error {
		if d <= 0 {
			return fmt.Errorf("%v: %w", d, ErrInvalidTimeout)
		}
		s.pollTimeout = d
		return nil
	}
}

// New creates a new scheduler and applies provided options.
func New(options ...Option) (*Scheduler, error) {
	s := &Scheduler{
		log:         log.Silent(),
		pollTimeout: DefaultPollTimeout,
		bedroom:     bedroom.New(),
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	s.log = s.log.WithField("scheduler", s.name)
	return s, nil
}

// Bedroom returns the bedroom where workers sleep.
func (s *Scheduler) Bedroom() *bedroom.Bedroom {
	return s.bedroom
}

// AddHead registers a head. Adding the same head twice has no effect.
func (s *Scheduler) AddHead(h *dag.Head) {
	s.mu.Lock()
	for _, head := range s.heads {
		if head == h {
			s.mu.Unlock()
			return
		}
	}
	s.heads = append(s.heads, h)
	s.mu.Unlock()

	h.Attach(s.Wakeup)
	s.log.WithField("head", h.ID()).Debug("head added")
	s.Wakeup()
}

// RemoveHead unregisters a head. Tasks of the head that are in flight are
// completed.
func (s *Scheduler) RemoveHead(h *dag.Head) {
	s.mu.Lock()
	for i, head := range s.heads {
		if head == h {
			s.heads = append(s.heads[:i], s.heads[i+1:]...)
			break
		}
	}
	s.cursor = 0
	s.mu.Unlock()

	h.Detach()
	s.log.WithField("head", h.ID()).Debug("head removed")
	s.Wakeup()
}

// Heads returns registered heads.
func (s *Scheduler) Heads() []*dag.Head {
	s.mu.Lock()
	defer s.mu.Unlock()
	heads := make([]*dag.Head, len(s.heads))
	copy(heads, s.heads)
	return heads
}

// Wakeup tells sleeping workers that new work may exist.
func (s *Scheduler) Wakeup() {
	s.bedroom.Wakeup()
}

// Close wakes all workers and makes them quit.
func (s *Scheduler) Close() {
	s.log.Debug("closing")
	s.bedroom.Close()
}

// HasWork returns true if any head has invalid samples.
func (s *Scheduler) HasWork() bool {
	for _, h := range s.Heads() {
		if !h.InvalidSamples().Empty() {
			return true
		}
	}
	return false
}

// GetNextTask returns a reserved task for the engine. Heads are tried in
// round-robin order starting after the head of the previous task. Input of
// the task is copied after the scheduler lock is released.
func (s *Scheduler) GetNextTask(engine operation.Engine) (*dag.Task, bool) {
	for {
		task, ok := s.reserve(engine)
		if !ok {
			return nil, false
		}
		if task.ReadInput() {
			return task, true
		}
		// input invalidated since the reservation, search again
	}
}

func (s *Scheduler) reserve(engine operation.Engine) (*dag.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.heads {
		idx := (s.cursor + k) % len(s.heads)
		h := s.heads[idx]
		missing := h.InvalidSamples()
		if missing.Empty() {
			continue
		}
		if task := searchjob(engine, h.Node(), missing); task != nil {
			s.cursor = (idx + 1) % len(s.heads)
			return task, true
		}
	}
	return nil, false
}

// searchjob looks for a task that brings node closer to have missing
// samples. Node is computed directly when its input is cached, otherwise
// the search continues in the child with the input that is not cached.
func searchjob(engine operation.Engine, n *dag.Node, missing interval.Intervals) *dag.Task {
	missing = n.Missing(missing)
	child := n.Child()
	var stillMissing interval.Intervals
	for !missing.Empty() {
		wanted := missing.FetchFirst()
		required, expected := n.Desc().RequiredInterval(wanted)
		if expected.Intersect(wanted).Empty() {
			panic(&dag.ContractError{
				Node:     n.Name(),
				Expected: wanted,
				Got:      expected,
				Reason:   "actual output doesn't overlap requested output",
			})
		}
		// handled by this iteration whether a task is found or not
		missing = missing.Remove(expected)

		if child != nil {
			if uncached := interval.From(required).Subtract(child.Cache().SamplesDesc()); !uncached.Empty() {
				stillMissing = stillMissing.Union(uncached)
				continue
			}
		}
		// unsupported engine or overlapping reservation, the range is
		// left to other engines
		if task, ok := dag.NewTask(engine, n, required, expected); ok {
			return task
		}
	}
	if child == nil || stillMissing.Empty() {
		return nil
	}
	return searchjob(engine, child, stillMissing)
}

// Execute runs the task and wakes up workers that may continue with its
// result.
func (s *Scheduler) Execute(t *dag.Task) error {
	committed, err := t.Run()
	if err != nil {
		return err
	}
	s.log.WithField("task", t.String()).Debugf("committed %v", committed)
	s.Wakeup()
	return nil
}

// SleepUntilWork blocks the worker that owns the bed until new work may
// exist. If some work is pending but wasn't found for the engine, sleep is
// limited with poll timeout.
func (s *Scheduler) SleepUntilWork(bed *bedroom.Bed) error {
	var timeout time.Duration
	if s.HasWork() {
		timeout = s.pollTimeout
	}
	_, err := bed.Sleep(timeout)
	return err
}
