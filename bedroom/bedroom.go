// Package bedroom lets idle workers sleep until somebody reports that new
// work may exist.
//
// A worker takes a Bed before it looks for work and sleeps in it when
// nothing is found. Wakeups that happen between taking the bed and going
// to sleep are not lost: the next Sleep returns immediately.
package bedroom

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petermattis/goid"
)

// ErrClosed is returned when sleeping in a closed bedroom.
var ErrClosed = errors.New("bedroom is closed")

// Bedroom is a rendezvous of sleeping workers.
type Bedroom struct {
	mu       sync.Mutex
	cond     *sync.Cond
	beds     map[*Bed]struct{}
	sleepers int
	closed   bool
}

// Bed is a registration of a single goroutine in the bedroom. It must be
// released when the goroutine doesn't intend to sleep anymore.
type Bed struct {
	room  *Bedroom
	owner int64
	// skip is set by wakeup, guarded by room.mu.
	skip bool
}

// New returns an open bedroom.
func New() *Bedroom {
	b := &Bedroom{
		beds: make(map[*Bed]struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// GetBed registers calling goroutine as a potential sleeper.
func (b *Bedroom) GetBed() *Bed {
	bed := &Bed{
		room:  b,
		owner: goid.Get(),
	}
	b.mu.Lock()
	b.beds[bed] = struct{}{}
	b.mu.Unlock()
	return bed
}

// Wakeup makes every registered bed stop waiting. It doesn't block.
func (b *Bedroom) Wakeup() {
	b.mu.Lock()
	for bed := range b.beds {
		bed.skip = true
	}
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Close wakes everyone. Any sleep after close fails with ErrClosed.
func (b *Bedroom) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Closed returns true if bedroom is closed.
func (b *Bedroom) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Sleepers returns number of goroutines sleeping at the moment.
func (b *Bedroom) Sleepers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sleepers
}

// Beds returns number of registered beds.
func (b *Bedroom) Beds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.beds)
}

// Release unregisters the bed.
func (bed *Bed) Release() {
	bed.room.mu.Lock()
	delete(bed.room.beds, bed)
	bed.room.mu.Unlock()
}

// Sleep blocks until wakeup, timeout or close. It returns true if woken
// up and false if timeout elapsed. Timeout <= 0 waits without limit. Sleep
// must be called by the goroutine that took the bed.
func (bed *Bed) Sleep(timeout time.Duration) (bool, error) {
	if id := goid.Get(); id != bed.owner {
		panic(fmt.Sprintf("bed of goroutine %d used by goroutine %d", bed.owner, id))
	}
	b := bed.room
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, ErrClosed
	}
	if bed.skip {
		bed.skip = false
		return true, nil
	}

	var expired bool
	if timeout > 0 {
		t := time.AfterFunc(timeout, func() {
			b.mu.Lock()
			expired = true
			b.mu.Unlock()
			b.cond.Broadcast()
		})
		defer t.Stop()
	}

	b.sleepers++
	defer func() { b.sleepers-- }()
	// broadcasts for other beds wake this one too
	for !bed.skip && !b.closed && !expired {
		b.cond.Wait()
	}
	if b.closed {
		return false, ErrClosed
	}
	if bed.skip {
		bed.skip = false
		return true, nil
	}
	return false, nil
}
