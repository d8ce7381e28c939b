package dag

import (
	"sync"

	"github.com/rs/xid"

	"github.com/davidhesselbom/freq-sub001/interval"
)

// Head is a consumer's view of a chain. It keeps the samples the consumer
// needs and follows the current terminal node of the chain.
type Head struct {
	id    string
	chain *Chain

	mu     sync.RWMutex
	needed interval.Intervals
	wakeup func()
}

// NewHead creates a head for the chain.
func (c *Chain) NewHead() *Head {
	h := &Head{
		id:    xid.New().String(),
		chain: c,
	}
	c.register(h)
	return h
}

func (c *Chain) register(h *Head) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heads[h] = struct{}{}
}

func (c *Chain) unregister(h *Head) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.heads, h)
}

// ID returns unique head id.
func (h *Head) ID() string {
	return h.id
}

// Chain returns the chain of the head.
func (h *Head) Chain() *Chain {
	return h.chain
}

// Node returns the terminal node of the chain.
func (h *Head) Node() *Node {
	return h.chain.Terminal()
}

// Needed returns samples the consumer wants.
func (h *Head) Needed() interval.Intervals {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.needed
}

// Request adds samples to what the consumer needs.
func (h *Head) Request(s interval.Intervals) {
	h.update(func(needed interval.Intervals) interval.Intervals {
		return needed.Union(s)
	})
	h.wake()
}

// SetNeeded replaces samples the consumer needs.
func (h *Head) SetNeeded(s interval.Intervals) {
	h.update(func(interval.Intervals) interval.Intervals {
		return s
	})
	h.wake()
}

func (h *Head) update(fn func(interval.Intervals) interval.Intervals) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.needed = fn(h.needed)
}

// InvalidSamples returns needed samples that are not cached yet.
func (h *Head) InvalidSamples() interval.Intervals {
	needed := h.Needed()
	if needed.Empty() {
		return needed
	}
	return needed.Subtract(h.Node().Cache().SamplesDesc())
}

// Attach sets the function called when the head may have new work. It is
// used by the scheduler the head is registered with.
func (h *Head) Attach(wakeup func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wakeup = wakeup
}

// Detach removes wakeup function.
func (h *Head) Detach() {
	h.Attach(nil)
}

// Close unregisters the head from its chain.
func (h *Head) Close() {
	h.Detach()
	h.chain.unregister(h)
}

func (h *Head) wake() {
	if wakeup := h.wakeupFunc(); wakeup != nil {
		wakeup()
	}
}

func (h *Head) wakeupFunc() func() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.wakeup
}
