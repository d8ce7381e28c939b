package dag

import (
	"sync"

	"github.com/davidhesselbom/freq-sub001/cache"
	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/metric"
	"github.com/davidhesselbom/freq-sub001/operation"
	"github.com/davidhesselbom/freq-sub001/signal"
)

// Node is a single stage of a processing chain. It owns the committed
// output of its operation and the intervals that are being computed at the
// moment. The input of a node is the output of its child; a node without a
// child is a source.
type Node struct {
	desc  operation.Desc
	cache *cache.Cache
	meter metric.ResetFunc

	mu         sync.RWMutex
	child      *Node
	processing interval.Intervals
	// stale are in-flight samples that were invalidated, their results
	// are refused.
	stale    interval.Intervals
	detached bool
}

// NewNode returns a node for the operation reading from child. Child is
// nil for source nodes.
func NewNode(desc operation.Desc, child *Node) *Node {
	return &Node{
		desc:  desc,
		cache: cache.New(),
		meter: metric.Meter(desc),
		child: child,
	}
}

// Desc returns operation description of the node.
func (n *Node) Desc() operation.Desc {
	return n.desc
}

// Name returns operation name.
func (n *Node) Name() string {
	return n.desc.Name()
}

// Cache returns committed output of the node.
func (n *Node) Cache() *cache.Cache {
	return n.cache
}

// Child returns upstream node or nil for a source.
func (n *Node) Child() *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.child
}

func (n *Node) setChild(child *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.child = child
}

// Processing returns samples that are being computed.
func (n *Node) Processing() interval.Intervals {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.processing
}

// Detached returns true if node was removed from its chain.
func (n *Node) Detached() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.detached
}

// Missing returns samples of s that are neither cached nor in flight.
func (n *Node) Missing(s interval.Intervals) interval.Intervals {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return s.Subtract(n.cache.SamplesDesc()).Subtract(n.processing)
}

// StartSampleProcessing reserves the interval for computation. It returns
// false without side effects if any sample of the interval is already in
// flight.
func (n *Node) StartSampleProcessing(i interval.Interval) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.detached || n.processing.Overlaps(i) {
		return false
	}
	n.processing = n.processing.Add(i)
	return true
}

// CancelProcessing releases a reservation without committing anything.
func (n *Node) CancelProcessing(i interval.Interval) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.processing = n.processing.Remove(i)
	n.stale = n.stale.Remove(i)
}

// ValidateSamples commits a computed buffer and releases its reservation.
// Samples invalidated while being computed are not committed. It returns
// the committed samples.
func (n *Node) ValidateSamples(b signal.Buffer) interval.Intervals {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.processing = n.processing.Remove(b.Interval)
	stale := n.stale.Clip(b.Interval)
	n.stale = n.stale.Remove(b.Interval)
	if n.detached {
		return interval.Intervals{}
	}
	if stale.Empty() {
		n.cache.Put(b)
		return interval.From(b.Interval)
	}
	committed := interval.From(b.Interval).Subtract(stale)
	for _, i := range committed.Slice() {
		n.cache.Put(b.Slice(i))
	}
	return committed
}

// Invalidate drops cached samples. Samples that are in flight will be
// refused when committed.
func (n *Node) Invalidate(s interval.Intervals) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cache.Invalidate(s)
	n.stale = n.stale.Union(n.processing.Intersect(s))
}

// detach discards the cache and makes the node refuse commits.
func (n *Node) detach() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.detached = true
	n.child = nil
	n.cache.Clear()
}

// affected maps changed input samples to output samples of the node.
func (n *Node) affected(s interval.Intervals) interval.Intervals {
	var r interval.Intervals
	for _, i := range s.Slice() {
		r = r.Add(n.desc.AffectedInterval(i))
	}
	return r
}
