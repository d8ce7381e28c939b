// Package cache stores computed signal addressed by sample intervals.
package cache

import (
	"sort"
	"sync"

	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/signal"
)

// Cache keeps committed buffers of one graph node. Buffers never overlap
// each other; a newer buffer replaces the overlapping part of older ones.
// Cache is safe for concurrent use.
type Cache struct {
	mu          sync.RWMutex
	chunks      []signal.Buffer // sorted by first sample
	samples     interval.Intervals
	sampleRate  int
	numChannels int
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// SamplesDesc describes which samples are present in the cache.
func (c *Cache) SamplesDesc() interval.Intervals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.samples
}

// NumChannels returns number of channels of committed buffers.
func (c *Cache) NumChannels() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.numChannels
}

// SampleRate returns sample rate of committed buffers.
func (c *Cache) SampleRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sampleRate
}

// Len returns number of stored buffers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks)
}

// Put stores the buffer. The cache takes ownership of buffer data.
func (c *Cache) Put(b signal.Buffer) {
	if b.Interval.Empty() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(b.Interval)
	idx := sort.Search(len(c.chunks), func(k int) bool {
		return c.chunks[k].Interval.First >= b.Interval.First
	})
	c.chunks = append(c.chunks, signal.Buffer{})
	copy(c.chunks[idx+1:], c.chunks[idx:])
	c.chunks[idx] = b
	c.samples = c.samples.Add(b.Interval)
	c.sampleRate = b.SampleRate
	c.numChannels = b.NumChannels()
}

// Read assembles a buffer for the interval. Samples that are not cached
// are silent, use SamplesDesc to check coverage first.
func (c *Cache) Read(i interval.Interval) signal.Buffer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r := signal.NewBuffer(i, c.sampleRate, c.numChannels)
	for k := c.first(i); k < len(c.chunks) && c.chunks[k].Interval.First < i.Last; k++ {
		r.CopyFrom(c.chunks[k])
	}
	return r
}

// Invalidate drops cached samples.
func (c *Cache) Invalidate(s interval.Intervals) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, i := range s.Slice() {
		c.remove(i)
	}
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = nil
	c.samples = interval.Intervals{}
}

// first returns index of the first chunk that ends after i starts.
func (c *Cache) first(i interval.Interval) int {
	return sort.Search(len(c.chunks), func(k int) bool {
		return c.chunks[k].Interval.Last > i.First
	})
}

// remove cuts interval out of stored chunks. Must be called with write lock.
func (c *Cache) remove(i interval.Interval) {
	if !c.samples.Overlaps(i) {
		return
	}
	lo := c.first(i)
	hi := lo
	for hi < len(c.chunks) && c.chunks[hi].Interval.First < i.Last {
		hi++
	}
	var kept []signal.Buffer
	for _, chunk := range c.chunks[lo:hi] {
		if left := interval.New(chunk.Interval.First, i.First); !left.Empty() {
			kept = append(kept, chunk.Slice(left))
		}
		if right := interval.New(i.Last, chunk.Interval.Last); !right.Empty() {
			kept = append(kept, chunk.Slice(right))
		}
	}
	chunks := make([]signal.Buffer, 0, len(c.chunks)-(hi-lo)+len(kept))
	chunks = append(chunks, c.chunks[:lo]...)
	chunks = append(chunks, kept...)
	chunks = append(chunks, c.chunks[hi:]...)
	c.chunks = chunks
	c.samples = c.samples.Remove(i)
}
