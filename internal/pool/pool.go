// Package pool keeps reusable signal buffers grouped by their dimensions.
package pool

import (
	"sync"

	"github.com/davidhesselbom/freq-sub001/signal"
)

type key struct {
	bufferSize  int
	numChannels int
}

var m = struct {
	sync.Mutex
	pools map[key]*Pool
}{
	pools: map[key]*Pool{},
}

// Pool allocates buffers of fixed dimensions.
type Pool struct {
	numChannels int
	bufferSize  int
	pool        sync.Pool
}

// Get returns a shared pool for provided dimensions.
func Get(bufferSize, numChannels int) *Pool {
	m.Lock()
	defer m.Unlock()
	k := key{bufferSize, numChannels}
	if p, ok := m.pools[k]; ok {
		return p
	}

	p := New(numChannels, bufferSize)
	m.pools[k] = p
	return p
}

// New returns a new pool that is not shared.
func New(numChannels, bufferSize int) *Pool {
	p := &Pool{
		numChannels: numChannels,
		bufferSize:  bufferSize,
	}
	p.pool.New = func() interface{} {
		return signal.EmptyFloat64(numChannels, bufferSize)
	}
	return p
}

// Alloc returns a zeroed buffer.
func (p *Pool) Alloc() signal.Float64 {
	b := p.pool.Get().(signal.Float64)
	for i := range b {
		b[i] = b[i][:p.bufferSize]
		for j := range b[i] {
			b[i][j] = 0
		}
	}
	return b
}

// Free puts buffer back into the pool. Buffers of other dimensions are
// dropped.
func (p *Pool) Free(b signal.Float64) {
	if b.NumChannels() != p.numChannels {
		return
	}
	for i := range b {
		if cap(b[i]) < p.bufferSize {
			return
		}
	}
	p.pool.Put(b)
}
