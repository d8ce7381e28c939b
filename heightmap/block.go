package heightmap

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/davidhesselbom/freq-sub001/interval"
)

// Block is a tile of the heightmap.
type Block struct {
	ref      Reference
	interval interval.Interval
	lastUsed atomic.Uint64

	mu      sync.Mutex
	texture *Texture
}

// NewBlock creates a block that owns the texture.
func NewBlock(ref Reference, bs BlockSize, texture *Texture) *Block {
	return &Block{
		ref:      ref,
		interval: ref.SampleInterval(bs),
		texture:  texture,
	}
}

// Reference returns the position of the block.
func (b *Block) Reference() Reference {
	return b.ref
}

// Interval returns samples covered by the block.
func (b *Block) Interval() interval.Interval {
	return b.interval
}

// LastUsed returns the last frame the block was used in.
func (b *Block) LastUsed() uint64 {
	return b.lastUsed.Load()
}

// Use marks the block as used in the frame. Last used frame never goes
// back.
func (b *Block) Use(frame uint64) {
	for {
		last := b.lastUsed.Load()
		if last >= frame || b.lastUsed.CompareAndSwap(last, frame) {
			return
		}
	}
}

// Texture calls fn with the texture of the block locked.
func (b *Block) Texture(fn func(*Texture)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.texture)
}

// release takes the texture away from the block.
func (b *Block) release() *Texture {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.texture
	b.texture = nil
	return t
}

// BlockCache maps references to blocks. There is at most one block per
// reference.
type BlockCache struct {
	mu     sync.RWMutex
	blocks map[Reference]*Block
}

// NewBlockCache returns an empty cache.
func NewBlockCache() *BlockCache {
	return &BlockCache{
		blocks: make(map[Reference]*Block),
	}
}

// Find returns the block with the reference.
func (c *BlockCache) Find(ref Reference) (*Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.blocks[ref]
	return b, ok
}

// Insert adds the block. It returns false if another block with the same
// reference is cached already.
func (c *BlockCache) Insert(b *Block) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.blocks[b.ref]; ok {
		return false
	}
	c.blocks[b.ref] = b
	return true
}

// Erase removes the block with the reference and returns it.
func (c *BlockCache) Erase(ref Reference) (*Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.blocks[ref]
	if ok {
		delete(c.blocks, ref)
	}
	return b, ok
}

// remove erases the block only if it is still cached.
func (c *BlockCache) remove(b *Block) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocks[b.ref] != b {
		return false
	}
	delete(c.blocks, b.ref)
	return true
}

// Clone returns a snapshot of the cache that is safe to iterate.
func (c *BlockCache) Clone() map[Reference]*Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clone := make(map[Reference]*Block, len(c.blocks))
	for ref, b := range c.blocks {
		clone[ref] = b
	}
	return clone
}

// Size returns number of cached blocks.
func (c *BlockCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Clear removes all blocks and returns them.
func (c *BlockCache) Clear() []*Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	blocks := make([]*Block, 0, len(c.blocks))
	for _, b := range c.blocks {
		blocks = append(blocks, b)
	}
	c.blocks = make(map[Reference]*Block)
	return blocks
}

// byAge sorts blocks from the least recently used. Blocks used in the same
// frame are ordered by reference to keep eviction stable.
func byAge(blocks []*Block) {
	sort.Slice(blocks, func(i, j int) bool {
		a, b := blocks[i], blocks[j]
		if la, lb := a.LastUsed(), b.LastUsed(); la != lb {
			return la < lb
		}
		ra, rb := a.ref, b.ref
		switch {
		case ra.LogSamples != rb.LogSamples:
			return ra.LogSamples < rb.LogSamples
		case ra.LogScale != rb.LogScale:
			return ra.LogScale < rb.LogScale
		case ra.IndexX != rb.IndexX:
			return ra.IndexX < rb.IndexX
		}
		return ra.IndexY < rb.IndexY
	})
}
