package heightmap

import (
	"sync"

	"github.com/davidhesselbom/freq-sub001/log"
)

// capacityFactor is the number of cached blocks allowed per block used in
// the current frame.
const capacityFactor = 4

// GarbageCollector evicts blocks that were not used recently. The
// background block is never evicted.
type GarbageCollector struct {
	cache *BlockCache
	log   log.Logger

	mu            sync.Mutex
	background    Reference
	hasBackground bool
}

// NewGarbageCollector returns a collector of the cache.
func NewGarbageCollector(cache *BlockCache, logger log.Logger) *GarbageCollector {
	if logger == nil {
		logger = log.Silent()
	}
	return &GarbageCollector{
		cache: cache,
		log:   logger,
	}
}

// Protect makes the collector keep the block with the reference.
func (gc *GarbageCollector) Protect(ref Reference) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.background = ref
	gc.hasBackground = true
}

func (gc *GarbageCollector) protected(ref Reference) bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.hasBackground && gc.background == ref
}

// CountBlocksUsedThisFrame returns the number of blocks used in the frame.
func (gc *GarbageCollector) CountBlocksUsedThisFrame(frame uint64) int {
	var n int
	for _, b := range gc.cache.Clone() {
		if b.LastUsed() == frame {
			n++
		}
	}
	return n
}

// candidates returns blocks that can be evicted from the oldest.
func (gc *GarbageCollector) candidates(keep func(*Block) bool) []*Block {
	snapshot := gc.cache.Clone()
	blocks := make([]*Block, 0, len(snapshot))
	for ref, b := range snapshot {
		if gc.protected(ref) || keep(b) {
			continue
		}
		blocks = append(blocks, b)
	}
	byAge(blocks)
	return blocks
}

func (gc *GarbageCollector) release(blocks []*Block) []*Block {
	released := make([]*Block, 0, len(blocks))
	for _, b := range blocks {
		if gc.cache.remove(b) {
			released = append(released, b)
		}
	}
	return released
}

// ReleaseNOldest evicts n least recently used blocks and returns them.
func (gc *GarbageCollector) ReleaseNOldest(n int) []*Block {
	if n <= 0 {
		return nil
	}
	blocks := gc.candidates(func(*Block) bool { return false })
	if len(blocks) > n {
		blocks = blocks[:n]
	}
	return gc.release(blocks)
}

// ReleaseAllNotUsedInThisFrame evicts all blocks that were not used in the
// frame.
func (gc *GarbageCollector) ReleaseAllNotUsedInThisFrame(frame uint64) []*Block {
	return gc.release(gc.candidates(func(b *Block) bool {
		return b.LastUsed() >= frame
	}))
}

// RunOnce keeps the cache within capacity derived from the number of
// blocks used in the frame. Aggressive run evicts all blocks that were not
// used in the frame.
func (gc *GarbageCollector) RunOnce(aggressive bool, frame uint64) []*Block {
	if aggressive {
		return gc.ReleaseAllNotUsedInThisFrame(frame)
	}
	used := gc.CountBlocksUsedThisFrame(frame)
	capacity := capacityFactor * used
	size := gc.cache.Size()
	if size <= capacity {
		return nil
	}
	released := gc.ReleaseNOldest(size - capacity)
	gc.log.WithField("frame", frame).Debugf("used %d blocks, released %d of %d", used, len(released), size)
	return released
}

// RunUntilComplete evicts the oldest block that was not used in the frame
// one at a time until no such block remains.
func (gc *GarbageCollector) RunUntilComplete(frame uint64) []*Block {
	var released []*Block
	for {
		blocks := gc.candidates(func(b *Block) bool {
			return b.LastUsed() >= frame
		})
		if len(blocks) == 0 {
			return released
		}
		released = append(released, gc.release(blocks[:1])...)
	}
}
