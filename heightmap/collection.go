// Package heightmap keeps blocks of the rendered time-frequency heightmap
// and evicts the ones that were not used recently.
//
// Collection is driven by the renderer frame by frame:
//
//	for {
//	    for _, ref := range visible {
//	        block, ok := collection.GetBlock(ref)
//	        ...
//	    }
//	    collection.NextFrame()
//	}
//
// Blocks that are related to the blocks in use are kept alive as well,
// because they are likely to be needed when the view moves or zooms.
package heightmap

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/log"
)

// DefaultBlockSize is the size of blocks if not set by option.
var DefaultBlockSize = BlockSize{Width: 256, Height: 256}

// ErrInvalidBlockSize is returned when block size is not positive.
var ErrInvalidBlockSize = errors.New("block size must be positive")

// Collection owns blocks of a heightmap.
type Collection struct {
	log        log.Logger
	blockSize  BlockSize
	allocator  Allocator
	aggressive bool

	cache *BlockCache
	gc    *GarbageCollector
	frame atomic.Uint64

	mu               sync.Mutex
	signalLength     uint64
	failedAllocation bool
}

// Option provides a way to set functional parameters to collection.
type Option func(c *Collection) error

// WithLogger sets logger to collection. If this option is not provided,
// silent logger is used.
func WithLogger(logger log.Logger) Option {
	return func(c *Collection) error {
		c.log = logger
		return nil
	}
}

// WithBlockSize sets the number of texels of blocks.
func WithBlockSize(width, height int) Option {
	return func(c *Collection) error {
		if width <= 0 || height <= 0 {
			return fmt.Errorf("%dx%d: %w", width, height, ErrInvalidBlockSize)
		}
		c.blockSize = BlockSize{Width: width, Height: height}
		return nil
	}
}

// WithAllocator sets texture allocator. Unlimited CPU allocator is used by
// default.
func WithAllocator(a Allocator) Option {
	return func(c *Collection) error {
		c.allocator = a
		return nil
	}
}

// WithAggressiveGC makes collection evict every block that was not used in
// the frame.
func WithAggressiveGC() Option {
	return func(c *Collection) error {
		c.aggressive = true
		return nil
	}
}

// New creates a new collection and applies provided options.
func New(options ...Option) (*Collection, error) {
	c := &Collection{
		log:       log.Silent(),
		blockSize: DefaultBlockSize,
		allocator: NewCPUAllocator(0),
		cache:     NewBlockCache(),
	}
	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}
	c.gc = NewGarbageCollector(c.cache, c.log)
	c.frame.Store(1)
	return c, nil
}

// BlockSize returns the size of blocks.
func (c *Collection) BlockSize() BlockSize {
	return c.blockSize
}

// Cache returns the cache of blocks.
func (c *Collection) Cache() *BlockCache {
	return c.cache
}

// Frame returns the current frame number.
func (c *Collection) Frame() uint64 {
	return c.frame.Load()
}

// GetBlock returns the block for the reference and marks it used in the
// current frame. Missing block is created. It returns false if texture of
// a new block can't be allocated.
func (c *Collection) GetBlock(ref Reference) (*Block, bool) {
	frame := c.Frame()
	if b, ok := c.cache.Find(ref); ok {
		b.Use(frame)
		return b, true
	}
	texture, err := c.allocator.Alloc(c.blockSize)
	if err != nil {
		c.log.WithField("block", ref).Warnf("failed to create block: %v", err)
		c.setFailedAllocation(true)
		return nil, false
	}
	c.setFailedAllocation(false)
	b := NewBlock(ref, c.blockSize, texture)
	if !c.cache.Insert(b) {
		// created concurrently
		c.allocator.Free(texture)
		existing, ok := c.cache.Find(ref)
		if !ok {
			return nil, false
		}
		b = existing
	}
	b.Use(frame)
	return b, true
}

// NextFrame keeps blocks related to the blocks used in the current frame,
// runs garbage collector and moves to the next frame. It returns the
// evicted blocks.
func (c *Collection) NextFrame() []*Block {
	frame := c.Frame()
	snapshot := c.cache.Clone()
	var used []*Block
	for _, b := range snapshot {
		if b.LastUsed() == frame {
			used = append(used, b)
		}
	}
	for _, b := range used {
		for _, ref := range b.ref.related() {
			if related, ok := snapshot[ref]; ok {
				related.Use(frame)
			}
		}
	}
	released := c.gc.RunOnce(c.aggressive, frame)
	c.free(released)
	c.frame.Add(1)
	return released
}

// RunGarbageCollection evicts all blocks that were not used in the current
// frame.
func (c *Collection) RunGarbageCollection() []*Block {
	released := c.gc.RunUntilComplete(c.Frame())
	c.free(released)
	return released
}

func (c *Collection) free(blocks []*Block) {
	for _, b := range blocks {
		c.allocator.Free(b.release())
	}
}

// Blocks returns cached blocks that intersect with samples.
func (c *Collection) Blocks(s interval.Intervals) []*Block {
	var blocks []*Block
	for _, b := range c.cache.Clone() {
		if s.Overlaps(b.interval) {
			blocks = append(blocks, b)
		}
	}
	byAge(blocks)
	return blocks
}

// Size returns number of cached blocks.
func (c *Collection) Size() int {
	return c.cache.Size()
}

// FailedAllocation returns true if the last block allocation failed.
func (c *Collection) FailedAllocation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failedAllocation
}

// ResetFailedAllocation clears the failed allocation flag.
func (c *Collection) ResetFailedAllocation() {
	c.setFailedAllocation(false)
}

func (c *Collection) setFailedAllocation(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedAllocation = v
}

// SignalLength returns the number of samples of the signal.
func (c *Collection) SignalLength() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signalLength
}

// SetSignalLength drops all blocks if the length changes and creates the
// background block for the new length.
func (c *Collection) SetSignalLength(n uint64) (*Block, bool) {
	c.mu.Lock()
	changed := c.signalLength != n
	c.signalLength = n
	c.mu.Unlock()

	if changed {
		c.Clear()
	}
	ref := Background(c.blockSize, n)
	c.gc.Protect(ref)
	return c.GetBlock(ref)
}

// Background returns the reference of the block that covers the whole
// signal.
func (c *Collection) Background() Reference {
	return Background(c.blockSize, c.SignalLength())
}

// Clear drops all blocks.
func (c *Collection) Clear() {
	c.free(c.cache.Clear())
}
