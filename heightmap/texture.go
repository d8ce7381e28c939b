package heightmap

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAllocation is returned when a texture can't be allocated.
var ErrAllocation = errors.New("texture allocation failed")

// Texture is the pixel storage of a block. Data is stored row by row,
// rows go from low to high frequencies.
type Texture struct {
	Width  int
	Height int
	Data   []float32
}

// Allocator allocates block textures.
type Allocator interface {
	Alloc(BlockSize) (*Texture, error)
	Free(*Texture)
}

// CPUAllocator allocates textures in memory. It fails allocations when its
// budget of texels is exhausted.
type CPUAllocator struct {
	mu     sync.Mutex
	budget int
	used   int
}

// NewCPUAllocator returns allocator limited to budget texels. Budget 0
// means no limit.
func NewCPUAllocator(budget int) *CPUAllocator {
	return &CPUAllocator{budget: budget}
}

// Alloc implements Allocator.
func (a *CPUAllocator) Alloc(bs BlockSize) (*Texture, error) {
	n := bs.Texels()
	if n <= 0 {
		return nil, fmt.Errorf("%dx%d: %w", bs.Width, bs.Height, ErrAllocation)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.budget > 0 && a.used+n > a.budget {
		return nil, fmt.Errorf("%d of %d texels used: %w", a.used, a.budget, ErrAllocation)
	}
	a.used += n
	return &Texture{
		Width:  bs.Width,
		Height: bs.Height,
		Data:   make([]float32, n),
	}, nil
}

// Free implements Allocator.
func (a *CPUAllocator) Free(t *Texture) {
	if t == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used -= len(t.Data)
}

// Used returns number of allocated texels.
func (a *CPUAllocator) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}
