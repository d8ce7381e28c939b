package heightmap

import (
	"fmt"

	"github.com/davidhesselbom/freq-sub001/interval"
)

// maxLogSamples keeps sample intervals of references within uint64.
const maxLogSamples = 48

// BlockSize is the number of texels of each block.
type BlockSize struct {
	Width  int
	Height int
}

// Texels returns the number of texels in a block.
func (bs BlockSize) Texels() int {
	return bs.Width * bs.Height
}

// Reference is a position and a resolution of a block.
//
// A block covers Width << LogSamples samples in time, so each texel column
// spans 1 << LogSamples samples. Frequency axis is normalized to [0, 1) and
// split into 1 << LogScale rows of blocks.
type Reference struct {
	LogSamples int
	LogScale   int
	IndexX     uint64
	IndexY     uint64
}

func (r Reference) String() string {
	return fmt.Sprintf("ref(%d,%d)[%d,%d]", r.LogSamples, r.LogScale, r.IndexX, r.IndexY)
}

// Background returns the reference of a block that covers the whole signal
// with the coarsest resolution.
func Background(bs BlockSize, signalLength uint64) Reference {
	var r Reference
	for r.LogSamples < maxLogSamples && uint64(bs.Width)<<uint(r.LogSamples) < signalLength {
		r.LogSamples++
	}
	return r
}

// Samples returns number of samples covered by the block.
func (r Reference) Samples(bs BlockSize) uint64 {
	return uint64(bs.Width) << uint(r.LogSamples)
}

// SampleInterval returns samples covered by the block.
func (r Reference) SampleInterval(bs BlockSize) interval.Interval {
	n := r.Samples(bs)
	first := r.IndexX * n
	return interval.New(first, interval.Add(first, n))
}

// FrequencyRange returns normalized frequencies covered by the block.
func (r Reference) FrequencyRange() (float64, float64) {
	rows := float64(uint64(1) << uint(r.LogScale))
	return float64(r.IndexY) / rows, float64(r.IndexY+1) / rows
}

// Valid returns false for references outside of the frequency axis.
func (r Reference) Valid() bool {
	return r.LogSamples >= 0 && r.LogSamples <= maxLogSamples &&
		r.LogScale >= 0 && r.LogScale < 64 &&
		r.IndexY < uint64(1)<<uint(r.LogScale)
}

// Parent returns the block with half the resolution in both directions.
func (r Reference) Parent() (Reference, bool) {
	if r.LogScale == 0 || r.LogSamples >= maxLogSamples {
		return Reference{}, false
	}
	return Reference{
		LogSamples: r.LogSamples + 1,
		LogScale:   r.LogScale - 1,
		IndexX:     r.IndexX / 2,
		IndexY:     r.IndexY / 2,
	}, true
}

// HorizontalParent returns the block with half the time resolution.
func (r Reference) HorizontalParent() (Reference, bool) {
	if r.LogSamples >= maxLogSamples {
		return Reference{}, false
	}
	return Reference{
		LogSamples: r.LogSamples + 1,
		LogScale:   r.LogScale,
		IndexX:     r.IndexX / 2,
		IndexY:     r.IndexY,
	}, true
}

// VerticalParent returns the block with half the frequency resolution.
func (r Reference) VerticalParent() (Reference, bool) {
	if r.LogScale == 0 {
		return Reference{}, false
	}
	return Reference{
		LogSamples: r.LogSamples,
		LogScale:   r.LogScale - 1,
		IndexX:     r.IndexX,
		IndexY:     r.IndexY / 2,
	}, true
}

// Children returns the four blocks with twice the resolution.
func (r Reference) Children() []Reference {
	if r.LogSamples == 0 || r.LogScale >= 63 {
		return nil
	}
	children := make([]Reference, 0, 4)
	for dy := uint64(0); dy < 2; dy++ {
		for dx := uint64(0); dx < 2; dx++ {
			children = append(children, Reference{
				LogSamples: r.LogSamples - 1,
				LogScale:   r.LogScale + 1,
				IndexX:     2*r.IndexX + dx,
				IndexY:     2*r.IndexY + dy,
			})
		}
	}
	return children
}

// Neighbours returns valid blocks of the same resolution around the block.
func (r Reference) Neighbours() []Reference {
	var neighbours []Reference
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if (dx < 0 && r.IndexX == 0) || (dy < 0 && r.IndexY == 0) {
				continue
			}
			n := Reference{
				LogSamples: r.LogSamples,
				LogScale:   r.LogScale,
				IndexX:     uint64(int64(r.IndexX) + int64(dx)),
				IndexY:     uint64(int64(r.IndexY) + int64(dy)),
			}
			if n.Valid() {
				neighbours = append(neighbours, n)
			}
		}
	}
	return neighbours
}

// related returns references that are likely to be needed soon if r is
// in use.
func (r Reference) related() []Reference {
	refs := r.Children()
	if p, ok := r.Parent(); ok {
		refs = append(refs, p)
	}
	if p, ok := r.HorizontalParent(); ok {
		refs = append(refs, p)
	}
	if p, ok := r.VerticalParent(); ok {
		refs = append(refs, p)
	}
	return append(refs, r.Neighbours()...)
}
