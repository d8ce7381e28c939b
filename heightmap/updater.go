package heightmap

import (
	"math"

	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/signal"
)

// Updater writes band buffers into textures of cached blocks. Each channel
// of a band buffer is a frequency band, from low to high frequencies.
type Updater struct {
	collection *Collection
}

// NewUpdater returns updater of the collection blocks.
func NewUpdater(c *Collection) *Updater {
	return &Updater{collection: c}
}

// Update writes the buffer into every cached block it intersects and
// returns the number of updated blocks. A texel gets the maximum of its
// samples.
func (u *Updater) Update(b signal.Buffer) int {
	numBands := b.NumChannels()
	if numBands == 0 || b.Interval.Empty() {
		return 0
	}
	bs := u.collection.BlockSize()
	blocks := u.collection.Blocks(interval.From(b.Interval))
	peaks := make([]float64, numBands)
	for _, block := range blocks {
		ref := block.Reference()
		perTexel := uint64(1) << uint(ref.LogSamples)
		low, high := ref.FrequencyRange()
		first := block.Interval().First
		block.Texture(func(t *Texture) {
			if t == nil {
				return
			}
			for x := 0; x < bs.Width; x++ {
				texel := interval.New(first+uint64(x)*perTexel, first+uint64(x+1)*perTexel)
				samples := texel.Intersect(b.Interval)
				if samples.Empty() {
					continue
				}
				for band := range peaks {
					peaks[band] = math.Inf(-1)
					for s := samples.First; s < samples.Last; s++ {
						peaks[band] = math.Max(peaks[band], b.Data[band][s-b.Interval.First])
					}
				}
				for y := 0; y < bs.Height; y++ {
					f := low + (float64(y)+0.5)/float64(bs.Height)*(high-low)
					band := int(f * float64(numBands))
					if band >= numBands {
						band = numBands - 1
					}
					t.Data[y*t.Width+x] = float32(peaks[band])
				}
			}
		})
	}
	return len(blocks)
}
