package cache_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davidhesselbom/freq-sub001/cache"
	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/signal"
)

func buffer(first, last uint64, value float64) signal.Buffer {
	b := signal.NewBuffer(interval.New(first, last), 100, 1)
	for i := range b.Data[0] {
		b.Data[0][i] = value
	}
	return b
}

func TestPutRead(t *testing.T) {
	c := cache.New()
	c.Put(buffer(0, 4, 1))
	c.Put(buffer(6, 10, 2))
	c.Put(buffer(2, 8, 3))

	assert.Equal(t, []interval.Interval{{First: 0, Last: 10}}, c.SamplesDesc().Slice())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 1, c.NumChannels())
	assert.Equal(t, 100, c.SampleRate())

	b := c.Read(interval.New(0, 12))
	assert.Equal(t, interval.New(0, 12), b.Interval)
	assert.Equal(t, []float64{1, 1, 3, 3, 3, 3, 3, 3, 2, 2, 0, 0}, b.Data[0])
}

func TestInvalidate(t *testing.T) {
	c := cache.New()
	c.Put(buffer(0, 10, 1))
	c.Invalidate(interval.From(interval.New(2, 4), interval.New(8, 20)))

	assert.Equal(t, []interval.Interval{{First: 0, Last: 2}, {First: 4, Last: 8}}, c.SamplesDesc().Slice())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []float64{1, 1, 0, 0, 1, 1, 1, 1, 0, 0}, c.Read(interval.New(0, 10)).Data[0])

	c.Clear()
	assert.True(t, c.SamplesDesc().Empty())
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := cache.New()
	var wg sync.WaitGroup
	for i := uint64(0); i < 16; i++ {
		wg.Add(2)
		go func(i uint64) {
			defer wg.Done()
			c.Put(buffer(i*10, i*10+10, float64(i)))
		}(i)
		go func(i uint64) {
			defer wg.Done()
			_ = c.Read(interval.New(0, 160))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, []interval.Interval{{First: 0, Last: 160}}, c.SamplesDesc().Slice())
	b := c.Read(interval.New(150, 160))
	assert.Equal(t, 15.0, b.Data[0][0])
}
