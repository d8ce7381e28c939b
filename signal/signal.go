// Package signal provides sample buffers used across the processing graph.
// It allows to:
//   - convert interleaved data to non-interleaved
//   - convert bit depth for int signals
//   - address buffers by the sample interval they cover
package signal

import (
	"math"
	"time"

	"github.com/davidhesselbom/freq-sub001/interval"
)

// Float64 is a non-interleaved float64 signal.
type Float64 [][]float64

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// InterInt is an interleaved int signal.
type InterInt struct {
	Data        []int
	NumChannels int
	BitDepth
}

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// devider is used when int to float conversion is done.
func (bitDepth BitDepth) devider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth24:
		return 1<<23 - 2
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// AsFloat64 converts interleaved int signal to float64.
func (ints InterInt) AsFloat64() Float64 {
	if ints.Data == nil || ints.NumChannels == 0 {
		return nil
	}
	floats := make([][]float64, ints.NumChannels)
	bufSize := int(math.Ceil(float64(len(ints.Data)) / float64(ints.NumChannels)))

	devider := float64(ints.BitDepth.devider())
	for i := range floats {
		floats[i] = make([]float64, bufSize)
		pos := 0
		for j := i; j < len(ints.Data); j = j + ints.NumChannels {
			floats[i][pos] = float64(ints.Data[j]) / devider
			pos++
		}
	}
	return floats
}

// AsInterInt converts float64 signal to interleaved int.
func (floats Float64) AsInterInt(bitDepth BitDepth) []int {
	var numChannels int
	if numChannels = len(floats); numChannels == 0 {
		return nil
	}

	multiplier := float64(bitDepth.multiplier())
	ints := make([]int, len(floats[0])*numChannels)
	for j := range floats {
		for i := range floats[j] {
			ints[i*numChannels+j] = int(floats[j][i] * multiplier)
		}
	}
	return ints
}

// EmptyFloat64 returns an empty buffer of specified dimentions.
func EmptyFloat64(numChannels int, bufferSize int) Float64 {
	result := make([][]float64, numChannels)
	for i := range result {
		result[i] = make([]float64, bufferSize)
	}
	return result
}

// NumChannels returns number of channels in this sample slice
func (floats Float64) NumChannels() int {
	return len(floats)
}

// Size returns number of samples in single block in this sample slice
func (floats Float64) Size() int {
	if floats.NumChannels() == 0 {
		return 0
	}
	return len(floats[0])
}

// Slice creates a new copy of buffer from start position with defined legth
// if buffer doesn't have enough samples - shorten block is returned
//
// if start >= buffer size, nil is returned
// if start + len >= buffer size, len is decreased till the end of slice
// if start < 0, nil is returned
func (floats Float64) Slice(start int, len int) Float64 {
	if floats == nil || start >= floats.Size() || start < 0 {
		return nil
	}
	end := start + len
	if end > floats.Size() {
		end = floats.Size()
	}
	result := make([][]float64, floats.NumChannels())
	for i := range floats {
		result[i] = append(result[i], floats[i][start:end]...)
	}
	return result
}

// Buffer is a signal addressed by the sample interval it covers. Every
// channel of Data holds exactly Interval.Count() samples.
type Buffer struct {
	Interval   interval.Interval
	SampleRate int
	Data       Float64
}

// NewBuffer allocates a silent buffer for the interval.
func NewBuffer(i interval.Interval, sampleRate, numChannels int) Buffer {
	return Buffer{
		Interval:   i,
		SampleRate: sampleRate,
		Data:       EmptyFloat64(numChannels, int(i.Count())),
	}
}

// NumChannels returns number of channels in the buffer.
func (b Buffer) NumChannels() int {
	return b.Data.NumChannels()
}

// Duration returns time duration of the buffer.
func (b Buffer) Duration() time.Duration {
	return DurationOf(b.SampleRate, int64(b.Interval.Count()))
}

// Slice returns a copy of the buffer part inside i. Parts of i outside the
// buffer are not included.
func (b Buffer) Slice(i interval.Interval) Buffer {
	i = i.Intersect(b.Interval)
	r := Buffer{Interval: i, SampleRate: b.SampleRate}
	if i.Empty() {
		r.Data = EmptyFloat64(b.NumChannels(), 0)
		return r
	}
	r.Data = b.Data.Slice(int(i.First-b.Interval.First), int(i.Count()))
	return r
}

// CopyFrom copies overlapping samples of src into the buffer and returns
// the overlapping interval. Channels missing in either buffer are skipped.
func (b Buffer) CopyFrom(src Buffer) interval.Interval {
	overlap := b.Interval.Intersect(src.Interval)
	if overlap.Empty() {
		return overlap
	}
	dstOffset := int(overlap.First - b.Interval.First)
	srcOffset := int(overlap.First - src.Interval.First)
	n := int(overlap.Count())
	for c := 0; c < b.NumChannels() && c < src.NumChannels(); c++ {
		copy(b.Data[c][dstOffset:dstOffset+n], src.Data[c][srcOffset:srcOffset+n])
	}
	return overlap
}
