// Package interval provides half-open sample ranges and normalized sets of
// them. Intervals is the currency used to describe what is cached, what is
// in flight and what a consumer still needs.
package interval

import (
	"fmt"
	"math"
)

// Max is the largest representable sample position. Arithmetic that would
// go past it saturates.
const Max = uint64(math.MaxUint64)

// All covers every representable sample.
var All = Interval{First: 0, Last: Max}

// Interval is a half-open range [First, Last) of samples.
type Interval struct {
	First uint64
	Last  uint64
}

// New returns interval [first, last). An inverted range results in an empty
// interval.
func New(first, last uint64) Interval {
	if last < first {
		last = first
	}
	return Interval{First: first, Last: last}
}

// Count returns number of samples in the interval.
func (i Interval) Count() uint64 {
	if i.Last <= i.First {
		return 0
	}
	return i.Last - i.First
}

// Empty returns true if interval contains no samples.
func (i Interval) Empty() bool {
	return i.Last <= i.First
}

// Contains returns true if the sample is inside the interval.
func (i Interval) Contains(sample uint64) bool {
	return i.First <= sample && sample < i.Last
}

// Covers returns true if o is entirely inside i. Empty o is always covered.
func (i Interval) Covers(o Interval) bool {
	if o.Empty() {
		return true
	}
	return i.First <= o.First && o.Last <= i.Last
}

// Intersect returns the overlap of two intervals.
func (i Interval) Intersect(o Interval) Interval {
	first, last := i.First, i.Last
	if o.First > first {
		first = o.First
	}
	if o.Last < last {
		last = o.Last
	}
	if last <= first {
		return Interval{}
	}
	return Interval{First: first, Last: last}
}

// Spanned returns the smallest interval containing both i and o.
func (i Interval) Spanned(o Interval) Interval {
	switch {
	case i.Empty():
		return o
	case o.Empty():
		return i
	}
	first, last := i.First, i.Last
	if o.First < first {
		first = o.First
	}
	if o.Last > last {
		last = o.Last
	}
	return Interval{First: first, Last: last}
}

func (i Interval) String() string {
	if i.Empty() {
		return "[)"
	}
	return fmt.Sprintf("[%d, %d)", i.First, i.Last)
}

// Add returns a+b, saturated at Max.
func Add(a, b uint64) uint64 {
	if a > Max-b {
		return Max
	}
	return a + b
}

// Sub returns a-b, saturated at zero.
func Sub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// AlignDown rounds v down to a multiple of n.
func AlignDown(v, n uint64) uint64 {
	if n == 0 {
		return v
	}
	return v - v%n
}

// AlignUp rounds v up to a multiple of n. Values that cannot be rounded
// without overflow saturate at Max.
func AlignUp(v, n uint64) uint64 {
	if n == 0 || v%n == 0 {
		return v
	}
	return Add(AlignDown(v, n), n)
}

// Align expands the interval so both ends are multiples of n.
func (i Interval) Align(n uint64) Interval {
	if i.Empty() {
		return Interval{}
	}
	return Interval{First: AlignDown(i.First, n), Last: AlignUp(i.Last, n)}
}

// Enlarge grows the interval by n samples on both sides.
func (i Interval) Enlarge(n uint64) Interval {
	if i.Empty() {
		return Interval{}
	}
	return Interval{First: Sub(i.First, n), Last: Add(i.Last, n)}
}
