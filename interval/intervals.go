package interval

import (
	"sort"
	"strings"
)

// Intervals is a set of samples stored as sorted, non-overlapping and
// maximally merged intervals. The zero value is an empty set. Values are
// immutable: every operation returns a new set.
//
// Queries binary search the members. Add and Remove search the same way
// but copy the members into the new set, set operations between two sets
// are a single merge pass over both.
type Intervals struct {
	s []Interval
}

// From returns a set that contains all provided intervals.
func From(intervals ...Interval) Intervals {
	switch len(intervals) {
	case 0:
		return Intervals{}
	case 1:
		return Intervals{}.Add(intervals[0])
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].First < sorted[b].First })
	var r []Interval
	for _, i := range sorted {
		r = appendMerged(r, i)
	}
	return Intervals{s: r}
}

// appendMerged appends i to r sorted by First, joining it with the last
// member when they overlap or touch.
func appendMerged(r []Interval, i Interval) []Interval {
	if i.Empty() {
		return r
	}
	if n := len(r); n > 0 && r[n-1].Last >= i.First {
		if i.Last > r[n-1].Last {
			r[n-1].Last = i.Last
		}
		return r
	}
	return append(r, i)
}

// Empty returns true if the set contains no samples.
func (s Intervals) Empty() bool {
	return len(s.s) == 0
}

// Len returns number of merged ranges in the set.
func (s Intervals) Len() int {
	return len(s.s)
}

// Slice returns a copy of merged ranges.
func (s Intervals) Slice() []Interval {
	if len(s.s) == 0 {
		return nil
	}
	r := make([]Interval, len(s.s))
	copy(r, s.s)
	return r
}

// Count returns total number of samples in the set.
func (s Intervals) Count() uint64 {
	var c uint64
	for _, i := range s.s {
		c = Add(c, i.Count())
	}
	return c
}

// Spanned returns the smallest interval containing the whole set.
func (s Intervals) Spanned() Interval {
	if len(s.s) == 0 {
		return Interval{}
	}
	return Interval{First: s.s[0].First, Last: s.s[len(s.s)-1].Last}
}

// FetchFirst returns the first maximal range of the set.
func (s Intervals) FetchFirst() Interval {
	if len(s.s) == 0 {
		return Interval{}
	}
	return s.s[0]
}

// Contains returns true if the sample belongs to the set.
func (s Intervals) Contains(sample uint64) bool {
	idx := sort.Search(len(s.s), func(k int) bool { return s.s[k].Last > sample })
	return idx < len(s.s) && s.s[idx].Contains(sample)
}

// Covers returns true if every sample of i belongs to the set.
func (s Intervals) Covers(i Interval) bool {
	if i.Empty() {
		return true
	}
	idx := sort.Search(len(s.s), func(k int) bool { return s.s[k].Last > i.First })
	return idx < len(s.s) && s.s[idx].Covers(i)
}

// Overlaps returns true if any sample of i belongs to the set.
func (s Intervals) Overlaps(i Interval) bool {
	if i.Empty() {
		return false
	}
	idx := sort.Search(len(s.s), func(k int) bool { return s.s[k].Last > i.First })
	return idx < len(s.s) && s.s[idx].First < i.Last
}

// Equal returns true if both sets contain the same samples.
func (s Intervals) Equal(o Intervals) bool {
	if len(s.s) != len(o.s) {
		return false
	}
	for k := range s.s {
		if s.s[k] != o.s[k] {
			return false
		}
	}
	return true
}

// Add returns the union of the set and a single interval.
func (s Intervals) Add(i Interval) Intervals {
	if i.Empty() {
		return s
	}
	// members in [lo, hi) overlap or touch i and are merged with it.
	lo := sort.Search(len(s.s), func(k int) bool { return s.s[k].Last >= i.First })
	hi := sort.Search(len(s.s), func(k int) bool { return s.s[k].First > i.Last })
	merged := i
	if lo < hi {
		merged = merged.Spanned(s.s[lo]).Spanned(s.s[hi-1])
	}
	r := make([]Interval, 0, len(s.s)-(hi-lo)+1)
	r = append(r, s.s[:lo]...)
	r = append(r, merged)
	r = append(r, s.s[hi:]...)
	return Intervals{s: r}
}

// Remove returns the set without samples of a single interval.
func (s Intervals) Remove(i Interval) Intervals {
	if i.Empty() || len(s.s) == 0 {
		return s
	}
	lo := sort.Search(len(s.s), func(k int) bool { return s.s[k].Last > i.First })
	hi := sort.Search(len(s.s), func(k int) bool { return s.s[k].First >= i.Last })
	if lo >= hi {
		return s
	}
	r := make([]Interval, 0, len(s.s)-(hi-lo)+2)
	r = append(r, s.s[:lo]...)
	if left := s.s[lo]; left.First < i.First {
		r = append(r, Interval{First: left.First, Last: i.First})
	}
	if right := s.s[hi-1]; right.Last > i.Last {
		r = append(r, Interval{First: i.Last, Last: right.Last})
	}
	r = append(r, s.s[hi:]...)
	return Intervals{s: r}
}

// Clip returns the part of the set inside a single interval.
func (s Intervals) Clip(i Interval) Intervals {
	if i.Empty() || len(s.s) == 0 {
		return Intervals{}
	}
	lo := sort.Search(len(s.s), func(k int) bool { return s.s[k].Last > i.First })
	hi := sort.Search(len(s.s), func(k int) bool { return s.s[k].First >= i.Last })
	if lo >= hi {
		return Intervals{}
	}
	r := make([]Interval, 0, hi-lo)
	for _, m := range s.s[lo:hi] {
		r = append(r, m.Intersect(i))
	}
	return Intervals{s: r}
}

// Union returns samples that belong to either set (s | o).
func (s Intervals) Union(o Intervals) Intervals {
	switch {
	case len(o.s) == 0:
		return s
	case len(s.s) == 0:
		return o
	}
	r := make([]Interval, 0, len(s.s)+len(o.s))
	a, b := s.s, o.s
	for len(a) > 0 || len(b) > 0 {
		var next Interval
		if len(b) == 0 || (len(a) > 0 && a[0].First <= b[0].First) {
			next, a = a[0], a[1:]
		} else {
			next, b = b[0], b[1:]
		}
		r = appendMerged(r, next)
	}
	return Intervals{s: r}
}

// Intersect returns samples that belong to both sets (s & o).
func (s Intervals) Intersect(o Intervals) Intervals {
	var r []Interval
	a, b := s.s, o.s
	for len(a) > 0 && len(b) > 0 {
		if x := a[0].Intersect(b[0]); !x.Empty() {
			r = append(r, x)
		}
		if a[0].Last < b[0].Last {
			a = a[1:]
		} else {
			b = b[1:]
		}
	}
	return Intervals{s: r}
}

// Subtract returns samples of s that don't belong to o (s - o).
func (s Intervals) Subtract(o Intervals) Intervals {
	if len(s.s) == 0 || len(o.s) == 0 {
		return s
	}
	var r []Interval
	b := o.s
	for _, m := range s.s {
		for len(b) > 0 && b[0].Last <= m.First {
			b = b[1:]
		}
		first := m.First
		// only the last member scanned can reach past m
		for k := 0; k < len(b) && b[k].First < m.Last; k++ {
			if b[k].First > first {
				r = append(r, Interval{First: first, Last: b[k].First})
			}
			if b[k].Last > first {
				first = b[k].Last
			}
		}
		if first < m.Last {
			r = append(r, Interval{First: first, Last: m.Last})
		}
	}
	return Intervals{s: r}
}

// Complement returns samples of [0, Max) that don't belong to the set (~s).
func (s Intervals) Complement() Intervals {
	return From(All).Subtract(s)
}

func (s Intervals) String() string {
	if len(s.s) == 0 {
		return "{}"
	}
	var b strings.Builder
	for _, i := range s.s {
		b.WriteString(i.String())
	}
	return b.String()
}
