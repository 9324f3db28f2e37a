// Package idxvec implements the two interchangeable "group of elements"
// containers used throughout the core: an offset (CSR-like) form and a dense
// tag form. The offset form answers "which elements belong to group g" in
// O(1) and "which group does element e belong to" in O(log n); the tag form
// is the other way round (O(log n) range lookup, O(1) group lookup).
package idxvec

import "sort"

// Range is a half-open slice [Begin, End) into the flat element array.
type Range struct {
	Begin int
	End   int
}

// Len returns the number of elements in the range.
func (r Range) Len() int { return r.End - r.Begin }

// Grouped is implemented by both representations.
type Grouped interface {
	// Size returns the number of groups.
	Size() int
	// ElementSize returns the total number of elements across all groups.
	ElementSize() int
	// Range returns the contiguous element range owned by group g.
	Range(g int) Range
	// GroupOf returns the group that owns element e.
	GroupOf(e int) int
}

// Offsets is the CSR-like representation: off[g]..off[g+1] is group g's range.
type Offsets struct {
	off []int
}

var _ Grouped = (*Offsets)(nil)

// NewOffsets wraps a precomputed offsets array of length nGroups+1.
// off must be non-decreasing and start at 0.
func NewOffsets(off []int) *Offsets {
	return &Offsets{off: off}
}

// OffsetsFromDense builds an Offsets container from a dense "element -> group"
// slice plus the number of groups. Only the per-group element counts are
// used, so the result lays the groups out as contiguous ranges in group
// order; GroupOf(e) equals groupOf[e] only when groupOf is weakly increasing
// (the tag-form contract).
func OffsetsFromDense(groupOf []int, nGroups int) *Offsets {
	off := make([]int, nGroups+1)
	for _, g := range groupOf {
		off[g+1]++
	}
	for g := 0; g < nGroups; g++ {
		off[g+1] += off[g]
	}
	return &Offsets{off: off}
}

func (o *Offsets) Size() int        { return len(o.off) - 1 }
func (o *Offsets) ElementSize() int { return o.off[len(o.off)-1] }

func (o *Offsets) Range(g int) Range {
	return Range{Begin: o.off[g], End: o.off[g+1]}
}

func (o *Offsets) GroupOf(e int) int {
	// largest g such that off[g] <= e
	return sort.Search(len(o.off)-1, func(g int) bool { return o.off[g+1] > e })
}

// Tags is the dense representation: tag[i] is the group of element i,
// non-decreasing across i.
type Tags struct {
	tag     []int
	nGroups int
}

var _ Grouped = (*Tags)(nil)

// NewTags wraps a precomputed, non-decreasing per-element group tag vector.
func NewTags(tag []int, nGroups int) *Tags {
	return &Tags{tag: tag, nGroups: nGroups}
}

// TagsFromGroupOf is an alias of NewTags kept for symmetry with
// OffsetsFromDense; both containers can be built from the same dense vector.
func TagsFromGroupOf(groupOf []int, nGroups int) *Tags {
	return NewTags(groupOf, nGroups)
}

func (t *Tags) Size() int        { return t.nGroups }
func (t *Tags) ElementSize() int { return len(t.tag) }

func (t *Tags) Range(g int) Range {
	begin := sort.Search(len(t.tag), func(i int) bool { return t.tag[i] >= g })
	end := sort.Search(len(t.tag), func(i int) bool { return t.tag[i] > g })
	return Range{Begin: begin, End: end}
}

func (t *Tags) GroupOf(e int) int { return t.tag[e] }

// ZipEntry is one step of a Zip iteration: the shared group index plus the
// per-container ranges for that group.
type ZipEntry struct {
	Group  int
	Ranges []Range
}

// Zip walks up to N grouped indices in lockstep, yielding one ZipEntry per
// group. All containers must report the same Size(); Zip panics otherwise,
// matching the spec's requirement that zipped containers have identical
// group counts.
func Zip(containers ...Grouped) []ZipEntry {
	if len(containers) == 0 {
		return nil
	}
	n := containers[0].Size()
	for _, c := range containers[1:] {
		if c.Size() != n {
			panic("idxvec: Zip requires containers with identical Size()")
		}
	}

	entries := make([]ZipEntry, n)
	for g := 0; g < n; g++ {
		ranges := make([]Range, len(containers))
		for i, c := range containers {
			ranges[i] = c.Range(g)
		}
		entries[g] = ZipEntry{Group: g, Ranges: ranges}
	}
	return entries
}
