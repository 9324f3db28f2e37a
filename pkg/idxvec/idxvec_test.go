package idxvec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/pgm-core/pkg/idxvec"
)

func TestOffsetsRangeAndGroupOf(t *testing.T) {
	o := idxvec.NewOffsets([]int{0, 2, 2, 5})

	assert.Equal(t, 3, o.Size())
	assert.Equal(t, 5, o.ElementSize())

	assert.Equal(t, idxvec.Range{Begin: 0, End: 2}, o.Range(0))
	assert.Equal(t, idxvec.Range{Begin: 2, End: 2}, o.Range(1))
	assert.Equal(t, idxvec.Range{Begin: 2, End: 5}, o.Range(2))

	for e := 0; e < 5; e++ {
		g := o.GroupOf(e)
		r := o.Range(g)
		assert.GreaterOrEqual(t, e, r.Begin)
		assert.Less(t, e, r.End)
	}
}

func TestTagsMatchesOffsets(t *testing.T) {
	groupOf := []int{0, 0, 2, 2, 2}
	off := idxvec.OffsetsFromDense(groupOf, 3)
	tags := idxvec.TagsFromGroupOf(groupOf, 3)

	require.Equal(t, off.Size(), tags.Size())
	require.Equal(t, off.ElementSize(), tags.ElementSize())

	for g := 0; g < 3; g++ {
		assert.Equal(t, off.Range(g), tags.Range(g))
	}
	for e := 0; e < len(groupOf); e++ {
		assert.Equal(t, off.GroupOf(e), tags.GroupOf(e))
	}
}

func TestConcatenationCoversAllElements(t *testing.T) {
	off := idxvec.NewOffsets([]int{0, 3, 3, 7, 10})
	var seen []int
	for g := 0; g < off.Size(); g++ {
		r := off.Range(g)
		for e := r.Begin; e < r.End; e++ {
			seen = append(seen, e)
		}
	}
	require.Len(t, seen, off.ElementSize())
	for i, e := range seen {
		assert.Equal(t, i, e)
	}
}

func TestZipRequiresMatchingSize(t *testing.T) {
	a := idxvec.NewOffsets([]int{0, 1, 2})
	b := idxvec.NewOffsets([]int{0, 1, 2, 3})
	assert.Panics(t, func() { idxvec.Zip(a, b) })
}

func TestZipYieldsParallelRanges(t *testing.T) {
	a := idxvec.NewOffsets([]int{0, 2, 4})
	b := idxvec.NewOffsets([]int{0, 1, 3})

	entries := idxvec.Zip(a, b)
	require.Len(t, entries, 2)
	assert.Equal(t, idxvec.Range{Begin: 0, End: 2}, entries[0].Ranges[0])
	assert.Equal(t, idxvec.Range{Begin: 0, End: 1}, entries[0].Ranges[1])
	assert.Equal(t, idxvec.Range{Begin: 2, End: 4}, entries[1].Ranges[0])
	assert.Equal(t, idxvec.Range{Begin: 1, End: 3}, entries[1].Ranges[1])
}
