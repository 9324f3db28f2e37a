package ybus

import (
	"sort"

	"github.com/voltgrid/pgm-core/pkg/idxvec"
	"github.com/voltgrid/pgm-core/pkg/sparselu"
	"github.com/voltgrid/pgm-core/pkg/topology"
)

// YBusStructure is the symbolic sparsity of a Y-bus matrix over one
// MathTopology: the physical (branch/shunt) nonzero pattern, the per-entry
// contribution lists that drive value assembly, and an LU pattern that adds
// the topology's symbolic fill-in on top — ready to hand straight to
// pkg/sparselu as a Pattern.
type YBusStructure struct {
	NBus int

	// RowPtr/ColIdx is the CSR of the physical (no fill-in) Y pattern.
	RowPtr []int
	ColIdx []int

	contributions [][]contribution

	// branchEntries[b] / shuntEntries[s] list the flat Y-pattern entry
	// indices that include a contribution from branch b / shunt s, the
	// "precomputed inverse map" spec.md §4.3's incremental update needs.
	branchEntries map[int][]int
	shuntEntries  map[int][]int

	// LU is the same pattern with topology.MathTopology.FillIn entries
	// merged in (both directions, since fill-in is a symmetric structural
	// property of the elimination), ready to back a sparselu.Matrix.
	LU *sparselu.Pattern
	// MapLUToY[luEntry] is the corresponding flat Y-pattern entry index, or
	// -1 if luEntry only exists because of fill-in.
	MapLUToY []int
}

// Range returns the physical Y-pattern's column range for row.
func (s *YBusStructure) Range(row int) idxvec.Range {
	return idxvec.Range{Begin: s.RowPtr[row], End: s.RowPtr[row+1]}
}

type busPair struct{ row, col int }

// BuildStructure performs spec.md §4.3's "structure construction": enumerate
// every branch/shunt contribution, sort lexicographically by (row, col) into
// a physical CSR, then merge in the topology's symbolic fill-in to produce
// the LU pattern.
func BuildStructure(topo *topology.MathTopology) *YBusStructure {
	n := topo.NBus
	entries := make(map[busPair][]contribution)
	add := func(row, col int, c contribution) {
		if row < 0 || col < 0 {
			return
		}
		entries[busPair{row, col}] = append(entries[busPair{row, col}], c)
	}

	for b, rc := range topo.BranchBusIdx {
		from, to := rc[0], rc[1]
		if from >= 0 {
			add(from, from, contribution{contribBranchFF, b})
		}
		if to >= 0 {
			add(to, to, contribution{contribBranchTT, b})
		}
		if from >= 0 && to >= 0 {
			add(from, to, contribution{contribBranchFT, b})
			add(to, from, contribution{contribBranchTF, b})
		}
	}

	for bus := 0; bus < n; bus++ {
		r := topo.ShuntsPerBus.Range(bus)
		for s := r.Begin; s < r.End; s++ {
			add(bus, bus, contribution{contribShunt, s})
		}
	}

	keys := make([]busPair, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].row != keys[j].row {
			return keys[i].row < keys[j].row
		}
		return keys[i].col < keys[j].col
	})

	s := &YBusStructure{
		NBus:          n,
		RowPtr:        make([]int, n+1),
		ColIdx:        make([]int, len(keys)),
		contributions: make([][]contribution, len(keys)),
		branchEntries: make(map[int][]int),
		shuntEntries:  make(map[int][]int),
	}
	for i, k := range keys {
		s.ColIdx[i] = k.col
		s.contributions[i] = entries[k]
		s.RowPtr[k.row+1] = i + 1
		for _, c := range entries[k] {
			switch c.kind {
			case contribBranchFF, contribBranchFT, contribBranchTF, contribBranchTT:
				s.branchEntries[c.idx] = append(s.branchEntries[c.idx], i)
			case contribShunt:
				s.shuntEntries[c.idx] = append(s.shuntEntries[c.idx], i)
			}
		}
	}
	for row := 1; row <= n; row++ {
		if s.RowPtr[row] < s.RowPtr[row-1] {
			s.RowPtr[row] = s.RowPtr[row-1]
		}
	}

	s.buildLUPattern(topo)
	return s
}

// buildLUPattern unions the physical pattern with the topology's fill-in
// edges (recorded symmetrically, since fill-in is a structural-symmetry
// property of minimum-degree elimination) and records diag_lu / map_lu_y.
func (s *YBusStructure) buildLUPattern(topo *topology.MathTopology) {
	n := s.NBus
	colsPerRow := make([][]int, n)
	yEntryPerCol := make([]map[int]int, n)
	for row := 0; row < n; row++ {
		yEntryPerCol[row] = make(map[int]int)
		for e := s.RowPtr[row]; e < s.RowPtr[row+1]; e++ {
			col := s.ColIdx[e]
			colsPerRow[row] = append(colsPerRow[row], col)
			yEntryPerCol[row][col] = e
		}
	}

	present := func(row, col int) bool {
		_, ok := yEntryPerCol[row][col]
		return ok
	}
	addFill := func(row, col int) {
		if present(row, col) {
			return
		}
		colsPerRow[row] = append(colsPerRow[row], col)
		yEntryPerCol[row][col] = -1
	}
	for _, f := range topo.FillIn {
		addFill(f[0], f[1])
		addFill(f[1], f[0])
	}
	// Every row must at least carry its own diagonal for the solver to pivot
	// on, even an all-zero bus (an isolated shunt-only bus with no branch).
	for row := 0; row < n; row++ {
		addFill(row, row)
	}

	rowPtr := make([]int, n+1)
	var colIdx []int
	mapLUToY := []int{}
	diagLU := make([]int, n)
	for row := 0; row < n; row++ {
		cols := colsPerRow[row]
		sort.Ints(cols)
		rowPtr[row] = len(colIdx)
		for _, col := range cols {
			if col == row {
				diagLU[row] = len(colIdx)
			}
			colIdx = append(colIdx, col)
			mapLUToY = append(mapLUToY, yEntryPerCol[row][col])
		}
	}
	rowPtr[n] = len(colIdx)

	s.LU = &sparselu.Pattern{N: n, RowPtr: rowPtr, ColIdx: colIdx, DiagLU: diagLU}
	s.MapLUToY = mapLUToY
}
