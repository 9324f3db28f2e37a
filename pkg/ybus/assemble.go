package ybus

import (
	"github.com/voltgrid/pgm-core/pkg/pgmtypes"
	"github.com/voltgrid/pgm-core/pkg/sparselu"
)

// YBus pairs a YBusStructure with its current numeric values, assembled
// from a MathParam (spec.md §4.3's "value assembly").
type YBus struct {
	Structure *YBusStructure
	Param     *MathParam
	Values    []pgmtypes.PhaseMatrix

	subscribers []func()
}

// New assembles a fresh YBus from structure and param, summing every
// entry's contribution list.
func New(structure *YBusStructure, param *MathParam) *YBus {
	yb := &YBus{Structure: structure, Param: param}
	yb.Values = make([]pgmtypes.PhaseMatrix, len(structure.ColIdx))
	for i := range yb.Values {
		yb.Values[i] = param.Sym.NewMatrix()
	}
	for i := range yb.Values {
		yb.recompute(i)
	}
	return yb
}

func (yb *YBus) recompute(entry int) {
	sum := yb.Param.Sym.NewMatrix()
	for _, c := range yb.Structure.contributions[entry] {
		switch c.kind {
		case contribBranchFF:
			sum = sum.Add(yb.Param.Branch[c.idx].YFF)
		case contribBranchFT:
			sum = sum.Add(yb.Param.Branch[c.idx].YFT)
		case contribBranchTF:
			sum = sum.Add(yb.Param.Branch[c.idx].YTF)
		case contribBranchTT:
			sum = sum.Add(yb.Param.Branch[c.idx].YTT)
		case contribShunt:
			sum = sum.Add(yb.Param.Shunt[c.idx])
		}
	}
	yb.Values[entry] = sum
}

// Subscribe registers cb to be invoked synchronously whenever Update runs,
// the "parameters changed" callback spec.md §4.3/§9 calls for so a solver's
// cached prefactorization can invalidate itself. It returns an unsubscribe
// function.
func (yb *YBus) Subscribe(cb func()) (unsubscribe func()) {
	idx := len(yb.subscribers)
	yb.subscribers = append(yb.subscribers, cb)
	return func() { yb.subscribers[idx] = nil }
}

func (yb *YBus) notify() {
	for _, cb := range yb.subscribers {
		if cb != nil {
			cb()
		}
	}
}

// UpdateBranches recomputes only the Y entries touched by the given branch
// parameter indices, then fires the parameters-changed callback.
func (yb *YBus) UpdateBranches(branchIdx []int) {
	for _, b := range branchIdx {
		for _, entry := range yb.Structure.branchEntries[b] {
			yb.recompute(entry)
		}
	}
	yb.notify()
}

// UpdateShunts recomputes only the Y entries touched by the given shunt
// parameter indices, then fires the parameters-changed callback.
func (yb *YBus) UpdateShunts(shuntIdx []int) {
	for _, s := range shuntIdx {
		for _, entry := range yb.Structure.shuntEntries[s] {
			yb.recompute(entry)
		}
	}
	yb.notify()
}

// NewLUData allocates a block array shaped for yb.Structure.LU and
// populates it with the current Y values (fill-in positions start at zero),
// ready for a solver to add source/fault terms and hand to sparselu.
func (yb *YBus) NewLUData(blockSize int) []sparselu.Block {
	data := make([]sparselu.Block, yb.Structure.LU.NNZ())
	n := yb.Param.Sym.NDim()
	for i := range data {
		data[i] = sparselu.NewBlock(blockSize)
		if yIdx := yb.Structure.MapLUToY[i]; yIdx >= 0 {
			setBlock(&data[i], n, yb.Values[yIdx])
		}
	}
	return data
}

func setBlock(b *sparselu.Block, n int, m pgmtypes.PhaseMatrix) {
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			b.Set(i, j, m.At(n, i, j))
		}
	}
}

// AddToBlock accumulates m into the block at luEntry (e.g. folding a
// source's Thevenin admittance into the diagonal), the pattern every power
// flow / short-circuit solver uses before factorizing.
func AddToBlock(data []sparselu.Block, luEntry, n int, m pgmtypes.PhaseMatrix) {
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			data[luEntry].Add1(i, j, m.At(n, i, j))
		}
	}
}
