package pgmlog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voltgrid/pgm-core/pkg/pgmlog"
)

func TestLogAccumulatesSumAndMax(t *testing.T) {
	l := pgmlog.New()
	l.LogValue(pgmlog.MathCalculation, 1.5)
	l.LogValue(pgmlog.MathCalculation, 2.5)

	assert.InDelta(t, 4.0, l.Sum(pgmlog.MathCalculation), 1e-12)
	assert.InDelta(t, 2.5, l.Max(pgmlog.MathCalculation), 1e-12)
}

func TestChildMergeAccumulates(t *testing.T) {
	parent := pgmlog.New()
	parent.LogCount(pgmlog.MaxNumIter, 3)

	child := parent.Child()
	child.LogCount(pgmlog.MaxNumIter, 5)
	child.LogValue(pgmlog.MathSolver, 9.0)

	parent.Merge(child)

	assert.Equal(t, 8, parent.IntSum(pgmlog.MaxNumIter))
	assert.InDelta(t, 9.0, parent.Sum(pgmlog.MathSolver), 1e-12)
}

func TestMergeTakesLargerMax(t *testing.T) {
	parent := pgmlog.New()
	parent.LogValue(pgmlog.SolveSparseLinearEquation, 1.0)

	child := parent.Child()
	child.LogValue(pgmlog.SolveSparseLinearEquation, 10.0)

	parent.Merge(child)
	assert.InDelta(t, 10.0, parent.Max(pgmlog.SolveSparseLinearEquation), 1e-12)
}

func TestEventStringIsStable(t *testing.T) {
	assert.Equal(t, "total", pgmlog.Total.String())
	assert.Equal(t, "max_num_iter", pgmlog.MaxNumIter.String())
}
