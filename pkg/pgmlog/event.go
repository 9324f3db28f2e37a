package pgmlog

// Event is the closed enumeration of timing/counter codes the core emits
// (spec.md §6). A handful of upstream codes are documented there as "find
// another code" — their identity may shift across versions — so this enum
// is deliberately left open to extension (plain iota, no exhaustive switch
// anywhere outside this package).
type Event int

const (
	Total Event = iota
	BuildModel
	TotalSingleCalculationInThread
	TotalBatchCalculationInThread
	CopyModel
	UpdateModel
	RestoreModel
	ScenarioException
	RecoverFromBad
	Prepare
	CreateMathSolver
	MathCalculation
	MathSolver
	InitializeCalculation
	PreprocessMeasuredValue
	PrepareMatrix
	PrepareMatrixIncludingPrefactorization
	PrepareMatrices
	PrepareLhsRhs
	InitializeVoltages
	CalculateRHS
	SolveSparseLinearEquation
	SolveSparseLinearEquationPrefactorized
	IterateUnknown
	CalculateMathResult
	ProduceOutput
	IterativePFSolverMaxNumIter
	MaxNumIter
)

var eventNames = map[Event]string{
	Total:                                   "total",
	BuildModel:                              "build_model",
	TotalSingleCalculationInThread:          "total_single_calculation_in_thread",
	TotalBatchCalculationInThread:           "total_batch_calculation_in_thread",
	CopyModel:                               "copy_model",
	UpdateModel:                             "update_model",
	RestoreModel:                            "restore_model",
	ScenarioException:                       "scenario_exception",
	RecoverFromBad:                          "recover_from_bad",
	Prepare:                                 "prepare",
	CreateMathSolver:                        "create_math_solver",
	MathCalculation:                         "math_calculation",
	MathSolver:                              "math_solver",
	InitializeCalculation:                   "initialize_calculation",
	PreprocessMeasuredValue:                 "preprocess_measured_value",
	PrepareMatrix:                           "prepare_matrix",
	PrepareMatrixIncludingPrefactorization:  "prepare_matrix_including_prefactorization",
	PrepareMatrices:                         "prepare_matrices",
	PrepareLhsRhs:                           "prepare_lhs_rhs",
	InitializeVoltages:                      "initialize_voltages",
	CalculateRHS:                            "calculate_rhs",
	SolveSparseLinearEquation:               "solve_sparse_linear_equation",
	SolveSparseLinearEquationPrefactorized:  "solve_sparse_linear_equation_prefactorized",
	IterateUnknown:                          "iterate_unknown",
	CalculateMathResult:                     "calculate_math_result",
	ProduceOutput:                           "produce_output",
	IterativePFSolverMaxNumIter:             "iterative_pf_solver_max_num_iter",
	MaxNumIter:                              "max_num_iter",
}

func (e Event) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return "event_unknown"
}
