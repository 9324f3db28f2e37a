package solver

import "fmt"

// BatchCalculationError is the hand-off shape spec.md §6/§7 describes for an
// external batch driver: "batch drivers collect them as
// BatchCalculationError with per-scenario lists." The driver itself (thread
// pool, scenario enumeration) is out of scope; this type only documents the
// shape the core's errors arrive in once a driver wraps them, the way the
// teacher's analyses return a plain error per run and leave orchestration to
// cmd/.
type BatchCalculationError struct {
	ScenarioErrors map[int]error
}

// Add records err against scenario index i, initializing the map on first
// use.
func (e *BatchCalculationError) Add(i int, err error) {
	if e.ScenarioErrors == nil {
		e.ScenarioErrors = make(map[int]error)
	}
	e.ScenarioErrors[i] = err
}

// Empty reports whether no scenario failed.
func (e *BatchCalculationError) Empty() bool { return len(e.ScenarioErrors) == 0 }

func (e *BatchCalculationError) Error() string {
	return fmt.Sprintf("batch calculation failed in %d scenario(s)", len(e.ScenarioErrors))
}
