// Package solver defines the binary program shared by the exact
// allocation algorithms. A problem is a set of binary columns, each
// worth a value and drawing weight from capacity rows; at most one
// column per group may be chosen. Backends maximise the total value
// of the chosen columns.
package solver

import (
	"context"
	"fmt"
	"time"
)

// Weight is a column's draw on one capacity row.
type Weight struct {
	Row    int
	Amount int64
}

// Column is one binary decision. Choosing it adds Value to the
// objective and its Weights to each named row.
type Column struct {
	Value   float64
	Group   int
	Weights []Weight
}

// Problem is a grouped binary program: maximise the value sum of the
// chosen columns subject to row capacities and at most one chosen
// column per group.
type Problem struct {
	Columns    []Column
	Capacities []int64
	Groups     int
}

// Validate reports the first structural fault in the problem.
func (p *Problem) Validate() error {
	for i, cap := range p.Capacities {
		if cap < 0 {
			return fmt.Errorf("row %d has negative capacity %d", i, cap)
		}
	}
	for i, col := range p.Columns {
		if col.Value < 0 {
			return fmt.Errorf("column %d has negative value %g", i, col.Value)
		}
		if col.Group < 0 || col.Group >= p.Groups {
			return fmt.Errorf("column %d names group %d of %d", i, col.Group, p.Groups)
		}
		for _, w := range col.Weights {
			if w.Row < 0 || w.Row >= len(p.Capacities) {
				return fmt.Errorf("column %d names row %d of %d", i, w.Row, len(p.Capacities))
			}
			if w.Amount < 0 {
				return fmt.Errorf("column %d has negative weight %d on row %d", i, w.Amount, w.Row)
			}
		}
	}
	return nil
}

// Solution is a backend's answer. Chosen lists column indices. When
// the search ran out of time the incumbent comes back with
// ProvenOptimal false; that is a result, not an error.
type Solution struct {
	Chosen        []int
	Objective     float64
	ProvenOptimal bool
}

// Solver is a backend able to solve the binary program. A zero limit
// means no limit.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p *Problem, limit time.Duration) (*Solution, error)
}
