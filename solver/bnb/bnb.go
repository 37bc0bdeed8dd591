// Package bnb solves the binary program by depth-first branch and
// bound. Groups are decided in index order, columns within a group in
// the order given, so the search and its answer are deterministic.
package bnb

import (
	"context"
	"time"

	"github.com/ohsu-comp-bio/weir/logger"
	"github.com/ohsu-comp-bio/weir/solver"
)

var log = logger.NewSubLogger("bnb")

// Interrupt checks are amortised over this many visited nodes.
const checkInterval = 1024

// Solver bounds each subtree by the best value still reachable from
// the undecided groups and prunes it when that cannot beat the
// incumbent. On interrupt the incumbent comes back unproven.
type Solver struct {
	Log *logger.Logger
}

func New() *Solver {
	return &Solver{}
}

func (s *Solver) Name() string { return "branch and bound" }

func (s *Solver) Solve(ctx context.Context, p *solver.Problem, limit time.Duration) (*solver.Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	perGroup := make([][]int, p.Groups)
	for i, col := range p.Columns {
		perGroup[col.Group] = append(perGroup[col.Group], i)
	}

	// suffix[g] is the value of winning every group from g on, the
	// upper bound for a subtree about to decide group g.
	suffix := make([]float64, p.Groups+1)
	for g := p.Groups - 1; g >= 0; g-- {
		best := 0.0
		for _, i := range perGroup[g] {
			if v := p.Columns[i].Value; v > best {
				best = v
			}
		}
		suffix[g] = suffix[g+1] + best
	}

	sr := &search{
		problem:   p,
		perGroup:  perGroup,
		suffix:    suffix,
		remaining: append([]int64(nil), p.Capacities...),
		ctx:       ctx,
	}
	if limit > 0 {
		sr.deadline = start.Add(limit)
	}
	sr.dfs(0, 0)

	sr.best.ProvenOptimal = !sr.expired
	s.logger().Debug("search done",
		"nodes", sr.nodes,
		"objective", sr.best.Objective,
		"proven", sr.best.ProvenOptimal,
		"elapsed", time.Since(start))
	return &sr.best, nil
}

func (s *Solver) logger() *logger.Logger {
	if s.Log != nil {
		return s.Log
	}
	return log
}

type search struct {
	problem   *solver.Problem
	perGroup  [][]int
	suffix    []float64
	remaining []int64
	stack     []int
	best      solver.Solution
	deadline  time.Time
	ctx       context.Context
	nodes     int
	expired   bool
}

func (s *search) dfs(group int, value float64) {
	if s.expired {
		return
	}
	s.nodes++
	if s.nodes%checkInterval == 0 && s.interrupted() {
		s.expired = true
		return
	}

	if group == len(s.perGroup) {
		if value > s.best.Objective {
			s.best.Objective = value
			s.best.Chosen = append([]int(nil), s.stack...)
		}
		return
	}
	if value+s.suffix[group] <= s.best.Objective {
		return
	}

	for _, i := range s.perGroup[group] {
		col := &s.problem.Columns[i]
		if !s.fits(col) {
			continue
		}
		s.apply(col, -1)
		s.stack = append(s.stack, i)
		s.dfs(group+1, value+col.Value)
		s.stack = s.stack[:len(s.stack)-1]
		s.apply(col, 1)
		if s.expired {
			return
		}
	}
	s.dfs(group+1, value)
}

func (s *search) fits(col *solver.Column) bool {
	for _, w := range col.Weights {
		if w.Amount > s.remaining[w.Row] {
			return false
		}
	}
	return true
}

func (s *search) apply(col *solver.Column, sign int64) {
	for _, w := range col.Weights {
		s.remaining[w.Row] += sign * w.Amount
	}
}

func (s *search) interrupted() bool {
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return true
	}
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}
