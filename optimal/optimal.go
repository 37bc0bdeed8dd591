// Package optimal solves the allocation exactly. Each task gets one
// binary column per server and Pareto-minimal speed triple meeting
// its deadline, and a solver backend maximises welfare over them.
// Enumerating only the frontier keeps the program small without
// giving up any welfare: every feasible triple is dominated by a
// frontier triple of the same value.
package optimal

import (
	"context"
	"fmt"
	"time"

	"github.com/ohsu-comp-bio/weir/elastic"
	"github.com/ohsu-comp-bio/weir/logger"
	"github.com/ohsu-comp-bio/weir/result"
	"github.com/ohsu-comp-bio/weir/solver"
)

var log = logger.NewSubLogger("optimal")

// Elastic is the exact allocator with free speed choice.
type Elastic struct {
	Solver    solver.Solver
	TimeLimit time.Duration
	Log       *logger.Logger
}

func NewElastic(sv solver.Solver, limit time.Duration) *Elastic {
	return &Elastic{Solver: sv, TimeLimit: limit}
}

func (o *Elastic) Name() string {
	return fmt.Sprintf("elastic optimal, %s", o.Solver.Name())
}

// Run solves the whole cluster and summarises the outcome. A solve
// that ran out of time still yields its incumbent allocation, marked
// unproven on the result.
func (o *Elastic) Run(c *elastic.Cluster) (*result.Result, error) {
	start := time.Now()
	sol, err := place(c, c.Tasks(), o.Solver, o.TimeLimit, o.logger())
	if err != nil {
		return nil, err
	}
	return result.New(o.Name(), c, time.Since(start)).
		WithSolver(o.Solver.Name(), sol.ProvenOptimal), nil
}

// AllocateTasks solves for the given tasks only, against the
// cluster's current availability. Returns the number allocated.
func (o *Elastic) AllocateTasks(c *elastic.Cluster, tasks []*elastic.Task) (int, error) {
	sol, err := place(c, tasks, o.Solver, o.TimeLimit, o.logger())
	if err != nil {
		return 0, err
	}
	return len(sol.Chosen), nil
}

func (o *Elastic) logger() *logger.Logger {
	if o.Log != nil {
		return o.Log
	}
	return log
}

// Fixed is the exact allocator for tasks carrying pre-committed
// speeds, fixed beforehand with elastic.Fix.
type Fixed struct {
	Solver    solver.Solver
	TimeLimit time.Duration
	Log       *logger.Logger
}

func NewFixed(sv solver.Solver, limit time.Duration) *Fixed {
	return &Fixed{Solver: sv, TimeLimit: limit}
}

func (o *Fixed) Name() string {
	return fmt.Sprintf("fixed optimal, %s", o.Solver.Name())
}

func (o *Fixed) Run(c *elastic.Cluster) (*result.Result, error) {
	start := time.Now()
	sol, err := o.solve(c, c.Tasks())
	if err != nil {
		return nil, err
	}
	return result.New(o.Name(), c, time.Since(start)).
		WithSolver(o.Solver.Name(), sol.ProvenOptimal), nil
}

func (o *Fixed) AllocateTasks(c *elastic.Cluster, tasks []*elastic.Task) (int, error) {
	sol, err := o.solve(c, tasks)
	if err != nil {
		return 0, err
	}
	return len(sol.Chosen), nil
}

func (o *Fixed) solve(c *elastic.Cluster, tasks []*elastic.Task) (*solver.Solution, error) {
	for _, t := range tasks {
		if _, ok := t.FixedSpeeds(); !ok {
			return nil, fmt.Errorf("task %q has no fixed speeds", t.Name)
		}
	}
	return place(c, tasks, o.Solver, o.TimeLimit, o.logger())
}

func (o *Fixed) logger() *logger.Logger {
	if o.Log != nil {
		return o.Log
	}
	return log
}

// ServerRelaxed solves the cluster with server boundaries removed:
// one super server holds the summed capacities, so the returned
// welfare upper-bounds what any real assignment can reach.
type ServerRelaxed struct {
	Solver    solver.Solver
	TimeLimit time.Duration
	Log       *logger.Logger
}

func NewServerRelaxed(sv solver.Solver, limit time.Duration) *ServerRelaxed {
	return &ServerRelaxed{Solver: sv, TimeLimit: limit}
}

func (o *ServerRelaxed) Name() string {
	return fmt.Sprintf("server relaxed optimal, %s", o.Solver.Name())
}

func (o *ServerRelaxed) Run(c *elastic.Cluster) (*result.Result, error) {
	start := time.Now()
	super, err := elastic.SuperCluster(c)
	if err != nil {
		return nil, err
	}
	sol, err := place(super, super.Tasks(), o.Solver, o.TimeLimit, o.logger())
	if err != nil {
		return nil, err
	}
	return result.New(o.Name(), super, time.Since(start)).
		WithSolver(o.Solver.Name(), sol.ProvenOptimal), nil
}

func (o *ServerRelaxed) logger() *logger.Logger {
	if o.Log != nil {
		return o.Log
	}
	return log
}

// place builds the grouped binary program for the tasks, solves it,
// and applies the chosen columns to the cluster. Already allocated
// tasks keep their seats and contribute no columns.
func place(c *elastic.Cluster, tasks []*elastic.Task, sv solver.Solver, limit time.Duration, lg *logger.Logger) (*solver.Solution, error) {
	servers := c.Servers()

	p := &solver.Problem{Groups: len(tasks)}
	p.Capacities = make([]int64, 3*len(servers))
	for i, s := range servers {
		p.Capacities[3*i] = s.AvailableStorage()
		p.Capacities[3*i+1] = s.AvailableComputation()
		p.Capacities[3*i+2] = s.AvailableBandwidth()
	}

	type seat struct {
		task   *elastic.Task
		server *elastic.Server
		speeds elastic.Speeds
	}
	var seats []seat
	for g, t := range tasks {
		if t.Allocated() {
			continue
		}
		for si, s := range servers {
			for _, sp := range frontier(t, s) {
				p.Columns = append(p.Columns, solver.Column{
					Value: t.Value,
					Group: g,
					Weights: []solver.Weight{
						{Row: 3 * si, Amount: t.RequiredStorage},
						{Row: 3*si + 1, Amount: sp.Compute},
						{Row: 3*si + 2, Amount: sp.Loading + sp.Sending},
					},
				})
				seats = append(seats, seat{task: t, server: s, speeds: sp})
			}
		}
	}

	sol, err := sv.Solve(context.Background(), p, limit)
	if err != nil {
		return nil, err
	}
	for _, i := range sol.Chosen {
		st := seats[i]
		if err := c.Allocate(st.task, st.server, st.speeds); err != nil {
			return nil, err
		}
	}
	lg.Debug("solved",
		"tasks", len(tasks),
		"columns", len(p.Columns),
		"allocated", len(sol.Chosen),
		"proven", sol.ProvenOptimal)
	return sol, nil
}

// frontier enumerates the Pareto-minimal speed triples for the task
// on the server's current availability. For each bandwidth total the
// cheapest compute speed meeting the deadline is found, and a total
// is kept only when its compute need beats every smaller total's. A
// task with fixed speeds contributes its one triple when it fits.
func frontier(t *elastic.Task, s *elastic.Server) []elastic.Speeds {
	if t.RequiredStorage > s.AvailableStorage() {
		return nil
	}
	availW, availBW := s.AvailableComputation(), s.AvailableBandwidth()

	if fixed, ok := t.FixedSpeeds(); ok {
		if fixed.Compute <= availW && fixed.Loading+fixed.Sending <= availBW && t.WithinDeadline(fixed) {
			return []elastic.Speeds{fixed}
		}
		return nil
	}

	var out []elastic.Speeds
	lastW := availW + 1
	for total := int64(2); total <= availBW; total++ {
		var bestW, bestL int64
		for l := int64(1); l < total; l++ {
			w, ok := elastic.MinCompute(t, l, total-l)
			if !ok || w > availW {
				continue
			}
			if bestW == 0 || w < bestW {
				bestW, bestL = w, l
			}
		}
		if bestW == 0 || bestW >= lastW {
			continue
		}
		out = append(out, elastic.Speeds{Loading: bestL, Compute: bestW, Sending: total - bestL})
		lastW = bestW
		if bestW == 1 {
			break
		}
	}
	return out
}
