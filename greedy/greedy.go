// Package greedy implements the policy-driven greedy allocator: rank
// the tasks once by a priority policy, then give each task in turn to
// the server a selection policy picks, at the speeds an allocation
// policy computes. Decisions are never revisited, which bounds the
// running time but forfeits optimality.
package greedy

import (
	"fmt"
	"sort"
	"time"

	"github.com/ohsu-comp-bio/weir/elastic"
	"github.com/ohsu-comp-bio/weir/logger"
	"github.com/ohsu-comp-bio/weir/policy"
	"github.com/ohsu-comp-bio/weir/result"
)

var log = logger.NewSubLogger("greedy")

// Allocator runs one greedy pass per cluster.
type Allocator struct {
	Priority   policy.TaskPriority
	Selection  policy.ServerSelection
	Allocation policy.ResourceAllocation
	Log        *logger.Logger
}

// New returns an allocator over the three policies.
func New(p policy.TaskPriority, sel policy.ServerSelection, ra policy.ResourceAllocation) *Allocator {
	return &Allocator{Priority: p, Selection: sel, Allocation: ra}
}

// NewFixed returns an allocator for clusters whose tasks carry
// pre-committed speeds. No allocation policy is consulted.
func NewFixed(p policy.TaskPriority, sel policy.ServerSelection) *Allocator {
	return &Allocator{Priority: p, Selection: sel}
}

func (a *Allocator) Name() string {
	if a.Allocation == nil {
		return fmt.Sprintf("fixed greedy %s, %s", a.Priority.Name(), a.Selection.Name())
	}
	return fmt.Sprintf("greedy %s, %s, %s",
		a.Priority.Name(), a.Selection.Name(), a.Allocation.Name())
}

// Run allocates every task it can and summarises the outcome.
func (a *Allocator) Run(c *elastic.Cluster) (*result.Result, error) {
	start := time.Now()
	if _, err := a.AllocateTasks(c, c.Tasks()); err != nil {
		return nil, err
	}
	return result.New(a.Name(), c, time.Since(start)), nil
}

// AllocateTasks ranks the given tasks and allocates each in turn to
// its selected server. Tasks no server can run are skipped for the
// rest of the pass; that is a normal outcome, not an error. Returns
// the number of tasks allocated.
func (a *Allocator) AllocateTasks(c *elastic.Cluster, tasks []*elastic.Task) (int, error) {
	servers := c.Servers()
	allocated := 0
	for _, t := range Rank(tasks, a.Priority) {
		if t.Allocated() {
			continue
		}
		s := a.Selection.Select(t, servers)
		if s == nil {
			a.logger().Debug("no server can run task", "task", t.Name)
			continue
		}
		sp, err := a.speeds(t, s)
		if err != nil {
			return allocated, err
		}
		if err := c.Allocate(t, s, sp); err != nil {
			return allocated, err
		}
		a.logger().Debug("allocated task",
			"task", t.Name, "server", s.Name, "speeds", sp.String())
		allocated++
	}
	return allocated, nil
}

func (a *Allocator) speeds(t *elastic.Task, s *elastic.Server) (elastic.Speeds, error) {
	if sp, ok := t.FixedSpeeds(); ok {
		return sp, nil
	}
	if a.Allocation == nil {
		return elastic.Speeds{}, fmt.Errorf("task %q has no pre-committed speeds", t.Name)
	}
	return policy.Speeds(a.Allocation, t, s)
}

func (a *Allocator) logger() *logger.Logger {
	if a.Log != nil {
		return a.Log
	}
	return log
}

// Rank orders tasks by descending priority, ties by ascending ID.
// Each score is computed exactly once so stateful priorities, the
// seeded random one in particular, stay stable through the sort.
func Rank(tasks []*elastic.Task, p policy.TaskPriority) []*elastic.Task {
	type scored struct {
		task  *elastic.Task
		score float64
	}
	ranked := make([]scored, len(tasks))
	for i, t := range tasks {
		ranked[i] = scored{task: t, score: p.Evaluate(t)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].task.ID() < ranked[j].task.ID()
	})

	out := make([]*elastic.Task, len(ranked))
	for i, r := range ranked {
		out[i] = r.task
	}
	return out
}

// Permutations reruns the cluster through every registered policy
// combination, resetting between runs. The cluster comes back reset.
func Permutations(c *elastic.Cluster, seed uint64) ([]*result.Result, error) {
	var results []*result.Result
	for _, pn := range policy.PriorityNames() {
		p, err := policy.PriorityByName(pn, seed)
		if err != nil {
			return nil, err
		}
		for _, an := range policy.AllocationNames() {
			ra, err := policy.AllocationByName(an)
			if err != nil {
				return nil, err
			}
			for _, sn := range policy.SelectionNames() {
				sel, err := policy.SelectionByName(sn, ra, seed)
				if err != nil {
					return nil, err
				}
				r, err := New(p, sel, ra).Run(c)
				if err != nil {
					return nil, err
				}
				results = append(results, r)
				c.Reset()
			}
		}
	}
	return results, nil
}
