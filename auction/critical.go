// Package auction implements the two auction mechanisms built on top
// of the greedy machinery: the critical value auction, which prices
// each winner at the lowest bid density that would still have won its
// place, and the decentralised iterative auction, where servers quote
// rising reserve prices and tasks bid until the assignment settles.
package auction

import (
	"fmt"
	"sort"
	"time"

	"github.com/ohsu-comp-bio/weir/elastic"
	"github.com/ohsu-comp-bio/weir/logger"
	"github.com/ohsu-comp-bio/weir/policy"
	"github.com/ohsu-comp-bio/weir/result"
)

var log = logger.NewSubLogger("auction")

// Critical runs the critical value auction. A greedy pass over tasks
// ranked by bid density decides the winners, then the auction reruns
// the pass once per winner with that winner withheld. The density of
// the task whose allocation first crowds the winner out is the
// critical density, and its inverse is the winner's payment. Winners
// never blocked pay nothing. Pricing never changes who wins, so the
// mechanism stays truthful for the density it ranks by.
type Critical struct {
	Priority   policy.InvertibleTaskPriority
	Selection  policy.ServerSelection
	Allocation policy.ResourceAllocation
	Log        *logger.Logger
}

// NewCritical returns a critical value auction over the three
// policies. The priority must be invertible so densities can be
// turned back into payments.
func NewCritical(p policy.InvertibleTaskPriority, sel policy.ServerSelection, ra policy.ResourceAllocation) *Critical {
	return &Critical{Priority: p, Selection: sel, Allocation: ra}
}

func (a *Critical) Name() string {
	return fmt.Sprintf("critical value auction %s, %s, %s",
		a.Priority.Name(), a.Selection.Name(), a.Allocation.Name())
}

// Run auctions every task in the cluster and summarises the outcome.
// The cluster is left holding the winning allocations at their
// critical prices.
func (a *Critical) Run(c *elastic.Cluster) (*result.Result, error) {
	start := time.Now()

	// Densities are evaluated exactly once and reused for ranking,
	// blocking detection, and pricing, so the three stay consistent.
	density := make([]float64, len(c.Tasks()))
	for _, t := range c.Tasks() {
		density[t.ID()] = a.Priority.Evaluate(t)
	}
	ranked := rankByDensity(c.Tasks(), density)

	if err := a.allocatePass(c, ranked); err != nil {
		return nil, err
	}

	type winner struct {
		task   *elastic.Task
		server *elastic.Server
		speeds elastic.Speeds
	}
	var winners []winner
	for _, t := range ranked {
		if t.Allocated() {
			winners = append(winners, winner{task: t, server: t.Server(), speeds: t.Speeds()})
		}
	}

	c.Reset()
	for _, w := range winners {
		price, err := a.criticalPrice(c, ranked, w.task, density)
		if err != nil {
			return nil, err
		}
		c.SetPrice(w.task, price)
		c.ResetKeepPrices()
		a.logger().Debug("priced winner", "task", w.task.Name, "price", w.task.Price())
	}

	for _, w := range winners {
		if err := c.AllocatePriced(w.task, w.server, w.speeds, w.task.Price()); err != nil {
			return nil, err
		}
	}
	return result.New(a.Name(), c, time.Since(start)).WithAuction(c, 0, 0, true), nil
}

// allocatePass allocates tasks in ranked order, skipping any no
// server can take.
func (a *Critical) allocatePass(c *elastic.Cluster, ranked []*elastic.Task) error {
	servers := c.Servers()
	for _, t := range ranked {
		s := a.Selection.Select(t, servers)
		if s == nil {
			continue
		}
		sp, err := a.speeds(t, s)
		if err != nil {
			return err
		}
		if err := c.Allocate(t, s, sp); err != nil {
			return err
		}
	}
	return nil
}

// criticalPrice replays the allocation pass without the winner and
// watches for the first moment no server could take it any more. The
// task allocated just before that moment set the winner's critical
// density. A replay that never blocks the winner prices it at zero.
func (a *Critical) criticalPrice(c *elastic.Cluster, ranked []*elastic.Task, winner *elastic.Task, density []float64) (float64, error) {
	servers := c.Servers()
	var blocker *elastic.Task
	for _, t := range ranked {
		if t == winner {
			continue
		}
		if !anyCanRun(servers, winner) {
			if blocker == nil {
				return 0, fmt.Errorf("task %q cannot run on the empty cluster yet won", winner.Name)
			}
			return a.Priority.Inverse(winner, density[blocker.ID()]), nil
		}
		s := a.Selection.Select(t, servers)
		if s == nil {
			continue
		}
		sp, err := a.speeds(t, s)
		if err != nil {
			return 0, err
		}
		if err := c.Allocate(t, s, sp); err != nil {
			return 0, err
		}
		blocker = t
	}
	return 0, nil
}

func (a *Critical) speeds(t *elastic.Task, s *elastic.Server) (elastic.Speeds, error) {
	if sp, ok := t.FixedSpeeds(); ok {
		return sp, nil
	}
	return policy.Speeds(a.Allocation, t, s)
}

func (a *Critical) logger() *logger.Logger {
	if a.Log != nil {
		return a.Log
	}
	return log
}

// rankByDensity orders tasks by descending precomputed density, ties
// by ascending ID.
func rankByDensity(tasks []*elastic.Task, density []float64) []*elastic.Task {
	ranked := append([]*elastic.Task(nil), tasks...)
	sort.Slice(ranked, func(i, j int) bool {
		di, dj := density[ranked[i].ID()], density[ranked[j].ID()]
		if di != dj {
			return di > dj
		}
		return ranked[i].ID() < ranked[j].ID()
	})
	return ranked
}

func anyCanRun(servers []*elastic.Server, t *elastic.Task) bool {
	for _, s := range servers {
		if s.CanRun(t) {
			return true
		}
	}
	return false
}
