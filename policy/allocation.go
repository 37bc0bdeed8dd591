package policy

import (
	"fmt"

	"github.com/ohsu-comp-bio/weir/elastic"
)

// ResourceAllocation scores a candidate speed triple for a task on a
// server, lower is better. Speeds performs the search.
type ResourceAllocation interface {
	Name() string
	Evaluate(t *elastic.Task, s *elastic.Server, sp elastic.Speeds) float64
}

// Speeds returns the feasible speed triple minimising the policy's
// evaluator on the server's current availability.
//
// The search scans every split of available bandwidth into loading
// and sending speeds. For each split the compute speed is only worth
// evaluating at its endpoints: the minimal speed closing the deadline
// and the full available computation, since every evaluator is
// monotone in compute speed between them. Ties fall to the
// lexicographically smallest (loading, compute, sending) triple, so
// the result is deterministic.
func Speeds(ra ResourceAllocation, t *elastic.Task, s *elastic.Server) (elastic.Speeds, error) {
	availW := s.AvailableComputation()
	availBW := s.AvailableBandwidth()

	var best elastic.Speeds
	var bestVal float64
	found := false

	consider := func(sp elastic.Speeds) {
		v := ra.Evaluate(t, s, sp)
		if !found || v < bestVal || (v == bestVal && sp.Less(best)) {
			best, bestVal, found = sp, v, true
		}
	}

	for loading := int64(1); loading < availBW; loading++ {
		for sending := int64(1); sending <= availBW-loading; sending++ {
			minW, ok := elastic.MinCompute(t, loading, sending)
			if !ok || minW > availW {
				continue
			}
			consider(elastic.Speeds{Loading: loading, Compute: minW, Sending: sending})
			if availW != minW {
				consider(elastic.Speeds{Loading: loading, Compute: availW, Sending: sending})
			}
		}
	}

	if !found {
		return elastic.Speeds{}, fmt.Errorf(
			"no feasible speeds for task %q on server %q under policy %q",
			t.Name, s.Name, ra.Name())
	}
	return best, nil
}

// SumPercentage scores a triple by the fraction of available
// computation and bandwidth it consumes.
type SumPercentage struct{}

func (SumPercentage) Name() string { return "sum-percentage" }

func (SumPercentage) Evaluate(t *elastic.Task, s *elastic.Server, sp elastic.Speeds) float64 {
	return float64(sp.Compute)/float64(s.AvailableComputation()) +
		float64(sp.Loading+sp.Sending)/float64(s.AvailableBandwidth())
}

// SumPowPercentage scores a triple by the squared consumption
// fractions, penalising depletion of a single dimension.
type SumPowPercentage struct{}

func (SumPowPercentage) Name() string { return "sum-pow-percentage" }

func (SumPowPercentage) Evaluate(t *elastic.Task, s *elastic.Server, sp elastic.Speeds) float64 {
	w := float64(sp.Compute) / float64(s.AvailableComputation())
	bw := float64(sp.Loading+sp.Sending) / float64(s.AvailableBandwidth())
	return w*w + bw*bw
}

// SumSpeeds scores a triple by the plain sum of its speeds.
type SumSpeeds struct{}

func (SumSpeeds) Name() string { return "sum-speeds" }

func (SumSpeeds) Evaluate(t *elastic.Task, s *elastic.Server, sp elastic.Speeds) float64 {
	return float64(sp.Loading + sp.Compute + sp.Sending)
}

// DeadlinePercent scores a triple by completion time as a fraction of
// the deadline. Minimising it grants the fastest feasible speeds.
type DeadlinePercent struct{}

func (DeadlinePercent) Name() string { return "deadline-percent" }

func (DeadlinePercent) Evaluate(t *elastic.Task, s *elastic.Server, sp elastic.Speeds) float64 {
	taken := float64(t.RequiredStorage)/float64(sp.Loading) +
		float64(t.RequiredComputation)/float64(sp.Compute) +
		float64(t.RequiredResultsData)/float64(sp.Sending)
	return taken / float64(t.Deadline)
}
