package elastic

import (
	"fmt"

	"github.com/ohsu-comp-bio/weir/util"
)

// SpeedRule values a speed triple for fixed tasks. Fix pre-commits
// the feasible triple with the lowest value, so lower is better.
type SpeedRule interface {
	Name() string
	Evaluate(sp Speeds) float64
}

// SumSpeeds values a triple by the sum of its speeds.
type SumSpeeds struct{}

func (SumSpeeds) Name() string { return "sum-speeds" }

func (SumSpeeds) Evaluate(sp Speeds) float64 {
	return float64(sp.Loading + sp.Compute + sp.Sending)
}

// SumSpeedsPow values a triple by the sum of cubed speeds, penalising
// uneven splits harder than SumSpeeds.
type SumSpeedsPow struct{}

func (SumSpeedsPow) Name() string { return "sum-speeds-pow" }

func (SumSpeedsPow) Evaluate(sp Speeds) float64 {
	l, w, s := float64(sp.Loading), float64(sp.Compute), float64(sp.Sending)
	return l*l*l + w*w*w + s*s*s
}

// Fix pre-commits every task's speed triple by minimising the rule
// subject to the task's deadline, collapsing the elastic choice into
// a constant before allocation. With foreknowledge the search is
// additionally capped by the mean server capacities, so the committed
// triples reflect what an average server could actually grant.
func Fix(c *Cluster, rule SpeedRule, foreknowledge bool) error {
	var maxCompute, maxBandwidth int64
	if foreknowledge {
		var sumW, sumBW int64
		for _, s := range c.servers {
			sumW += s.ComputationCapacity
			sumBW += s.BandwidthCapacity
		}
		n := int64(len(c.servers))
		maxCompute = sumW / n
		maxBandwidth = sumBW / n
	}

	for _, t := range c.tasks {
		sp, err := fixedSpeeds(t, rule, maxCompute, maxBandwidth)
		if err != nil {
			return err
		}
		t.fixed = &sp
	}
	return nil
}

// fixedSpeeds searches loading and sending speeds up to the standard
// speed bound, deriving the minimal compute speed that closes the
// deadline for each pair. Zero caps mean uncapped.
func fixedSpeeds(t *Task, rule SpeedRule, maxCompute, maxBandwidth int64) (Speeds, error) {
	maxLoading := util.CeilDiv(5*t.RequiredStorage, t.Deadline)
	maxSending := util.CeilDiv(5*t.RequiredResultsData, t.Deadline)

	var best Speeds
	var bestVal float64
	found := false

	for loading := int64(1); loading <= maxLoading; loading++ {
		for sending := int64(1); sending <= maxSending; sending++ {
			if maxBandwidth > 0 && loading+sending > maxBandwidth {
				continue
			}
			compute, ok := MinCompute(t, loading, sending)
			if !ok {
				continue
			}
			if maxCompute > 0 && compute > maxCompute {
				continue
			}
			sp := Speeds{Loading: loading, Compute: compute, Sending: sending}
			val := rule.Evaluate(sp)
			if !found || val < bestVal || (val == bestVal && sp.Less(best)) {
				best, bestVal, found = sp, val, true
			}
		}
	}

	if !found {
		return Speeds{}, fmt.Errorf("task %q has no feasible fixed speeds under rule %q", t.Name, rule.Name())
	}
	return best, nil
}

// MinCompute returns the minimal compute speed completing the task's
// deadline given loading and sending speeds, and false when no finite
// compute speed can. Derived from the cross-multiplied deadline form:
// reqW·l·s <= w·(d·l·s − reqS·s − reqR·l).
func MinCompute(t *Task, loading, sending int64) (int64, bool) {
	denom := t.Deadline*loading*sending - t.RequiredStorage*sending - t.RequiredResultsData*loading
	if denom <= 0 {
		return 0, false
	}
	return util.CeilDiv(t.RequiredComputation*loading*sending, denom), true
}
