package result

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates repeated runs of one algorithm.
type Summary struct {
	Algorithm        string  `json:"algorithm"`
	Runs             int     `json:"runs"`
	MeanWelfare      float64 `json:"mean_social_welfare"`
	StdWelfare       float64 `json:"std_social_welfare"`
	MeanPercentAlloc float64 `json:"mean_percent_tasks_allocated"`
	MeanSolveTime    float64 `json:"mean_solve_time"`
}

// Summarise groups results by algorithm and aggregates welfare,
// allocation rate, and solve time. Summaries come back ordered by
// mean welfare descending, ties by name, so repeated sweeps print
// identically.
func Summarise(results []*Result) []Summary {
	groups := map[string][]*Result{}
	for _, r := range results {
		groups[r.Algorithm] = append(groups[r.Algorithm], r)
	}

	summaries := make([]Summary, 0, len(groups))
	for name, rs := range groups {
		welfare := make([]float64, len(rs))
		alloc := make([]float64, len(rs))
		solve := make([]float64, len(rs))
		for i, r := range rs {
			welfare[i] = r.SocialWelfare
			alloc[i] = r.PercentAllocated
			solve[i] = r.SolveTime
		}
		s := Summary{
			Algorithm:        name,
			Runs:             len(rs),
			MeanWelfare:      round3(stat.Mean(welfare, nil)),
			MeanPercentAlloc: round3(stat.Mean(alloc, nil)),
			MeanSolveTime:    round3(stat.Mean(solve, nil)),
		}
		if len(rs) > 1 {
			s.StdWelfare = round3(stat.StdDev(welfare, nil))
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].MeanWelfare != summaries[j].MeanWelfare {
			return summaries[i].MeanWelfare > summaries[j].MeanWelfare
		}
		return summaries[i].Algorithm < summaries[j].Algorithm
	})
	return summaries
}
