package sweep

import (
	"fmt"
	"io"

	"github.com/ohsu-comp-bio/weir/result"
	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/floats"
)

// aggregate collects results per algorithm name across the sweep.
type aggregate struct {
	results []*result.Result
	samples map[string][]float64
}

func newAggregate() *aggregate {
	return &aggregate{samples: map[string][]float64{}}
}

func (a *aggregate) add(r *result.Result) {
	a.results = append(a.results, r)
	a.samples[r.Algorithm] = append(a.samples[r.Algorithm], r.SocialWelfare)
}

func (a *aggregate) runs() int {
	return len(a.results)
}

// print renders per-algorithm welfare stats, best mean first.
func (a *aggregate) print(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.Header("Algorithm", "Runs", "Mean Welfare", "Std Dev", "Best", "Worst")
	for _, s := range result.Summarise(a.results) {
		welfare := a.samples[s.Algorithm]
		stdStr := "n/a"
		if s.Runs > 1 {
			stdStr = fmt.Sprintf("%.3f", s.StdWelfare)
		}
		_ = table.Append(
			s.Algorithm,
			fmt.Sprintf("%d", s.Runs),
			fmt.Sprintf("%.3f", s.MeanWelfare),
			stdStr,
			fmt.Sprintf("%g", floats.Max(welfare)),
			fmt.Sprintf("%g", floats.Min(welfare)),
		)
	}
	_ = table.Render()
}
