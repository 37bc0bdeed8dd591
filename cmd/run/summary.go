package run

import (
	"fmt"
	"io"
	"sort"

	"github.com/logrusorgru/aurora"
	"github.com/ohsu-comp-bio/weir/result"
	"github.com/olekukonko/tablewriter"
)

// PrintSummary renders one row per result, best social welfare first.
func PrintSummary(w io.Writer, results []*result.Result) {
	sorted := make([]*result.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SocialWelfare > sorted[j].SocialWelfare
	})

	table := tablewriter.NewWriter(w)
	table.Header("Algorithm", "Social Welfare", "% Welfare", "% Allocated", "Solve Time", "Notes")
	for i, r := range sorted {
		name := r.Algorithm
		if i == 0 && len(sorted) > 1 {
			name = aurora.Bold(name).String()
		}
		_ = table.Append(
			name,
			fmt.Sprintf("%g", r.SocialWelfare),
			fmt.Sprintf("%.3f", r.PercentWelfare),
			fmt.Sprintf("%.3f", r.PercentAllocated),
			fmt.Sprintf("%.3fs", r.SolveTime),
			notes(r),
		)
	}
	_ = table.Render()
}

func notes(r *result.Result) string {
	switch {
	case r.Auction != nil && !r.Auction.Converged:
		return fmt.Sprintf("revenue %g, round cap hit", r.Auction.TotalRevenue)
	case r.Auction != nil:
		return fmt.Sprintf("revenue %g", r.Auction.TotalRevenue)
	case r.Solver != nil && !r.Solver.ProvenOptimal:
		return "time limited"
	case r.Solver != nil:
		return "proven optimal"
	case len(r.Batches) > 0:
		return fmt.Sprintf("%d batches", len(r.Batches))
	default:
		return ""
	}
}
