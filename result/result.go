// Package result holds immutable summaries of a single algorithm run
// and their JSON persistence. A Result is built from the cluster's
// allocation state at the end of a run and survives the reset that
// follows, so one fixture can be rerun across strategies and compared
// afterwards.
package result

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ohsu-comp-bio/weir/elastic"
)

// Result summarises one algorithm run on one cluster.
type Result struct {
	Algorithm        string  `json:"algorithm"`
	RunID            string  `json:"run_id,omitempty"`
	Model            string  `json:"model,omitempty"`
	SolveTime        float64 `json:"solve_time"`
	SocialWelfare    float64 `json:"social_welfare"`
	PercentWelfare   float64 `json:"social_welfare_percent"`
	PercentAllocated float64 `json:"percent_tasks_allocated"`

	Servers map[string]ServerUsage `json:"servers"`
	Tasks   map[string]TaskUsage   `json:"tasks"`

	Auction *AuctionInfo `json:"auction,omitempty"`
	Solver  *SolverInfo  `json:"solver,omitempty"`
	Batches []BatchInfo  `json:"batches,omitempty"`
}

// ServerUsage records how much of a server's capacity a run consumed.
type ServerUsage struct {
	Storage     float64 `json:"storage"`
	Computation float64 `json:"computation"`
	Bandwidth   float64 `json:"bandwidth"`
	Welfare     float64 `json:"welfare"`
	Revenue     float64 `json:"revenue,omitempty"`
	Tasks       int     `json:"tasks"`
}

// TaskUsage records the speeds granted to an allocated task and the
// resulting phase times.
type TaskUsage struct {
	Server      string  `json:"server"`
	Loading     int64   `json:"loading_speed"`
	Compute     int64   `json:"compute_speed"`
	Sending     int64   `json:"sending_speed"`
	LoadingTime float64 `json:"loading_time"`
	ComputeTime float64 `json:"compute_time"`
	SendingTime float64 `json:"sending_time"`
	Price       float64 `json:"price,omitempty"`
}

// AuctionInfo carries the price side of an auction run.
type AuctionInfo struct {
	TotalRevenue float64 `json:"total_revenue"`
	Rounds       int     `json:"rounds,omitempty"`
	Messages     int     `json:"messages,omitempty"`
	Converged    bool    `json:"converged"`
}

// SolverInfo carries the proof state of an exact run.
type SolverInfo struct {
	Backend       string `json:"backend"`
	ProvenOptimal bool   `json:"proven_optimal"`
}

// BatchInfo records the cluster state after one online batch.
type BatchInfo struct {
	Time        int64   `json:"time"`
	Allocated   int     `json:"allocated"`
	Released    int     `json:"released"`
	Storage     float64 `json:"storage"`
	Computation float64 `json:"computation"`
	Bandwidth   float64 `json:"bandwidth"`
}

// New summarises the cluster's current allocation state.
func New(algorithm string, c *elastic.Cluster, elapsed time.Duration) *Result {
	r := &Result{
		Algorithm:        algorithm,
		SolveTime:        round3(elapsed.Seconds()),
		SocialWelfare:    c.SocialWelfare(),
		PercentWelfare:   round3(c.PercentWelfare()),
		PercentAllocated: round3(c.PercentAllocated()),
		Servers:          map[string]ServerUsage{},
		Tasks:            map[string]TaskUsage{},
	}

	for _, s := range c.Servers() {
		r.Servers[s.Name] = ServerUsage{
			Storage:     round3(1 - float64(s.AvailableStorage())/float64(s.StorageCapacity)),
			Computation: round3(1 - float64(s.AvailableComputation())/float64(s.ComputationCapacity)),
			Bandwidth:   round3(1 - float64(s.AvailableBandwidth())/float64(s.BandwidthCapacity)),
			Welfare:     s.TotalValue(),
			Revenue:     s.Revenue(),
			Tasks:       len(s.Tasks()),
		}
	}

	for _, t := range c.Tasks() {
		if !t.Allocated() {
			continue
		}
		sp := t.Speeds()
		r.Tasks[t.Name] = TaskUsage{
			Server:      t.Server().Name,
			Loading:     sp.Loading,
			Compute:     sp.Compute,
			Sending:     sp.Sending,
			LoadingTime: t.LoadingTime(),
			ComputeTime: t.ComputeTime(),
			SendingTime: t.SendingTime(),
			Price:       t.Price(),
		}
	}
	return r
}

// WithAuction attaches auction pricing info built from the cluster's
// server revenues.
func (r *Result) WithAuction(c *elastic.Cluster, rounds, messages int, converged bool) *Result {
	total := 0.0
	for _, s := range c.Servers() {
		total += s.Revenue()
	}
	r.Auction = &AuctionInfo{
		TotalRevenue: total,
		Rounds:       rounds,
		Messages:     messages,
		Converged:    converged,
	}
	return r
}

// WithSolver attaches the backend name and proof state of an exact
// run.
func (r *Result) WithSolver(backend string, proven bool) *Result {
	r.Solver = &SolverInfo{Backend: backend, ProvenOptimal: proven}
	return r
}

// Save writes the result as indented JSON.
func (r *Result) Save(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %v", err)
	}
	return os.WriteFile(path, append(b, '\n'), 0664)
}

// Load reads a result written by Save.
func Load(path string) (*Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := &Result{}
	if err := json.Unmarshal(b, r); err != nil {
		return nil, fmt.Errorf("unmarshaling result %s: %v", path, err)
	}
	return r, nil
}

// Filename builds the conventional results filename,
// "<test>_<model>_r<repeat>_t<tasks>_s<servers>.json".
func Filename(test, model string, repeat, tasks, servers int) string {
	return fmt.Sprintf("%s_%s_r%d_t%d_s%d.json", test, model, repeat, tasks, servers)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
