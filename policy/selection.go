package policy

import (
	"math/rand/v2"

	"github.com/ohsu-comp-bio/weir/elastic"
)

// ServerSelection picks the server a task should be allocated to from
// the candidates able to run it, or nil when none can.
type ServerSelection interface {
	Name() string
	Select(t *elastic.Task, servers []*elastic.Server) *elastic.Server
}

// selectByScore picks the best-scoring server that can run the task.
// Tied scores fall to the lower server ID, so selection order is
// deterministic regardless of input order.
func selectByScore(t *elastic.Task, servers []*elastic.Server, maximise bool,
	score func(*elastic.Task, *elastic.Server) float64) *elastic.Server {

	var best *elastic.Server
	var bestScore float64
	for _, s := range servers {
		if !s.CanRun(t) {
			continue
		}
		v := score(t, s)
		if best == nil ||
			(maximise && v > bestScore) || (!maximise && v < bestScore) ||
			(v == bestScore && s.ID() < best.ID()) {
			best, bestScore = s, v
		}
	}
	return best
}

// SumResources selects by the sum of a server's available resources.
type SumResources struct {
	Maximise bool
}

func (s SumResources) Name() string {
	if s.Maximise {
		return "max-sum-resources"
	}
	return "sum-resources"
}

func (s SumResources) Select(t *elastic.Task, servers []*elastic.Server) *elastic.Server {
	return selectByScore(t, servers, s.Maximise, func(t *elastic.Task, sv *elastic.Server) float64 {
		return float64(sv.AvailableStorage() + sv.AvailableComputation() + sv.AvailableBandwidth())
	})
}

// ProductResources selects by the product of a server's available
// resources.
type ProductResources struct {
	Maximise bool
}

func (s ProductResources) Name() string {
	if s.Maximise {
		return "max-product-resources"
	}
	return "product-resources"
}

func (s ProductResources) Select(t *elastic.Task, servers []*elastic.Server) *elastic.Server {
	return selectByScore(t, servers, s.Maximise, func(t *elastic.Task, sv *elastic.Server) float64 {
		return float64(sv.AvailableStorage() * sv.AvailableComputation() * sv.AvailableBandwidth())
	})
}

// ExpSumResources selects by the sum of cubed available resources,
// spreading the penalty of depleted dimensions.
type ExpSumResources struct {
	Maximise bool
}

func (s ExpSumResources) Name() string {
	if s.Maximise {
		return "max-exp-sum-resources"
	}
	return "exp-sum-resources"
}

func (s ExpSumResources) Select(t *elastic.Task, servers []*elastic.Server) *elastic.Server {
	return selectByScore(t, servers, s.Maximise, func(t *elastic.Task, sv *elastic.Server) float64 {
		st := float64(sv.AvailableStorage())
		w := float64(sv.AvailableComputation())
		bw := float64(sv.AvailableBandwidth())
		return st*st*st + w*w*w + bw*bw*bw
	})
}

// TaskSumResources selects by the fraction of a server's availability
// the task would consume under the given allocation policy.
type TaskSumResources struct {
	Allocation ResourceAllocation
	Maximise   bool
}

func (s TaskSumResources) Name() string {
	if s.Maximise {
		return "max-task-sum-" + s.Allocation.Name()
	}
	return "task-sum-" + s.Allocation.Name()
}

func (s TaskSumResources) Select(t *elastic.Task, servers []*elastic.Server) *elastic.Server {
	return selectByScore(t, servers, s.Maximise, func(t *elastic.Task, sv *elastic.Server) float64 {
		sp, err := Speeds(s.Allocation, t, sv)
		if err != nil {
			return 0
		}
		return float64(t.RequiredStorage)/float64(sv.AvailableStorage()) +
			float64(sp.Compute)/float64(sv.AvailableComputation()) +
			float64(sp.Loading+sp.Sending)/float64(sv.AvailableBandwidth())
	})
}

// RandomSelection picks a random server among those able to run the
// task, from a seeded source.
type RandomSelection struct {
	Rand *rand.Rand
}

// NewRandomSelection returns a RandomSelection drawing from the seed.
func NewRandomSelection(seed uint64) *RandomSelection {
	return &RandomSelection{Rand: rand.New(rand.NewPCG(seed, seed))}
}

func (*RandomSelection) Name() string { return "random" }

func (s *RandomSelection) Select(t *elastic.Task, servers []*elastic.Server) *elastic.Server {
	var runnable []*elastic.Server
	for _, sv := range servers {
		if sv.CanRun(t) {
			runnable = append(runnable, sv)
		}
	}
	if len(runnable) == 0 {
		return nil
	}
	return runnable[s.Rand.IntN(len(runnable))]
}
