package greedy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ohsu-comp-bio/weir/elastic"
	"github.com/ohsu-comp-bio/weir/logger"
	"github.com/ohsu-comp-bio/weir/result"
)

// MatrixPolicy scores a concrete candidate allocation, higher is
// better. The matrix greedy repeatedly takes the best-scoring cell
// over all runnable (task, server) pairs.
type MatrixPolicy interface {
	Name() string
	Evaluate(t *elastic.Task, s *elastic.Server, sp elastic.Speeds) float64
}

// SumUsage weighs a task's value by the resources the server would
// have left after the allocation.
type SumUsage struct{}

func (SumUsage) Name() string { return "sum-usage" }

func (SumUsage) Evaluate(t *elastic.Task, s *elastic.Server, sp elastic.Speeds) float64 {
	return t.Value * float64(
		(s.AvailableStorage()-t.RequiredStorage)+
			(s.AvailableComputation()-sp.Compute)+
			(s.AvailableBandwidth()-(sp.Loading+sp.Sending)))
}

// SumLeftPercentage weighs by the leftover fractions of the server's
// current availability.
type SumLeftPercentage struct{}

func (SumLeftPercentage) Name() string { return "sum-percentage" }

func (SumLeftPercentage) Evaluate(t *elastic.Task, s *elastic.Server, sp elastic.Speeds) float64 {
	return t.Value * (leftStorage(t, s) + leftComputation(s, sp) + leftBandwidth(s, sp))
}

// SumMaxPercentage weighs by the leftover fractions of the server's
// total capacity instead of its current availability.
type SumMaxPercentage struct{}

func (SumMaxPercentage) Name() string { return "sum-max-percentage" }

func (SumMaxPercentage) Evaluate(t *elastic.Task, s *elastic.Server, sp elastic.Speeds) float64 {
	return t.Value * (float64(s.AvailableStorage()-t.RequiredStorage)/float64(s.StorageCapacity) +
		float64(s.AvailableComputation()-sp.Compute)/float64(s.ComputationCapacity) +
		float64(s.AvailableBandwidth()-(sp.Loading+sp.Sending))/float64(s.BandwidthCapacity))
}

// SumExpPercentage weighs by the exponentials of the leftover
// fractions, flattening differences between roomy servers.
type SumExpPercentage struct{}

func (SumExpPercentage) Name() string { return "sum-exp-percentage" }

func (SumExpPercentage) Evaluate(t *elastic.Task, s *elastic.Server, sp elastic.Speeds) float64 {
	return t.Value * (math.Exp(leftStorage(t, s)) +
		math.Exp(leftComputation(s, sp)) +
		math.Exp(leftBandwidth(s, sp)))
}

// SumExp3Percentage weighs by exponentials of the cubed leftover
// fractions, sharpening the penalty for depleting a dimension.
type SumExp3Percentage struct{}

func (SumExp3Percentage) Name() string { return "sum-exp3-percentage" }

func (SumExp3Percentage) Evaluate(t *elastic.Task, s *elastic.Server, sp elastic.Speeds) float64 {
	cube := func(v float64) float64 { return v * v * v }
	return t.Value * (math.Exp(cube(leftStorage(t, s))) +
		math.Exp(cube(leftComputation(s, sp))) +
		math.Exp(cube(leftBandwidth(s, sp))))
}

func leftStorage(t *elastic.Task, s *elastic.Server) float64 {
	return float64(s.AvailableStorage()-t.RequiredStorage) / float64(s.AvailableStorage())
}

func leftComputation(s *elastic.Server, sp elastic.Speeds) float64 {
	return float64(s.AvailableComputation()-sp.Compute) / float64(s.AvailableComputation())
}

func leftBandwidth(s *elastic.Server, sp elastic.Speeds) float64 {
	return float64(s.AvailableBandwidth()-(sp.Loading+sp.Sending)) / float64(s.AvailableBandwidth())
}

// MatrixByName returns the matrix policy registered under name.
func MatrixByName(name string) (MatrixPolicy, error) {
	switch strings.ToLower(name) {
	case "sum-usage":
		return SumUsage{}, nil
	case "sum-percentage":
		return SumLeftPercentage{}, nil
	case "sum-max-percentage":
		return SumMaxPercentage{}, nil
	case "sum-exp-percentage":
		return SumExpPercentage{}, nil
	case "sum-exp3-percentage":
		return SumExp3Percentage{}, nil
	default:
		return nil, fmt.Errorf("unknown matrix policy %q", name)
	}
}

// MatrixNames lists the names MatrixByName accepts.
func MatrixNames() []string {
	return []string{
		"sum-usage",
		"sum-percentage",
		"sum-max-percentage",
		"sum-exp-percentage",
		"sum-exp3-percentage",
	}
}

// MatrixAllocator allocates by repeatedly taking the best cell of a
// value matrix over all runnable (task, server) pairs, recomputing
// the chosen server's column after each allocation.
type MatrixAllocator struct {
	Policy MatrixPolicy
	Log    *logger.Logger
}

// Matrix returns a matrix allocator over the policy.
func Matrix(mp MatrixPolicy) *MatrixAllocator {
	return &MatrixAllocator{Policy: mp}
}

func (m *MatrixAllocator) Name() string {
	return "matrix greedy " + m.Policy.Name()
}

type matrixCell struct {
	speeds elastic.Speeds
	value  float64
}

// Run fills the matrix and drains it best cell first.
func (m *MatrixAllocator) Run(c *elastic.Cluster) (*result.Result, error) {
	start := time.Now()
	tasks, servers := c.Tasks(), c.Servers()

	cells := make([][]*matrixCell, len(tasks))
	for ti, t := range tasks {
		cells[ti] = make([]*matrixCell, len(servers))
		for si, s := range servers {
			cells[ti][si] = m.bestCell(t, s)
		}
	}

	for {
		var bt, bs = -1, -1
		for ti := range cells {
			if cells[ti] == nil {
				continue
			}
			for si, cell := range cells[ti] {
				if cell != nil && (bt < 0 || cell.value > cells[bt][bs].value) {
					bt, bs = ti, si
				}
			}
		}
		if bt < 0 {
			break
		}

		task, server := tasks[bt], servers[bs]
		sp := cells[bt][bs].speeds
		if err := c.Allocate(task, server, sp); err != nil {
			return nil, err
		}
		m.logger().Debug("allocated task",
			"task", task.Name, "server", server.Name, "speeds", sp.String())
		cells[bt] = nil

		// Only the chosen server's availability moved.
		for ti := range cells {
			if cells[ti] != nil {
				cells[ti][bs] = m.bestCell(tasks[ti], server)
			}
		}
	}

	return result.New(m.Name(), c, time.Since(start)), nil
}

// bestCell finds the highest-scoring feasible speed triple for the
// pair, or nil when the server cannot run the task. Scores are
// monotone in compute speed between the deadline minimum and full
// availability, so only the endpoints are evaluated. Ties fall to
// the lexicographically smallest triple.
func (m *MatrixAllocator) bestCell(t *elastic.Task, s *elastic.Server) *matrixCell {
	if !s.CanRun(t) {
		return nil
	}
	availW := s.AvailableComputation()
	availBW := s.AvailableBandwidth()

	var best *matrixCell
	consider := func(sp elastic.Speeds) {
		v := m.Policy.Evaluate(t, s, sp)
		if best == nil || v > best.value || (v == best.value && sp.Less(best.speeds)) {
			best = &matrixCell{speeds: sp, value: v}
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
	return best
}

func (m *MatrixAllocator) logger() *logger.Logger {
	if m.Log != nil {
		return m.Log
	}
	return log
}
