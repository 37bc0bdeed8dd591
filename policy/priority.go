// Package policy holds the stateless decision functions injected into
// allocators: task priorities, server selections, and resource
// allocations. Policies are pure functions of the task, server, and
// current allocation state, with no identity of their own.
package policy

import (
	"math"
	"math/rand/v2"

	"github.com/ohsu-comp-bio/weir/elastic"
)

// ResourceFunc aggregates a task's resource demands into a scalar.
type ResourceFunc interface {
	Name() string
	Aggregate(t *elastic.Task) float64
}

// ResourceSum aggregates demands by their sum.
type ResourceSum struct{}

func (ResourceSum) Name() string { return "sum" }

func (ResourceSum) Aggregate(t *elastic.Task) float64 {
	return float64(t.RequiredStorage + t.RequiredComputation + t.RequiredResultsData)
}

// ResourceProduct aggregates demands by their product.
type ResourceProduct struct{}

func (ResourceProduct) Name() string { return "product" }

func (ResourceProduct) Aggregate(t *elastic.Task) float64 {
	return float64(t.RequiredStorage * t.RequiredComputation * t.RequiredResultsData)
}

// ResourceExpSum aggregates demands by the sum of their exponentials.
type ResourceExpSum struct{}

func (ResourceExpSum) Name() string { return "exp-sum" }

func (ResourceExpSum) Aggregate(t *elastic.Task) float64 {
	return math.Exp(float64(t.RequiredStorage)) +
		math.Exp(float64(t.RequiredComputation)) +
		math.Exp(float64(t.RequiredResultsData))
}

// ResourceSqrt aggregates by the square root of an inner aggregate.
type ResourceSqrt struct {
	Of ResourceFunc
}

func (r ResourceSqrt) Name() string { return "sqrt-" + r.Of.Name() }

func (r ResourceSqrt) Aggregate(t *elastic.Task) float64 {
	return math.Sqrt(r.Of.Aggregate(t))
}

// TaskPriority ranks unallocated tasks, higher priority first.
type TaskPriority interface {
	Name() string
	Evaluate(t *elastic.Task) float64
}

// InvertibleTaskPriority is a task priority whose density can be
// mapped back to the value that would produce it. The critical value
// auction requires this to turn a blocking density into a payment,
// and rejects priorities without it.
type InvertibleTaskPriority interface {
	TaskPriority
	Inverse(t *elastic.Task, density float64) float64
}

// Value prioritises tasks by declared value alone.
type Value struct{}

func (Value) Name() string { return "value" }

func (Value) Evaluate(t *elastic.Task) float64 { return t.Value }

func (Value) Inverse(t *elastic.Task, density float64) float64 { return density }

// UtilityPerResources prioritises by value per aggregated demand.
type UtilityPerResources struct {
	Resources ResourceFunc
}

func (p UtilityPerResources) Name() string { return "utility-per-" + p.Resources.Name() }

func (p UtilityPerResources) Evaluate(t *elastic.Task) float64 {
	return t.Value / p.Resources.Aggregate(t)
}

func (p UtilityPerResources) Inverse(t *elastic.Task, density float64) float64 {
	return density * p.Resources.Aggregate(t)
}

// UtilityDeadlinePerResource prioritises by value times deadline per
// aggregated demand, favoring patient high-value tasks.
type UtilityDeadlinePerResource struct {
	Resources ResourceFunc
}

func (p UtilityDeadlinePerResource) Name() string {
	return "utility-deadline-per-" + p.Resources.Name()
}

func (p UtilityDeadlinePerResource) Evaluate(t *elastic.Task) float64 {
	return t.Value * float64(t.Deadline) / p.Resources.Aggregate(t)
}

func (p UtilityDeadlinePerResource) Inverse(t *elastic.Task, density float64) float64 {
	return density * p.Resources.Aggregate(t) / float64(t.Deadline)
}

// UtilityResourcePerDeadline prioritises by value times aggregated
// demand per deadline, favoring urgent heavy tasks.
type UtilityResourcePerDeadline struct {
	Resources ResourceFunc
}

func (p UtilityResourcePerDeadline) Name() string {
	return "utility-" + p.Resources.Name() + "-per-deadline"
}

func (p UtilityResourcePerDeadline) Evaluate(t *elastic.Task) float64 {
	return t.Value * p.Resources.Aggregate(t) / float64(t.Deadline)
}

func (p UtilityResourcePerDeadline) Inverse(t *elastic.Task, density float64) float64 {
	return density * float64(t.Deadline) / p.Resources.Aggregate(t)
}

// DeadlinePerResources prioritises by deadline per aggregated demand.
// Value-free, so it has no inverse.
type DeadlinePerResources struct {
	Resources ResourceFunc
}

func (p DeadlinePerResources) Name() string { return "deadline-per-" + p.Resources.Name() }

func (p DeadlinePerResources) Evaluate(t *elastic.Task) float64 {
	return float64(t.Deadline) / p.Resources.Aggregate(t)
}

// ValuePerStorage prioritises by value per unit of required storage.
type ValuePerStorage struct{}

func (ValuePerStorage) Name() string { return "value-per-storage" }

func (ValuePerStorage) Evaluate(t *elastic.Task) float64 {
	return t.Value / float64(t.RequiredStorage)
}

func (ValuePerStorage) Inverse(t *elastic.Task, density float64) float64 {
	return density * float64(t.RequiredStorage)
}

// Resources prioritises by aggregated demand alone, ignoring value.
type Resources struct {
	Resources ResourceFunc
}

func (p Resources) Name() string { return "resources-" + p.Resources.Name() }

func (p Resources) Evaluate(t *elastic.Task) float64 {
	return p.Resources.Aggregate(t)
}

// RandomPriority ranks tasks randomly from a seeded source, used as a
// baseline. It is not invertible, so auctions reject it.
type RandomPriority struct {
	Rand *rand.Rand
}

// NewRandomPriority returns a RandomPriority drawing from the seed.
func NewRandomPriority(seed uint64) *RandomPriority {
	return &RandomPriority{Rand: rand.New(rand.NewPCG(seed, seed))}
}

func (*RandomPriority) Name() string { return "random" }

func (p *RandomPriority) Evaluate(t *elastic.Task) float64 {
	return p.Rand.Float64()
}
