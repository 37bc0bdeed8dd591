package policy

import (
	"fmt"
	"strings"
)

// PriorityByName returns the task priority registered under name.
// The seed only matters for the random priority.
func PriorityByName(name string, seed uint64) (TaskPriority, error) {
	switch strings.ToLower(name) {
	case "value":
		return Value{}, nil
	case "utility-per-sum":
		return UtilityPerResources{Resources: ResourceSum{}}, nil
	case "utility-per-product":
		return UtilityPerResources{Resources: ResourceProduct{}}, nil
	case "utility-per-exp-sum":
		return UtilityPerResources{Resources: ResourceExpSum{}}, nil
	case "utility-per-sqrt-sum":
		return UtilityPerResources{Resources: ResourceSqrt{Of: ResourceSum{}}}, nil
	case "utility-deadline-per-sum":
		return UtilityDeadlinePerResource{Resources: ResourceSum{}}, nil
	case "utility-sum-per-deadline":
		return UtilityResourcePerDeadline{Resources: ResourceSum{}}, nil
	case "deadline-per-sum":
		return DeadlinePerResources{Resources: ResourceSum{}}, nil
	case "value-per-storage":
		return ValuePerStorage{}, nil
	case "resources-sum":
		return Resources{Resources: ResourceSum{}}, nil
	case "random":
		return NewRandomPriority(seed), nil
	default:
		return nil, fmt.Errorf("unknown task priority %q", name)
	}
}

// PriorityNames lists the names PriorityByName accepts.
func PriorityNames() []string {
	return []string{
		"value",
		"utility-per-sum",
		"utility-per-product",
		"utility-per-exp-sum",
		"utility-per-sqrt-sum",
		"utility-deadline-per-sum",
		"utility-sum-per-deadline",
		"deadline-per-sum",
		"value-per-storage",
		"resources-sum",
		"random",
	}
}

// SelectionByName returns the server selection registered under name.
// Task-aware selections take the allocation policy; the seed only
// matters for the random selection.
func SelectionByName(name string, alloc ResourceAllocation, seed uint64) (ServerSelection, error) {
	switch strings.ToLower(name) {
	case "sum-resources":
		return SumResources{}, nil
	case "max-sum-resources":
		return SumResources{Maximise: true}, nil
	case "product-resources":
		return ProductResources{}, nil
	case "max-product-resources":
		return ProductResources{Maximise: true}, nil
	case "exp-sum-resources":
		return ExpSumResources{}, nil
	case "max-exp-sum-resources":
		return ExpSumResources{Maximise: true}, nil
	case "task-sum", "max-task-sum":
		if alloc == nil {
			return nil, fmt.Errorf("selection %q needs an allocation policy", name)
		}
		return TaskSumResources{
			Allocation: alloc,
			Maximise:   strings.HasPrefix(strings.ToLower(name), "max-"),
		}, nil
	case "random":
		return NewRandomSelection(seed), nil
	default:
		return nil, fmt.Errorf("unknown server selection %q", name)
	}
}

// SelectionNames lists the names SelectionByName accepts.
func SelectionNames() []string {
	return []string{
		"sum-resources",
		"max-sum-resources",
		"product-resources",
		"max-product-resources",
		"exp-sum-resources",
		"max-exp-sum-resources",
		"task-sum",
		"max-task-sum",
		"random",
	}
}

// AllocationByName returns the resource allocation registered under
// name.
func AllocationByName(name string) (ResourceAllocation, error) {
	switch strings.ToLower(name) {
	case "sum-percentage":
		return SumPercentage{}, nil
	case "sum-pow-percentage":
		return SumPowPercentage{}, nil
	case "sum-speeds":
		return SumSpeeds{}, nil
	case "deadline-percent":
		return DeadlinePercent{}, nil
	default:
		return nil, fmt.Errorf("unknown resource allocation %q", name)
	}
}

// AllocationNames lists the names AllocationByName accepts.
func AllocationNames() []string {
	return []string{
		"sum-percentage",
		"sum-pow-percentage",
		"sum-speeds",
		"deadline-percent",
	}
}
