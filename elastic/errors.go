package elastic

import (
	"errors"
	"fmt"
)

// Allocation errors signal contract violations by the caller, which
// is responsible for never requesting an infeasible allocation.
// Running out of feasible options for a task is a normal outcome, not
// an error.
var (
	// ErrAlreadyAllocated is returned when allocating a task that is
	// already bound to a server.
	ErrAlreadyAllocated = errors.New("task is already allocated")

	// ErrNotAllocated is returned when deallocating a task that is
	// not bound to a server.
	ErrNotAllocated = errors.New("task is not allocated")

	// ErrInvalidSpeeds is returned when an allocation is requested
	// with a non-positive speed.
	ErrInvalidSpeeds = errors.New("speeds must be positive")
)

// CapacityError is returned when an allocation would exceed one of
// the server's resource capacities.
type CapacityError struct {
	Task      string
	Server    string
	Resource  string
	Requested int64
	Available int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("task %q needs %d %s on server %q with %d available",
		e.Task, e.Requested, e.Resource, e.Server, e.Available)
}

// DeadlineError is returned when an allocation's speeds would not
// complete the task's phases within its deadline.
type DeadlineError struct {
	Task     string
	Speeds   Speeds
	Deadline int64
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("task %q cannot meet deadline %d with speeds %s",
		e.Task, e.Deadline, e.Speeds)
}
