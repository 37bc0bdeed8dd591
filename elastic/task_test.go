package elastic

import (
	"testing"
)

func TestWithinDeadline(t *testing.T) {
	task := &Task{Name: "t", RequiredStorage: 1, RequiredComputation: 1, RequiredResultsData: 1, Deadline: 1, Value: 1}

	// Three phases of exactly 1/3 each land exactly on the deadline.
	// The integer form must accept this without float rounding slack.
	if !task.WithinDeadline(Speeds{Loading: 3, Compute: 3, Sending: 3}) {
		t.Error("expected exact-boundary speeds to satisfy the deadline")
	}
	if task.WithinDeadline(Speeds{Loading: 3, Compute: 3, Sending: 2}) {
		t.Error("expected speeds just over the deadline to fail")
	}
	if task.WithinDeadline(Speeds{Loading: 0, Compute: 3, Sending: 3}) {
		t.Error("expected non-positive speeds to fail")
	}
}

func TestPhaseTimes(t *testing.T) {
	task := &Task{Name: "t", RequiredStorage: 40, RequiredComputation: 40, RequiredResultsData: 10, Deadline: 5, Value: 10}
	c, err := NewCluster([]*Task{task}, []*Server{
		{Name: "s", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
	})
	if err != nil {
		t.Fatal(err)
	}

	if task.LoadingTime() != 0 || task.ComputeTime() != 0 || task.SendingTime() != 0 {
		t.Error("expected zero phase times before allocation")
	}

	if err := c.Allocate(task, c.Server(0), Speeds{Loading: 20, Compute: 20, Sending: 10}); err != nil {
		t.Fatal(err)
	}
	if task.LoadingTime() != 2 {
		t.Error("expected loading time 2, got", task.LoadingTime())
	}
	if task.ComputeTime() != 2 {
		t.Error("expected compute time 2, got", task.ComputeTime())
	}
	if task.SendingTime() != 1 {
		t.Error("expected sending time 1, got", task.SendingTime())
	}
}

func TestWithDeadline(t *testing.T) {
	task := &Task{Name: "t", RequiredStorage: 40, RequiredComputation: 40, RequiredResultsData: 10, Deadline: 5, Value: 10}
	c, err := NewCluster([]*Task{task}, []*Server{
		{Name: "s", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Allocate(task, c.Server(0), Speeds{Loading: 20, Compute: 20, Sending: 10}); err != nil {
		t.Fatal(err)
	}

	shadow := task.WithDeadline(3)
	if shadow.Deadline != 3 {
		t.Error("expected shadow deadline 3, got", shadow.Deadline)
	}
	if shadow.Allocated() {
		t.Error("expected the shadow copy to carry no allocation state")
	}
	if shadow.ID() != task.ID() {
		t.Error("expected the shadow copy to keep the task's identity")
	}
	if !task.Allocated() {
		t.Error("original task allocation must be untouched")
	}

	// The original's feasible triple no longer fits the shrunk deadline.
	if shadow.WithinDeadline(Speeds{Loading: 20, Compute: 20, Sending: 10}) {
		t.Error("expected 5 time units of phases to miss a deadline of 3")
	}
}

func TestUtility(t *testing.T) {
	c := testCluster(t)
	task := c.Task(0)
	if task.Utility() != task.Value {
		t.Error("expected utility to equal value before pricing")
	}
	c.SetPrice(task, 4)
	if task.Utility() != 6 {
		t.Error("expected utility 6, got", task.Utility())
	}
}
