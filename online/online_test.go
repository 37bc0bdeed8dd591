package online

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/ohsu-comp-bio/weir/elastic"
	"github.com/ohsu-comp-bio/weir/greedy"
	"github.com/ohsu-comp-bio/weir/policy"
	"github.com/ohsu-comp-bio/weir/result"
)

func TestOnlineBatches(t *testing.T) {
	c, err := elastic.NewCluster(
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 10, Arrival: 0},
			{Name: "task-1", RequiredStorage: 8, RequiredComputation: 8,
				RequiredResultsData: 8, Deadline: 6, Value: 5, Arrival: 1},
			{Name: "task-2", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 8, Arrival: 3},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	d := New(greedy.New(policy.Value{}, policy.SumResources{}, policy.SumSpeeds{}), 2)
	r, err := d.Run(c)
	if err != nil {
		t.Fatal(err)
	}

	if r.Algorithm != "online greedy value, sum-resources, sum-speeds, batch length 2" {
		t.Errorf("algorithm %q", r.Algorithm)
	}
	if r.SocialWelfare != 23 {
		t.Errorf("social welfare %f, want 23", r.SocialWelfare)
	}
	if r.PercentAllocated != 1 {
		t.Errorf("percent allocated %f, want 1", r.PercentAllocated)
	}

	// The first two arrivals run at time 2 with four and five time
	// units left, the third at time 4 with five. Deadline pressure
	// shows in the granted speeds.
	want := map[string]elastic.Speeds{
		"task-0": {Loading: 7, Compute: 7, Sending: 9},
		"task-1": {Loading: 4, Compute: 5, Sending: 6},
		"task-2": {Loading: 6, Compute: 6, Sending: 6},
	}
	for _, task := range c.Tasks() {
		if !task.Allocated() {
			t.Fatalf("task %q not allocated", task.Name)
		}
		if sp := task.Speeds(); sp != want[task.Name] {
			t.Errorf("task %q speeds %v, want %v", task.Name, sp, want[task.Name])
		}
		if !task.WithinDeadline(task.Speeds()) {
			t.Errorf("task %q misses its deadline", task.Name)
		}
	}

	batches := []result.BatchInfo{
		{Time: 2, Allocated: 2, Released: 0, Storage: 0.18, Computation: 0.12, Bandwidth: 0.26},
		{Time: 4, Allocated: 1, Released: 0, Storage: 0.28, Computation: 0.18, Bandwidth: 0.38},
	}
	if diff := deep.Equal(r.Batches, batches); diff != nil {
		t.Error(diff)
	}
}

// A server too small for two tasks at once serves both when the first
// finishes before the second arrives.
func TestOnlineRelease(t *testing.T) {
	c, err := elastic.NewCluster(
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 4, Value: 10, Arrival: 0},
			{Name: "task-1", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 4, Value: 8, Arrival: 3},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 20, ComputationCapacity: 20, BandwidthCapacity: 20},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	d := New(greedy.New(policy.Value{}, policy.SumResources{}, policy.SumSpeeds{}), 1)
	r, err := d.Run(c)
	if err != nil {
		t.Fatal(err)
	}

	if r.SocialWelfare != 18 {
		t.Errorf("social welfare %f, want 18", r.SocialWelfare)
	}
	if r.PercentAllocated != 1 {
		t.Errorf("percent allocated %f, want 1", r.PercentAllocated)
	}

	batches := []result.BatchInfo{
		{Time: 1, Allocated: 1, Released: 0, Storage: 0.5, Computation: 0.5, Bandwidth: 1},
		{Time: 2, Allocated: 0, Released: 0, Storage: 0.5, Computation: 0.5, Bandwidth: 1},
		{Time: 3, Allocated: 0, Released: 0, Storage: 0.5, Computation: 0.5, Bandwidth: 1},
		{Time: 4, Allocated: 1, Released: 1, Storage: 0.5, Computation: 0.5, Bandwidth: 1},
	}
	if diff := deep.Equal(r.Batches, batches); diff != nil {
		t.Error(diff)
	}

	// The released task keeps its allocation record and its welfare,
	// but the server no longer lists it.
	usage := r.Servers["server-0"]
	if usage.Tasks != 1 {
		t.Errorf("server lists %d tasks, want 1", usage.Tasks)
	}
	if usage.Welfare != 8 {
		t.Errorf("server welfare %f, want 8", usage.Welfare)
	}
	for _, name := range []string{"task-0", "task-1"} {
		tu, ok := r.Tasks[name]
		if !ok {
			t.Fatalf("task %q missing from result", name)
		}
		if tu.Server != "server-0" {
			t.Errorf("task %q on server %q", name, tu.Server)
		}
		if (elastic.Speeds{Loading: tu.Loading, Compute: tu.Compute, Sending: tu.Sending} !=
			elastic.Speeds{Loading: 10, Compute: 10, Sending: 10}) {
			t.Errorf("task %q speeds (%d,%d,%d)", name, tu.Loading, tu.Compute, tu.Sending)
		}
	}
}

// A task whose deadline runs out while it waits for its batch is
// never offered to the allocator.
func TestOnlineExpired(t *testing.T) {
	c, err := elastic.NewCluster(
		[]*elastic.Task{
			{Name: "hasty", RequiredStorage: 5, RequiredComputation: 5,
				RequiredResultsData: 5, Deadline: 1, Value: 9, Arrival: 0},
			{Name: "steady", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 10, Arrival: 1},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	d := New(greedy.New(policy.Value{}, policy.SumResources{}, policy.SumSpeeds{}), 2)
	r, err := d.Run(c)
	if err != nil {
		t.Fatal(err)
	}

	if len(r.Batches) != 1 || r.Batches[0].Allocated != 1 {
		t.Fatalf("batches %+v, want one batch with one allocation", r.Batches)
	}
	if c.Task(0).Allocated() {
		t.Error("expired task was allocated")
	}
	if !c.Task(1).Allocated() {
		t.Error("live task was not allocated")
	}
	if r.SocialWelfare != 10 {
		t.Errorf("social welfare %f, want 10", r.SocialWelfare)
	}
}

func TestOnlineValidation(t *testing.T) {
	c, err := elastic.NewCluster(
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 10},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	a := greedy.New(policy.Value{}, policy.SumResources{}, policy.SumSpeeds{})
	if _, err := New(a, 0).Run(c); err == nil {
		t.Error("batch length 0 accepted")
	}

	offline, err := elastic.NewCluster(
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 10, Arrival: -1},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(a, 2).Run(offline); err == nil {
		t.Error("task without arrival accepted")
	}
}

func TestOnlineDeterminism(t *testing.T) {
	build := func() *elastic.Cluster {
		c, err := elastic.NewCluster(
			[]*elastic.Task{
				{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
					RequiredResultsData: 10, Deadline: 6, Value: 10, Arrival: 0},
				{Name: "task-1", RequiredStorage: 8, RequiredComputation: 8,
					RequiredResultsData: 8, Deadline: 6, Value: 5, Arrival: 1},
				{Name: "task-2", RequiredStorage: 10, RequiredComputation: 10,
					RequiredResultsData: 10, Deadline: 6, Value: 8, Arrival: 3},
			},
			[]*elastic.Server{
				{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
			},
		)
		if err != nil {
			t.Fatal(err)
		}
		return c
	}

	d := New(greedy.New(policy.Value{}, policy.SumResources{}, policy.SumSpeeds{}), 2)
	r1, err := d.Run(build())
	if err != nil {
		t.Fatal(err)
	}
	r2, err := d.Run(build())
	if err != nil {
		t.Fatal(err)
	}
	r1.SolveTime, r2.SolveTime = 0, 0
	if diff := deep.Equal(r1, r2); diff != nil {
		t.Error(diff)
	}
}
