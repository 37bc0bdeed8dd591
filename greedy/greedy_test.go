package greedy

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/ohsu-comp-bio/weir/elastic"
	"github.com/ohsu-comp-bio/weir/policy"
)

// Two identical servers and three tasks, the highest-value task
// first. Under the completion-time-minimising allocation policy each
// winner drains its server's bandwidth, so the third task finds no
// room anywhere.
func scenarioCluster(t *testing.T) *elastic.Cluster {
	t.Helper()
	c, err := elastic.NewCluster(
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 40, RequiredComputation: 40,
				RequiredResultsData: 10, Deadline: 5, Value: 10},
			{Name: "task-1", RequiredStorage: 30, RequiredComputation: 30,
				RequiredResultsData: 10, Deadline: 5, Value: 20},
			{Name: "task-2", RequiredStorage: 50, RequiredComputation: 50,
				RequiredResultsData: 20, Deadline: 5, Value: 5},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
			{Name: "server-1", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGreedyScenario(t *testing.T) {
	c := scenarioCluster(t)
	a := New(policy.Value{}, policy.SumResources{}, policy.DeadlinePercent{})

	r, err := a.Run(c)
	if err != nil {
		t.Fatal(err)
	}

	if r.Algorithm != "greedy value, sum-resources, deadline-percent" {
		t.Errorf("algorithm %q", r.Algorithm)
	}
	if r.SocialWelfare != 30 {
		t.Errorf("social welfare %f, want 30", r.SocialWelfare)
	}
	if r.PercentAllocated != 0.667 {
		t.Errorf("percent allocated %f, want 0.667", r.PercentAllocated)
	}
	if r.PercentWelfare != 0.857 {
		t.Errorf("percent welfare %f, want 0.857", r.PercentWelfare)
	}

	// The high-value task claims the first server whole, the next
	// takes the second, and the last is left without bandwidth.
	t1 := c.Tasks()[1]
	if t1.Server() == nil || t1.Server().Name != "server-0" {
		t.Fatal("task-1 should win server-0")
	}
	if sp := t1.Speeds(); sp != (elastic.Speeds{Loading: 63, Compute: 100, Sending: 37}) {
		t.Errorf("task-1 speeds %s", sp)
	}
	t0 := c.Tasks()[0]
	if t0.Server() == nil || t0.Server().Name != "server-1" {
		t.Fatal("task-0 should fall to server-1")
	}
	if sp := t0.Speeds(); sp != (elastic.Speeds{Loading: 67, Compute: 100, Sending: 33}) {
		t.Errorf("task-0 speeds %s", sp)
	}
	if c.Tasks()[2].Allocated() {
		t.Error("task-2 should be rejected")
	}
}

// Every allocated task must still be inside its deadline and every
// server inside its capacities, whatever the policies.
func TestGreedyInvariants(t *testing.T) {
	c := scenarioCluster(t)
	a := New(
		policy.UtilityPerResources{Resources: policy.ResourceSum{}},
		policy.ProductResources{Maximise: true},
		policy.SumPercentage{},
	)
	if _, err := a.Run(c); err != nil {
		t.Fatal(err)
	}

	for _, task := range c.Tasks() {
		if !task.Allocated() {
			continue
		}
		total := task.LoadingTime() + task.ComputeTime() + task.SendingTime()
		if total > float64(task.Deadline) {
			t.Errorf("task %s finishes at %f past deadline %d", task.Name, total, task.Deadline)
		}
	}
	for _, s := range c.Servers() {
		if s.AvailableStorage() < 0 || s.AvailableComputation() < 0 || s.AvailableBandwidth() < 0 {
			t.Errorf("server %s over capacity", s.Name)
		}
	}
}

func TestGreedyDeterminism(t *testing.T) {
	c := scenarioCluster(t)
	a := New(policy.Value{}, policy.SumResources{}, policy.SumSpeeds{})

	r1, err := a.Run(c)
	if err != nil {
		t.Fatal(err)
	}
	c.Reset()
	r2, err := a.Run(c)
	if err != nil {
		t.Fatal(err)
	}

	r1.SolveTime, r2.SolveTime = 0, 0
	if diff := deep.Equal(r1, r2); diff != nil {
		t.Error(diff)
	}
}

// Growing a server can only help a greedy run.
func TestGreedyMonotonicity(t *testing.T) {
	run := func(capacity int64) float64 {
		c, err := elastic.NewCluster(
			[]*elastic.Task{
				{Name: "task-0", RequiredStorage: 40, RequiredComputation: 40,
					RequiredResultsData: 10, Deadline: 5, Value: 10},
				{Name: "task-1", RequiredStorage: 30, RequiredComputation: 30,
					RequiredResultsData: 10, Deadline: 5, Value: 20},
			},
			[]*elastic.Server{
				{Name: "server-0", StorageCapacity: capacity,
					ComputationCapacity: capacity, BandwidthCapacity: capacity},
			},
		)
		if err != nil {
			t.Fatal(err)
		}
		r, err := New(policy.Value{}, policy.SumResources{}, policy.SumSpeeds{}).Run(c)
		if err != nil {
			t.Fatal(err)
		}
		return r.SocialWelfare
	}

	small, big := run(50), run(100)
	if small != 20 || big != 30 {
		t.Errorf("welfare small %f, big %f", small, big)
	}
	if big < small {
		t.Error("welfare should not drop when capacity grows")
	}
}

func TestRank(t *testing.T) {
	c, err := elastic.NewCluster(
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 5},
			{Name: "task-1", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 10},
			{Name: "task-2", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 5},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	ranked := Rank(c.Tasks(), policy.Value{})
	want := []string{"task-1", "task-0", "task-2"}
	for i, task := range ranked {
		if task.Name != want[i] {
			t.Errorf("rank %d: got %s, want %s", i, task.Name, want[i])
		}
	}
}

func TestFixedGreedy(t *testing.T) {
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

	// Without pre-committed speeds the fixed allocator must refuse.
	if _, err := NewFixed(policy.Value{}, policy.SumResources{}).Run(c); err == nil {
		t.Fatal("expected error for unfixed tasks")
	}
	c.Reset()

	if err := elastic.Fix(c, elastic.SumSpeeds{}, false); err != nil {
		t.Fatal(err)
	}
	a := NewFixed(policy.Value{}, policy.SumResources{})
	if a.Name() != "fixed greedy value, sum-resources" {
		t.Errorf("name %q", a.Name())
	}

	r, err := a.Run(c)
	if err != nil {
		t.Fatal(err)
	}
	if r.SocialWelfare != 10 {
		t.Errorf("welfare %f", r.SocialWelfare)
	}
	if sp := c.Tasks()[0].Speeds(); sp != (elastic.Speeds{Loading: 5, Compute: 5, Sending: 5}) {
		t.Errorf("speeds %s, want the pre-committed triple", sp)
	}
}

func TestPermutations(t *testing.T) {
	c, err := elastic.NewCluster(
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 10},
			{Name: "task-1", RequiredStorage: 8, RequiredComputation: 8,
				RequiredResultsData: 8, Deadline: 6, Value: 5},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 50, ComputationCapacity: 50, BandwidthCapacity: 50},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	results, err := Permutations(c, 1)
	if err != nil {
		t.Fatal(err)
	}

	want := len(policy.PriorityNames()) * len(policy.AllocationNames()) * len(policy.SelectionNames())
	if len(results) != want {
		t.Fatalf("got %d results, want %d", len(results), want)
	}

	names := map[string]bool{}
	for _, r := range results {
		if names[r.Algorithm] {
			t.Errorf("duplicate algorithm name %q", r.Algorithm)
		}
		names[r.Algorithm] = true
	}

	if c.AllocatedCount() != 0 {
		t.Error("cluster should come back reset")
	}
}
