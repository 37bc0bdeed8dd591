package policy

import (
	"math"
	"testing"

	"github.com/ohsu-comp-bio/weir/elastic"
)

func allocCluster(t *testing.T, tasks []*elastic.Task, servers []*elastic.Server) *elastic.Cluster {
	t.Helper()
	c, err := elastic.NewCluster(tasks, servers)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSpeedsSumSpeeds(t *testing.T) {
	c := allocCluster(t,
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 10},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
		},
	)
	task := c.Tasks()[0]

	sp, err := Speeds(SumSpeeds{}, task, c.Servers()[0])
	if err != nil {
		t.Fatal(err)
	}
	want := elastic.Speeds{Loading: 5, Compute: 5, Sending: 5}
	if sp != want {
		t.Errorf("got %s, want %s", sp, want)
	}
	if !task.WithinDeadline(sp) {
		t.Error("chosen speeds should meet the deadline")
	}
}

func TestSpeedsDeadlinePercent(t *testing.T) {
	c := allocCluster(t,
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 10},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
		},
	)

	// Minimising completion time splits bandwidth evenly and takes
	// all available computation.
	sp, err := Speeds(DeadlinePercent{}, c.Tasks()[0], c.Servers()[0])
	if err != nil {
		t.Fatal(err)
	}
	want := elastic.Speeds{Loading: 50, Compute: 100, Sending: 50}
	if sp != want {
		t.Errorf("got %s, want %s", sp, want)
	}
}

// With an odd amount of bandwidth left the even split is impossible
// and two mirrored splits tie. The search must settle the tie on the
// lexicographically smaller triple.
func TestSpeedsTieBreak(t *testing.T) {
	c := allocCluster(t,
		[]*elastic.Task{
			{Name: "blocker", RequiredStorage: 40, RequiredComputation: 50,
				RequiredResultsData: 9, Deadline: 5, Value: 1},
			{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 10},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
		},
	)
	blocker, task := c.Tasks()[0], c.Tasks()[1]
	server := c.Servers()[0]

	err := c.Allocate(blocker, server, elastic.Speeds{Loading: 40, Compute: 60, Sending: 9})
	if err != nil {
		t.Fatal(err)
	}
	if server.AvailableBandwidth() != 51 || server.AvailableComputation() != 40 {
		t.Fatal("unexpected availability after blocker")
	}

	sp, err := Speeds(DeadlinePercent{}, task, server)
	if err != nil {
		t.Fatal(err)
	}
	want := elastic.Speeds{Loading: 25, Compute: 40, Sending: 26}
	if sp != want {
		t.Errorf("got %s, want %s", sp, want)
	}
}

func TestSpeedsInfeasible(t *testing.T) {
	c := allocCluster(t,
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 50, RequiredComputation: 1000,
				RequiredResultsData: 50, Deadline: 1, Value: 10},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 10, ComputationCapacity: 10, BandwidthCapacity: 10},
		},
	)

	_, err := Speeds(SumSpeeds{}, c.Tasks()[0], c.Servers()[0])
	if err == nil {
		t.Error("expected error when no feasible speeds exist")
	}
}

func TestEvaluatorFormulas(t *testing.T) {
	c := allocCluster(t,
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 10},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
		},
	)
	task := c.Tasks()[0]
	server := c.Servers()[0]
	sp := elastic.Speeds{Loading: 5, Compute: 5, Sending: 5}

	cases := []struct {
		ra   ResourceAllocation
		want float64
	}{
		{SumPercentage{}, 0.15},
		{SumPowPercentage{}, 0.0125},
		{SumSpeeds{}, 15},
		{DeadlinePercent{}, 1.0},
	}
	for _, c := range cases {
		got := c.ra.Evaluate(task, server, sp)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("%s: got %f, want %f", c.ra.Name(), got, c.want)
		}
	}
}

func TestAllocationRegistry(t *testing.T) {
	for _, name := range AllocationNames() {
		ra, err := AllocationByName(name)
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		if ra.Name() != name {
			t.Errorf("registered %q, built %q", name, ra.Name())
		}
	}
	if _, err := AllocationByName("nope"); err == nil {
		t.Error("expected error for unknown allocation")
	}
}
