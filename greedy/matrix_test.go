package greedy

import (
	"math"
	"testing"

	"github.com/go-test/deep"
	"github.com/ohsu-comp-bio/weir/elastic"
)

func matrixCluster(t *testing.T) *elastic.Cluster {
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
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestMatrixGreedy(t *testing.T) {
	c := matrixCluster(t)
	m := Matrix(SumUsage{})

	r, err := m.Run(c)
	if err != nil {
		t.Fatal(err)
	}

	if r.Algorithm != "matrix greedy sum-usage" {
		t.Errorf("algorithm %q", r.Algorithm)
	}
	if r.SocialWelfare != 30 {
		t.Errorf("social welfare %f, want 30", r.SocialWelfare)
	}
	if r.PercentAllocated != 0.667 {
		t.Errorf("percent allocated %f", r.PercentAllocated)
	}

	// Leftover-weighted values allocate the high-value task at the
	// cheapest triple first, then the next, and squeeze out the last
	// on storage.
	if sp := c.Tasks()[1].Speeds(); sp != (elastic.Speeds{Loading: 15, Compute: 15, Sending: 10}) {
		t.Errorf("task-1 speeds %s", sp)
	}
	if sp := c.Tasks()[0].Speeds(); sp != (elastic.Speeds{Loading: 20, Compute: 20, Sending: 10}) {
		t.Errorf("task-0 speeds %s", sp)
	}
	if c.Tasks()[2].Allocated() {
		t.Error("task-2 should be rejected")
	}
}

func TestMatrixDeterminism(t *testing.T) {
	c := matrixCluster(t)
	m := Matrix(SumLeftPercentage{})

	r1, err := m.Run(c)
	if err != nil {
		t.Fatal(err)
	}
	c.Reset()
	r2, err := m.Run(c)
	if err != nil {
		t.Fatal(err)
	}

	r1.SolveTime, r2.SolveTime = 0, 0
	if diff := deep.Equal(r1, r2); diff != nil {
		t.Error(diff)
	}
}

func TestMatrixPolicyFormulas(t *testing.T) {
	c, err := elastic.NewCluster(
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 40, RequiredComputation: 40,
				RequiredResultsData: 10, Deadline: 5, Value: 10},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100, BandwidthCapacity: 100},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	task := c.Tasks()[0]
	server := c.Servers()[0]
	sp := elastic.Speeds{Loading: 20, Compute: 20, Sending: 10}

	cases := []struct {
		mp   MatrixPolicy
		want float64
	}{
		{SumUsage{}, 10 * (60 + 80 + 70)},
		{SumLeftPercentage{}, 10 * (0.6 + 0.8 + 0.7)},
		{SumMaxPercentage{}, 10 * (0.6 + 0.8 + 0.7)},
		{SumExpPercentage{}, 10 * (math.Exp(0.6) + math.Exp(0.8) + math.Exp(0.7))},
		{SumExp3Percentage{}, 10 * (math.Exp(0.216) + math.Exp(0.512) + math.Exp(0.343))},
	}
	for _, tc := range cases {
		got := tc.mp.Evaluate(task, server, sp)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: got %f, want %f", tc.mp.Name(), got, tc.want)
		}
	}
}

func TestMatrixRegistry(t *testing.T) {
	for _, name := range MatrixNames() {
		mp, err := MatrixByName(name)
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		if mp.Name() != name {
			t.Errorf("registered %q, built %q", name, mp.Name())
		}
	}
	if _, err := MatrixByName("nope"); err == nil {
		t.Error("expected error for unknown matrix policy")
	}
}
