package util

import (
	"strings"
	"testing"

	"github.com/ohsu-comp-bio/weir/config"
	"github.com/ohsu-comp-bio/weir/elastic"
)

func testCluster(t *testing.T) *elastic.Cluster {
	t.Helper()
	c, err := elastic.NewCluster(
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 10, RequiredComputation: 10,
				RequiredResultsData: 10, Deadline: 6, Value: 10},
			{Name: "task-1", RequiredStorage: 8, RequiredComputation: 8,
				RequiredResultsData: 8, Deadline: 6, Value: 5},
		},
		[]*elastic.Server{
			{Name: "server-0", StorageCapacity: 100, ComputationCapacity: 100,
				BandwidthCapacity: 100, PriceChange: 2, InitialPrice: 10},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBuildEveryAlgorithm(t *testing.T) {
	conf := config.DefaultConfig()
	pol := DefaultPolicies()

	seen := map[string]bool{}
	for _, name := range AlgorithmNames() {
		alg, err := BuildAlgorithm(name, conf, pol)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if alg.Name() == "" {
			t.Errorf("%s: built algorithm has no name", name)
		}
		if seen[alg.Name()] {
			t.Errorf("%s: name %q already used by another family", name, alg.Name())
		}
		seen[alg.Name()] = true
	}

	if _, err := BuildAlgorithm("leftfield", conf, pol); err == nil {
		t.Error("expected an error for an unknown algorithm")
	}
}

func TestBuildRejectsBadPolicies(t *testing.T) {
	conf := config.DefaultConfig()

	pol := DefaultPolicies()
	pol.Priority = "nope"
	if _, err := BuildAlgorithm("greedy", conf, pol); err == nil {
		t.Error("expected an error for an unknown priority")
	}

	pol = DefaultPolicies()
	pol.Priority = "deadline-per-sum"
	if _, err := BuildAlgorithm("critical", conf, pol); err == nil {
		t.Error("expected an error for a priority without an inverse")
	}

	pol = DefaultPolicies()
	pol.SpeedRule = "nope"
	if _, err := BuildAlgorithm("fixed", conf, pol); err == nil {
		t.Error("expected an error for an unknown speed rule")
	}

	pol = DefaultPolicies()
	pol.Matrix = "nope"
	if _, err := BuildAlgorithm("matrix", conf, pol); err == nil {
		t.Error("expected an error for an unknown matrix policy")
	}

	conf.Solver.Backend = "simplex"
	if _, err := BuildAlgorithm("optimal", conf, DefaultPolicies()); err == nil {
		t.Error("expected an error for an unknown solver backend")
	}
}

func TestGreedyAlgorithmRuns(t *testing.T) {
	alg, err := BuildAlgorithm("greedy", config.DefaultConfig(), DefaultPolicies())
	if err != nil {
		t.Fatal(err)
	}

	c := testCluster(t)
	r, err := alg.Run(c)
	if err != nil {
		t.Fatal(err)
	}
	if r.SocialWelfare != 15 {
		t.Errorf("social welfare is %g, want 15", r.SocialWelfare)
	}
	if !strings.HasPrefix(r.Algorithm, "greedy ") {
		t.Errorf("unexpected algorithm name %q", r.Algorithm)
	}
}

func TestMatrixAlgorithmRuns(t *testing.T) {
	alg, err := BuildAlgorithm("matrix", config.DefaultConfig(), DefaultPolicies())
	if err != nil {
		t.Fatal(err)
	}

	c := testCluster(t)
	r, err := alg.Run(c)
	if err != nil {
		t.Fatal(err)
	}
	if r.SocialWelfare != 15 {
		t.Errorf("social welfare is %g, want 15", r.SocialWelfare)
	}
	if !strings.HasPrefix(r.Algorithm, "matrix greedy ") {
		t.Errorf("unexpected algorithm name %q", r.Algorithm)
	}
}

func TestFixedAlgorithmLeavesClusterElastic(t *testing.T) {
	alg, err := BuildAlgorithm("fixed", config.DefaultConfig(), DefaultPolicies())
	if err != nil {
		t.Fatal(err)
	}

	c := testCluster(t)
	r, err := alg.Run(c)
	if err != nil {
		t.Fatal(err)
	}
	if r.SocialWelfare != 15 {
		t.Errorf("social welfare is %g, want 15", r.SocialWelfare)
	}

	// The commit happened on a clone, not on the caller's cluster.
	for _, task := range c.Tasks() {
		if _, ok := task.FixedSpeeds(); ok {
			t.Errorf("task %q was left with fixed speeds", task.Name)
		}
	}
}
