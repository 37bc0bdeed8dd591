package result

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/ohsu-comp-bio/weir/elastic"
)

func testCluster(t *testing.T) *elastic.Cluster {
	t.Helper()
	c, err := elastic.NewCluster(
		[]*elastic.Task{
			{Name: "task-0", RequiredStorage: 40, RequiredComputation: 40,
				RequiredResultsData: 10, Deadline: 5, Value: 10},
			{Name: "task-1", RequiredStorage: 30, RequiredComputation: 30,
				RequiredResultsData: 10, Deadline: 5, Value: 20},
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

func TestNew(t *testing.T) {
	c := testCluster(t)
	s0 := c.Servers()[0]

	err := c.Allocate(c.Tasks()[0], s0, elastic.Speeds{Loading: 20, Compute: 20, Sending: 10})
	if err != nil {
		t.Fatal(err)
	}
	err = c.AllocatePriced(c.Tasks()[1], s0, elastic.Speeds{Loading: 15, Compute: 30, Sending: 5}, 4)
	if err != nil {
		t.Fatal(err)
	}

	r := New("greedy value", c, 1500*time.Millisecond)

	if r.Algorithm != "greedy value" {
		t.Errorf("algorithm %q", r.Algorithm)
	}
	if r.SolveTime != 1.5 {
		t.Errorf("solve time %f", r.SolveTime)
	}
	if r.SocialWelfare != 30 || r.PercentWelfare != 1 || r.PercentAllocated != 1 {
		t.Errorf("welfare %f, percent %f, allocated %f",
			r.SocialWelfare, r.PercentWelfare, r.PercentAllocated)
	}

	want := ServerUsage{
		Storage:     0.7,
		Computation: 0.5,
		Bandwidth:   0.5,
		Welfare:     30,
		Revenue:     4,
		Tasks:       2,
	}
	if diff := deep.Equal(r.Servers["server-0"], want); diff != nil {
		t.Error(diff)
	}
	if r.Servers["server-1"].Tasks != 0 || r.Servers["server-1"].Storage != 0 {
		t.Error("idle server should report no usage")
	}

	tu := r.Tasks["task-0"]
	if tu.Server != "server-0" || tu.Loading != 20 || tu.Compute != 20 || tu.Sending != 10 {
		t.Errorf("task-0 usage %+v", tu)
	}
	if tu.LoadingTime != 2 || tu.ComputeTime != 2 || tu.SendingTime != 1 {
		t.Errorf("task-0 phase times %+v", tu)
	}
	if r.Tasks["task-1"].Price != 4 {
		t.Errorf("task-1 price %f", r.Tasks["task-1"].Price)
	}
}

func TestNewUnallocated(t *testing.T) {
	c := testCluster(t)
	r := New("greedy value", c, 0)

	if r.SocialWelfare != 0 || r.PercentAllocated != 0 {
		t.Error("empty allocation should report zero welfare")
	}
	if len(r.Tasks) != 0 {
		t.Error("unallocated tasks should not be listed")
	}
}

func TestSaveLoad(t *testing.T) {
	c := testCluster(t)
	err := c.Allocate(c.Tasks()[0], c.Servers()[0], elastic.Speeds{Loading: 20, Compute: 20, Sending: 10})
	if err != nil {
		t.Fatal(err)
	}

	r := New("greedy value", c, time.Second).WithAuction(c, 3, 12, true)
	path := filepath.Join(t.TempDir(), "out.json")
	if err := r.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(r, loaded); diff != nil {
		t.Error(diff)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFilename(t *testing.T) {
	got := Filename("greedy", "synthetic", 2, 10, 3)
	if got != "greedy_synthetic_r2_t10_s3.json" {
		t.Errorf("got %q", got)
	}
}

func TestSummarise(t *testing.T) {
	results := []*Result{
		{Algorithm: "a", SocialWelfare: 10, PercentAllocated: 0.5, SolveTime: 1},
		{Algorithm: "a", SocialWelfare: 20, PercentAllocated: 0.7, SolveTime: 3},
		{Algorithm: "b", SocialWelfare: 25, PercentAllocated: 1, SolveTime: 2},
	}

	summaries := Summarise(results)
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries", len(summaries))
	}

	// Ordered by mean welfare descending.
	if summaries[0].Algorithm != "b" || summaries[1].Algorithm != "a" {
		t.Fatalf("order %q, %q", summaries[0].Algorithm, summaries[1].Algorithm)
	}

	a := summaries[1]
	if a.Runs != 2 || a.MeanWelfare != 15 || a.MeanPercentAlloc != 0.6 || a.MeanSolveTime != 2 {
		t.Errorf("summary %+v", a)
	}
	if math.Abs(a.StdWelfare-7.071) > 1e-9 {
		t.Errorf("std %f", a.StdWelfare)
	}
	if summaries[0].StdWelfare != 0 {
		t.Errorf("single run should have zero deviation")
	}
}
