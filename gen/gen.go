// Package gen builds clusters from model files. A model either lists
// its tasks and servers concretely or describes them as weighted
// gaussian distributions to draw from; draws are seeded, so a
// population is reproducible from its model, counts and seed.
package gen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/ghodss/yaml"
	"github.com/ohsu-comp-bio/weir/elastic"
	"github.com/ohsu-comp-bio/weir/logger"
	"gonum.org/v1/gonum/stat/distuv"
)

var log = logger.NewSubLogger("gen")

// TaskSpec is one concrete task in a model file.
type TaskSpec struct {
	Name        string  `json:"name"`
	Storage     int64   `json:"storage"`
	Computation int64   `json:"computation"`
	ResultsData int64   `json:"results data"`
	Deadline    int64   `json:"deadline"`
	Value       float64 `json:"value"`
	AuctionTime *int64  `json:"auction time,omitempty"`
}

// ServerSpec is one concrete server in a model file.
type ServerSpec struct {
	Name         string  `json:"name"`
	Storage      int64   `json:"storage capacity"`
	Computation  int64   `json:"computation capacity"`
	Bandwidth    int64   `json:"bandwidth capacity"`
	PriceChange  float64 `json:"price change,omitempty"`
	InitialPrice float64 `json:"initial price,omitempty"`
}

// TaskDist describes a weighted population of tasks. Each attribute
// is drawn from a gaussian and floored at 1.
type TaskDist struct {
	Name            string  `json:"name"`
	Probability     float64 `json:"probability"`
	StorageMean     float64 `json:"required_storage_mean"`
	StorageStd      float64 `json:"required_storage_std"`
	ComputationMean float64 `json:"required_computation_mean"`
	ComputationStd  float64 `json:"required_computation_std"`
	ResultsDataMean float64 `json:"required_results_data_mean"`
	ResultsDataStd  float64 `json:"required_results_data_std"`
	ValueMean       float64 `json:"value_mean"`
	ValueStd        float64 `json:"value_std"`
	DeadlineMean    float64 `json:"deadline_mean"`
	DeadlineStd     float64 `json:"deadline_std"`
}

// ServerDist describes a weighted population of servers. Auction
// pricing fields apply as given rather than being drawn.
type ServerDist struct {
	Name            string  `json:"name"`
	Probability     float64 `json:"probability"`
	StorageMean     float64 `json:"maximum_storage_mean"`
	StorageStd      float64 `json:"maximum_storage_std"`
	ComputationMean float64 `json:"maximum_computation_mean"`
	ComputationStd  float64 `json:"maximum_computation_std"`
	BandwidthMean   float64 `json:"maximum_bandwidth_mean"`
	BandwidthStd    float64 `json:"maximum_bandwidth_std"`
	PriceChange     float64 `json:"price change,omitempty"`
	InitialPrice    float64 `json:"initial price,omitempty"`
}

// Model is a cluster description, concrete or distributional, read
// from a YAML or JSON file.
type Model struct {
	Name        string       `json:"name"`
	Tasks       []TaskSpec   `json:"tasks,omitempty"`
	Servers     []ServerSpec `json:"servers,omitempty"`
	TaskDists   []TaskDist   `json:"task_dist,omitempty"`
	ServerDists []ServerDist `json:"server_dist,omitempty"`
}

// LoadModel reads and validates a model file.
func LoadModel(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %v", err)
	}
	m := &Model{}
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("parsing model %s: %v", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validating model %s: %v", path, err)
	}
	return m, nil
}

// Save writes the model as YAML.
func (m *Model) Save(path string) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling model: %v", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// Concrete reports whether the model lists its population directly.
func (m *Model) Concrete() bool {
	return len(m.Tasks) > 0 || len(m.Servers) > 0
}

// Validate reports the first fault in the model. Concrete entries and
// distributions do not mix, and distribution weights must cover the
// whole unit interval.
func (m *Model) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model has no name")
	}
	distributional := len(m.TaskDists) > 0 || len(m.ServerDists) > 0
	if m.Concrete() && distributional {
		return fmt.Errorf("model %q mixes concrete entries and distributions", m.Name)
	}
	if m.Concrete() {
		if len(m.Tasks) == 0 || len(m.Servers) == 0 {
			return fmt.Errorf("concrete model %q needs both tasks and servers", m.Name)
		}
		return nil
	}
	if !distributional {
		return fmt.Errorf("model %q is empty", m.Name)
	}
	if len(m.TaskDists) == 0 || len(m.ServerDists) == 0 {
		return fmt.Errorf("model %q needs both task and server distributions", m.Name)
	}

	sum := 0.0
	for _, d := range m.TaskDists {
		if err := checkDist(d.Name, d.Probability, []float64{d.StorageMean, d.ComputationMean, d.ResultsDataMean, d.ValueMean, d.DeadlineMean},
			[]float64{d.StorageStd, d.ComputationStd, d.ResultsDataStd, d.ValueStd, d.DeadlineStd}); err != nil {
			return err
		}
		sum += d.Probability
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("task distribution probabilities sum to %g, want 1", sum)
	}

	sum = 0
	for _, d := range m.ServerDists {
		if err := checkDist(d.Name, d.Probability, []float64{d.StorageMean, d.ComputationMean, d.BandwidthMean},
			[]float64{d.StorageStd, d.ComputationStd, d.BandwidthStd}); err != nil {
			return err
		}
		sum += d.Probability
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("server distribution probabilities sum to %g, want 1", sum)
	}
	return nil
}

func checkDist(name string, probability float64, means, stds []float64) error {
	if name == "" {
		return fmt.Errorf("distribution has no name")
	}
	if probability <= 0 || probability > 1 {
		return fmt.Errorf("distribution %q has probability %g", name, probability)
	}
	for _, m := range means {
		if m <= 0 {
			return fmt.Errorf("distribution %q has non-positive mean %g", name, m)
		}
	}
	for _, s := range stds {
		if s < 0 {
			return fmt.Errorf("distribution %q has negative deviation %g", name, s)
		}
	}
	return nil
}

// FromCluster captures a cluster's population as a concrete model,
// so a drawn population can be saved and rerun exactly.
func FromCluster(name string, c *elastic.Cluster) *Model {
	m := &Model{Name: name}
	for _, t := range c.Tasks() {
		spec := TaskSpec{
			Name:        t.Name,
			Storage:     t.RequiredStorage,
			Computation: t.RequiredComputation,
			ResultsData: t.RequiredResultsData,
			Deadline:    t.Deadline,
			Value:       t.Value,
		}
		if t.Arrival >= 0 {
			arrival := t.Arrival
			spec.AuctionTime = &arrival
		}
		m.Tasks = append(m.Tasks, spec)
	}
	for _, s := range c.Servers() {
		m.Servers = append(m.Servers, ServerSpec{
			Name:         s.Name,
			Storage:      s.StorageCapacity,
			Computation:  s.ComputationCapacity,
			Bandwidth:    s.BandwidthCapacity,
			PriceChange:  s.PriceChange,
			InitialPrice: s.InitialPrice,
		})
	}
	return m
}

// Generator draws clusters from a model. Counts apply only to
// distributional models; a positive ArrivalSpan additionally draws
// each task's arrival uniformly from [0, span).
type Generator struct {
	Model       *Model
	Tasks       int
	Servers     int
	Seed        uint64
	ArrivalSpan int64
}

func New(m *Model, tasks, servers int, seed uint64) *Generator {
	return &Generator{Model: m, Tasks: tasks, Servers: servers, Seed: seed}
}

// Generate builds a cluster from the model.
func (g *Generator) Generate() (*elastic.Cluster, error) {
	if g.Model.Concrete() {
		return g.concrete()
	}
	return g.draw()
}

func (g *Generator) concrete() (*elastic.Cluster, error) {
	tasks := make([]*elastic.Task, len(g.Model.Tasks))
	for i, spec := range g.Model.Tasks {
		arrival := int64(-1)
		if spec.AuctionTime != nil {
			arrival = *spec.AuctionTime
		}
		tasks[i] = &elastic.Task{
			Name:                spec.Name,
			RequiredStorage:     spec.Storage,
			RequiredComputation: spec.Computation,
			RequiredResultsData: spec.ResultsData,
			Deadline:            spec.Deadline,
			Value:               spec.Value,
			Arrival:             arrival,
		}
	}
	servers := make([]*elastic.Server, len(g.Model.Servers))
	for i, spec := range g.Model.Servers {
		servers[i] = &elastic.Server{
			Name:                spec.Name,
			StorageCapacity:     spec.Storage,
			ComputationCapacity: spec.Computation,
			BandwidthCapacity:   spec.Bandwidth,
			PriceChange:         spec.PriceChange,
			InitialPrice:        spec.InitialPrice,
		}
	}
	return elastic.NewCluster(tasks, servers)
}

func (g *Generator) draw() (*elastic.Cluster, error) {
	if g.Tasks < 1 || g.Servers < 1 {
		return nil, fmt.Errorf("model %q needs task and server counts to draw", g.Model.Name)
	}

	src := rand.NewPCG(g.Seed, g.Seed)
	rng := rand.New(src)

	tasks := make([]*elastic.Task, g.Tasks)
	for i := range tasks {
		d := pickTaskDist(g.Model.TaskDists, rng.Float64())
		t := &elastic.Task{
			Name:                fmt.Sprintf("%s-%d", d.Name, i),
			RequiredStorage:     positiveNormal(d.StorageMean, d.StorageStd, src),
			RequiredComputation: positiveNormal(d.ComputationMean, d.ComputationStd, src),
			RequiredResultsData: positiveNormal(d.ResultsDataMean, d.ResultsDataStd, src),
			Value:               float64(positiveNormal(d.ValueMean, d.ValueStd, src)),
			Deadline:            positiveNormal(d.DeadlineMean, d.DeadlineStd, src),
			Arrival:             -1,
		}
		if g.ArrivalSpan > 0 {
			t.Arrival = rng.Int64N(g.ArrivalSpan)
		}
		tasks[i] = t
	}

	servers := make([]*elastic.Server, g.Servers)
	for i := range servers {
		d := pickServerDist(g.Model.ServerDists, rng.Float64())
		servers[i] = &elastic.Server{
			Name:                fmt.Sprintf("%s-%d", d.Name, i),
			StorageCapacity:     positiveNormal(d.StorageMean, d.StorageStd, src),
			ComputationCapacity: positiveNormal(d.ComputationMean, d.ComputationStd, src),
			BandwidthCapacity:   positiveNormal(d.BandwidthMean, d.BandwidthStd, src),
			PriceChange:         d.PriceChange,
			InitialPrice:        d.InitialPrice,
		}
	}

	log.Debug("population drawn",
		"model", g.Model.Name,
		"tasks", g.Tasks,
		"servers", g.Servers,
		"seed", g.Seed)
	return elastic.NewCluster(tasks, servers)
}

// positiveNormal draws from the gaussian, truncates, and floors at 1,
// so every attribute stays a usable positive quantity.
func positiveNormal(mean, std float64, src rand.Source) int64 {
	v := int64(distuv.Normal{Mu: mean, Sigma: std, Src: src}.Rand())
	if v < 1 {
		return 1
	}
	return v
}

func pickTaskDist(dists []TaskDist, u float64) TaskDist {
	for _, d := range dists {
		if u < d.Probability {
			return d
		}
		u -= d.Probability
	}
	return dists[len(dists)-1]
}

func pickServerDist(dists []ServerDist, u float64) ServerDist {
	for _, d := range dists {
		if u < d.Probability {
			return d
		}
		u -= d.Probability
	}
	return dists[len(dists)-1]
}
