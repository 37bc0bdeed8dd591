package elastic

import (
	"fmt"
)

// Speeds is the resource triple a server grants a task: the loading,
// compute, and sending speeds that determine how long each of the
// task's three phases takes.
type Speeds struct {
	Loading int64 `json:"loading"`
	Compute int64 `json:"compute"`
	Sending int64 `json:"sending"`
}

// Valid returns true if all three speeds are positive.
func (sp Speeds) Valid() bool {
	return sp.Loading > 0 && sp.Compute > 0 && sp.Sending > 0
}

func (sp Speeds) String() string {
	return fmt.Sprintf("(loading: %d, compute: %d, sending: %d)", sp.Loading, sp.Compute, sp.Sending)
}

// Less orders triples lexicographically by loading, compute, sending.
// Speed searches use it to settle score ties deterministically.
func (sp Speeds) Less(other Speeds) bool {
	if sp.Loading != other.Loading {
		return sp.Loading < other.Loading
	}
	if sp.Compute != other.Compute {
		return sp.Compute < other.Compute
	}
	return sp.Sending < other.Sending
}

// Task is a single unit of work with data to load, computation to run,
// and results to send back. The speeds granted by a server determine
// the phase durations, demand divided by speed, so the task holds only
// demands, a deadline, and a value. Allocation state lives in a
// generation-tagged overlay owned by the cluster.
type Task struct {
	Name string

	// Resource demands over the task's lifetime.
	RequiredStorage     int64
	RequiredComputation int64
	RequiredResultsData int64

	// Deadline is the time budget for all three phases.
	Deadline int64

	// Value is the utility realized if the task completes on time.
	Value float64

	// Arrival is the time the task enters an online auction.
	// Offline strategies ignore it, -1 marks a non-online task.
	Arrival int64

	id      int
	cluster *Cluster

	// Pre-committed speeds, set by Fix. When present the cluster
	// allocates these instead of the requested triple.
	fixed *Speeds

	alloc taskAlloc
	price taskPrice
}

// taskAlloc is the allocation overlay for a task. It is only
// meaningful while its generation matches the cluster's.
type taskAlloc struct {
	gen    uint64
	speeds Speeds
	server *Server
}

// taskPrice survives ResetKeepPrices, so it is tagged with a separate
// generation from the allocation overlay.
type taskPrice struct {
	gen   uint64
	price float64
}

// ID returns the task's dense cluster index. IDs are assigned by
// NewCluster and never change.
func (t *Task) ID() int {
	return t.id
}

// Allocated returns true if the task is currently bound to a server.
func (t *Task) Allocated() bool {
	return t.cluster != nil && t.alloc.gen == t.cluster.gen && t.alloc.server != nil
}

// Server returns the server the task is bound to, or nil.
func (t *Task) Server() *Server {
	if !t.Allocated() {
		return nil
	}
	return t.alloc.server
}

// Speeds returns the granted speed triple, or the zero triple when
// the task is unallocated.
func (t *Task) Speeds() Speeds {
	if !t.Allocated() {
		return Speeds{}
	}
	return t.alloc.speeds
}

// Price returns the price the task pays, set by auction mechanisms.
func (t *Task) Price() float64 {
	if t.cluster == nil || t.price.gen != t.cluster.priceGen {
		return 0
	}
	return t.price.price
}

// Utility returns the task's value minus the price it pays.
func (t *Task) Utility() float64 {
	return t.Value - t.Price()
}

// FixedSpeeds returns the pre-committed speed triple and true if the
// task has been fixed, otherwise the zero triple and false.
func (t *Task) FixedSpeeds() (Speeds, bool) {
	if t.fixed == nil {
		return Speeds{}, false
	}
	return *t.fixed, true
}

// LoadingTime returns the duration of the data loading phase,
// or 0 when the task is unallocated.
func (t *Task) LoadingTime() float64 {
	sp := t.Speeds()
	if sp.Loading == 0 {
		return 0
	}
	return float64(t.RequiredStorage) / float64(sp.Loading)
}

// ComputeTime returns the duration of the computation phase.
func (t *Task) ComputeTime() float64 {
	sp := t.Speeds()
	if sp.Compute == 0 {
		return 0
	}
	return float64(t.RequiredComputation) / float64(sp.Compute)
}

// SendingTime returns the duration of the result sending phase.
func (t *Task) SendingTime() float64 {
	sp := t.Speeds()
	if sp.Sending == 0 {
		return 0
	}
	return float64(t.RequiredResultsData) / float64(sp.Sending)
}

// WithinDeadline reports whether the given speeds complete all three
// phases within the task's deadline. The check is done in
// cross-multiplied integer arithmetic so float rounding can never
// admit a violating triple.
func (t *Task) WithinDeadline(sp Speeds) bool {
	if !sp.Valid() {
		return false
	}
	s, w, r := sp.Loading, sp.Compute, sp.Sending
	taken := t.RequiredStorage*w*r + s*t.RequiredComputation*r + s*w*t.RequiredResultsData
	return taken <= t.Deadline*s*w*r
}

// WithDeadline returns a detached copy of the task with the given
// deadline. The copy shares the task's demands and identity but none
// of its allocation state, so it can be used for what-if feasibility
// decisions without touching the original.
func (t *Task) WithDeadline(deadline int64) *Task {
	c := &Task{
		Name:                t.Name,
		RequiredStorage:     t.RequiredStorage,
		RequiredComputation: t.RequiredComputation,
		RequiredResultsData: t.RequiredResultsData,
		Deadline:            deadline,
		Value:               t.Value,
		Arrival:             t.Arrival,
		id:                  t.id,
		cluster:             t.cluster,
	}
	if t.fixed != nil {
		f := *t.fixed
		c.fixed = &f
	}
	return c
}

func (t *Task) String() string {
	if sp := t.Speeds(); sp.Valid() {
		return fmt.Sprintf("task %q storage: %d, computation: %d, results data: %d, deadline: %d, value: %g, speeds: %s",
			t.Name, t.RequiredStorage, t.RequiredComputation, t.RequiredResultsData, t.Deadline, t.Value, sp)
	}
	return fmt.Sprintf("task %q storage: %d, computation: %d, results data: %d, deadline: %d, value: %g",
		t.Name, t.RequiredStorage, t.RequiredComputation, t.RequiredResultsData, t.Deadline, t.Value)
}

// validate checks the task definition, not its allocation state.
func (t *Task) validate() error {
	if t.Name == "" {
		return fmt.Errorf("task has no name")
	}
	if t.RequiredStorage <= 0 || t.RequiredComputation <= 0 || t.RequiredResultsData <= 0 {
		return fmt.Errorf("task %q has non-positive resource demands", t.Name)
	}
	if t.Deadline <= 0 {
		return fmt.Errorf("task %q has non-positive deadline %d", t.Name, t.Deadline)
	}
	if t.Value < 0 {
		return fmt.Errorf("task %q has negative value %g", t.Name, t.Value)
	}
	return nil
}
