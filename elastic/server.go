package elastic

import (
	"fmt"
)

// Server holds capacity in three resource dimensions. Storage is
// consumed by a task's full data demand, computation by its granted
// compute speed, and bandwidth by its loading plus sending speeds.
type Server struct {
	Name string

	StorageCapacity     int64
	ComputationCapacity int64
	BandwidthCapacity   int64

	// PriceChange and InitialPrice drive the iterative auction:
	// reserve prices start at InitialPrice and rise by PriceChange.
	PriceChange  float64
	InitialPrice float64

	id      int
	cluster *Cluster

	alloc serverAlloc
}

// serverAlloc is the allocation overlay for a server, valid only
// while its generation matches the cluster's.
type serverAlloc struct {
	gen             uint64
	usedStorage     int64
	usedComputation int64
	usedBandwidth   int64
	tasks           []*Task
	revenue         float64
}

// ID returns the server's dense cluster index.
func (s *Server) ID() int {
	return s.id
}

// current returns the overlay if it belongs to the current
// generation, otherwise the zero overlay.
func (s *Server) current() serverAlloc {
	if s.cluster == nil || s.alloc.gen != s.cluster.gen {
		return serverAlloc{}
	}
	return s.alloc
}

// refresh makes the overlay writable in the current generation.
func (s *Server) refresh() {
	if s.alloc.gen != s.cluster.gen {
		s.alloc = serverAlloc{gen: s.cluster.gen}
	}
}

// AvailableStorage returns the storage capacity not yet consumed by
// allocated tasks.
func (s *Server) AvailableStorage() int64 {
	return s.StorageCapacity - s.current().usedStorage
}

// AvailableComputation returns the computation capacity not yet
// granted to allocated tasks.
func (s *Server) AvailableComputation() int64 {
	return s.ComputationCapacity - s.current().usedComputation
}

// AvailableBandwidth returns the bandwidth capacity not yet granted
// to allocated tasks.
func (s *Server) AvailableBandwidth() int64 {
	return s.BandwidthCapacity - s.current().usedBandwidth
}

// Tasks returns the tasks currently allocated to the server.
func (s *Server) Tasks() []*Task {
	return s.current().tasks
}

// Revenue returns the sum of prices paid by tasks allocated to the
// server.
func (s *Server) Revenue() float64 {
	return s.current().revenue
}

// TotalValue returns the sum of values of tasks allocated to the
// server.
func (s *Server) TotalValue() float64 {
	var v float64
	for _, t := range s.current().tasks {
		v += t.Value
	}
	return v
}

// CanRun checks whether the task could run on the server if the
// server dedicated all of its currently available resources to it.
// The scan tries every split of available bandwidth between loading
// and sending with the full available computation as compute speed.
func (s *Server) CanRun(t *Task) bool {
	return s.canRun(t, s.AvailableStorage(), s.AvailableComputation(), s.AvailableBandwidth())
}

// CanRunEmpty checks whether the task could run on the server if the
// server were empty and dedicated all of its capacity to it.
func (s *Server) CanRunEmpty(t *Task) bool {
	return s.canRun(t, s.StorageCapacity, s.ComputationCapacity, s.BandwidthCapacity)
}

func (s *Server) canRun(t *Task, storage, computation, bandwidth int64) bool {
	if t.RequiredStorage > storage || computation < 1 || bandwidth < 2 {
		return false
	}

	// Fixed tasks must fit their pre-committed speeds.
	if fixed, ok := t.FixedSpeeds(); ok {
		return fixed.Compute <= computation && fixed.Loading+fixed.Sending <= bandwidth
	}

	for loading := int64(1); loading < bandwidth; loading++ {
		sp := Speeds{Loading: loading, Compute: computation, Sending: bandwidth - loading}
		if t.WithinDeadline(sp) {
			return true
		}
	}
	return false
}

func (s *Server) String() string {
	return fmt.Sprintf("server %q storage: %d, computation: %d, bandwidth: %d",
		s.Name, s.StorageCapacity, s.ComputationCapacity, s.BandwidthCapacity)
}

// validate checks the server definition, not its allocation state.
func (s *Server) validate() error {
	if s.Name == "" {
		return fmt.Errorf("server has no name")
	}
	if s.StorageCapacity <= 0 || s.ComputationCapacity <= 0 || s.BandwidthCapacity <= 0 {
		return fmt.Errorf("server %q has non-positive capacities", s.Name)
	}
	if s.PriceChange < 0 || s.InitialPrice < 0 {
		return fmt.Errorf("server %q has negative auction prices", s.Name)
	}
	return nil
}
