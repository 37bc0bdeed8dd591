package elastic

import (
	"fmt"
	"math"

	"github.com/ohsu-comp-bio/weir/util"
)

// Cluster is the arena owning a fixed population of tasks and servers
// and all mutation of their allocation state. Allocation state is
// stored in generation-tagged overlays so that Reset is a constant
// time generation bump instead of object reconstruction, and the same
// population can be rerun through different strategies without its
// identity changing.
type Cluster struct {
	tasks   []*Task
	servers []*Server

	// gen tags allocation overlays, priceGen tags task prices.
	// Overlays from older generations read as empty.
	gen      uint64
	priceGen uint64
}

// NewCluster validates the given tasks and servers and builds a
// cluster around them. Task and server IDs are assigned densely in
// input order and never change.
func NewCluster(tasks []*Task, servers []*Server) (*Cluster, error) {
	c := &Cluster{tasks: tasks, servers: servers, gen: 1, priceGen: 1}

	var errs util.MultiError
	if len(tasks) == 0 {
		errs = append(errs, fmt.Errorf("cluster has no tasks"))
	}
	if len(servers) == 0 {
		errs = append(errs, fmt.Errorf("cluster has no servers"))
	}

	names := map[string]bool{}
	for i, t := range tasks {
		if err := t.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if names[t.Name] {
			errs = append(errs, fmt.Errorf("duplicate task name %q", t.Name))
		}
		names[t.Name] = true
		t.id = i
		t.cluster = c
	}

	names = map[string]bool{}
	for i, s := range servers {
		if err := s.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate server name %q", s.Name))
		}
		names[s.Name] = true
		s.id = i
		s.cluster = c
	}

	if err := errs.ToError(); err != nil {
		return nil, err
	}
	return c, nil
}

// Tasks returns all tasks in the cluster, in ID order.
func (c *Cluster) Tasks() []*Task {
	return c.tasks
}

// Servers returns all servers in the cluster, in ID order.
func (c *Cluster) Servers() []*Server {
	return c.servers
}

// Task returns the task with the given ID.
func (c *Cluster) Task(id int) *Task {
	return c.tasks[id]
}

// Server returns the server with the given ID.
func (c *Cluster) Server(id int) *Server {
	return c.servers[id]
}

// effectiveSpeeds substitutes a task's pre-committed triple for the
// requested one.
func (t *Task) effectiveSpeeds(sp Speeds) Speeds {
	if t.fixed != nil {
		return *t.fixed
	}
	return sp
}

// Feasible checks whether the task could be allocated to the server
// with the given speeds, returning nil on success, a CapacityError or
// DeadlineError describing the violated constraint otherwise. For
// fixed tasks the pre-committed triple is checked instead.
func (c *Cluster) Feasible(t *Task, s *Server, sp Speeds) error {
	return c.feasible(t, s, t.effectiveSpeeds(sp))
}

func (c *Cluster) feasible(t *Task, s *Server, sp Speeds) error {
	if t.Allocated() {
		return ErrAlreadyAllocated
	}
	if !sp.Valid() {
		return ErrInvalidSpeeds
	}
	if avail := s.AvailableStorage(); t.RequiredStorage > avail {
		return &CapacityError{
			Task: t.Name, Server: s.Name, Resource: "storage",
			Requested: t.RequiredStorage, Available: avail,
		}
	}
	if avail := s.AvailableComputation(); sp.Compute > avail {
		return &CapacityError{
			Task: t.Name, Server: s.Name, Resource: "computation",
			Requested: sp.Compute, Available: avail,
		}
	}
	if avail := s.AvailableBandwidth(); sp.Loading+sp.Sending > avail {
		return &CapacityError{
			Task: t.Name, Server: s.Name, Resource: "bandwidth",
			Requested: sp.Loading + sp.Sending, Available: avail,
		}
	}
	if !t.WithinDeadline(sp) {
		return &DeadlineError{Task: t.Name, Speeds: sp, Deadline: t.Deadline}
	}
	return nil
}

// Allocate binds the task to the server with the given speeds,
// consuming server capacity. The caller is responsible for only
// requesting feasible allocations; an error signals a violated
// contract, not a recoverable condition. For fixed tasks the
// pre-committed triple is allocated instead.
func (c *Cluster) Allocate(t *Task, s *Server, sp Speeds) error {
	sp = t.effectiveSpeeds(sp)
	if err := c.feasible(t, s, sp); err != nil {
		return err
	}

	s.refresh()
	t.alloc = taskAlloc{gen: c.gen, speeds: sp, server: s}
	s.alloc.usedStorage += t.RequiredStorage
	s.alloc.usedComputation += sp.Compute
	s.alloc.usedBandwidth += sp.Loading + sp.Sending
	s.alloc.tasks = append(s.alloc.tasks, t)
	s.alloc.revenue += t.Price()
	return nil
}

// AllocatePriced sets the price the task pays and then allocates it.
func (c *Cluster) AllocatePriced(t *Task, s *Server, sp Speeds, price float64) error {
	c.SetPrice(t, price)
	return c.Allocate(t, s, sp)
}

// Deallocate unbinds the task from its server, returning the consumed
// capacity and the task's price contribution to server revenue.
func (c *Cluster) Deallocate(t *Task) error {
	if !t.Allocated() {
		return ErrNotAllocated
	}
	s := t.alloc.server
	sp := t.alloc.speeds

	s.alloc.usedStorage -= t.RequiredStorage
	s.alloc.usedComputation -= sp.Compute
	s.alloc.usedBandwidth -= sp.Loading + sp.Sending
	s.alloc.revenue -= t.Price()
	for i, st := range s.alloc.tasks {
		if st == t {
			s.alloc.tasks = append(s.alloc.tasks[:i], s.alloc.tasks[i+1:]...)
			break
		}
	}
	t.alloc = taskAlloc{}
	return nil
}

// SetPrice sets the price the task pays, rounded to three decimal
// places. Prices set while a task is allocated do not retroactively
// adjust server revenue, so auctions price tasks before allocating
// them, via AllocatePriced.
func (c *Cluster) SetPrice(t *Task, price float64) {
	t.price = taskPrice{gen: c.priceGen, price: math.Round(price*1000) / 1000}
}

// Reset returns every task and server to the pristine unallocated
// state by bumping the cluster generation, leaving identities
// untouched. Idempotent.
func (c *Cluster) Reset() {
	c.gen++
	c.priceGen++
}

// ResetKeepPrices resets allocation state but keeps task prices, used
// by auction mechanisms that rerun allocation passes while
// accumulating critical values.
func (c *Cluster) ResetKeepPrices() {
	c.gen++
}

// ReleaseFinished releases the server capacity held by allocated
// online tasks whose deadline has passed at the given time. The tasks
// keep their allocation record, so they still count toward welfare,
// but their servers no longer list them. Returns the number of tasks
// released.
func (c *Cluster) ReleaseFinished(now int64) int {
	released := 0
	for _, t := range c.tasks {
		if !t.Allocated() || t.Arrival < 0 || t.Arrival+t.Deadline > now {
			continue
		}
		s := t.alloc.server
		if !serverLists(s, t) {
			continue
		}
		sp := t.alloc.speeds
		s.alloc.usedStorage -= t.RequiredStorage
		s.alloc.usedComputation -= sp.Compute
		s.alloc.usedBandwidth -= sp.Loading + sp.Sending
		for i, st := range s.alloc.tasks {
			if st == t {
				s.alloc.tasks = append(s.alloc.tasks[:i], s.alloc.tasks[i+1:]...)
				break
			}
		}
		released++
	}
	return released
}

func serverLists(s *Server, t *Task) bool {
	for _, st := range s.current().tasks {
		if st == t {
			return true
		}
	}
	return false
}

// SocialWelfare returns the sum of values over allocated tasks.
func (c *Cluster) SocialWelfare() float64 {
	var w float64
	for _, t := range c.tasks {
		if t.Allocated() {
			w += t.Value
		}
	}
	return w
}

// TotalValue returns the sum of values over all tasks, allocated or
// not.
func (c *Cluster) TotalValue() float64 {
	var v float64
	for _, t := range c.tasks {
		v += t.Value
	}
	return v
}

// AllocatedCount returns the number of allocated tasks.
func (c *Cluster) AllocatedCount() int {
	n := 0
	for _, t := range c.tasks {
		if t.Allocated() {
			n++
		}
	}
	return n
}

// PercentWelfare returns the ratio of social welfare to total value.
func (c *Cluster) PercentWelfare() float64 {
	total := c.TotalValue()
	if total == 0 {
		return 0
	}
	return c.SocialWelfare() / total
}

// PercentAllocated returns the fraction of tasks allocated.
func (c *Cluster) PercentAllocated() float64 {
	if len(c.tasks) == 0 {
		return 0
	}
	return float64(c.AllocatedCount()) / float64(len(c.tasks))
}

// Clone returns a deep copy of the cluster, including current
// allocation state. Clones share nothing with the original, so
// parallel experiment trials can each own one.
func (c *Cluster) Clone() *Cluster {
	n := &Cluster{gen: c.gen, priceGen: c.priceGen}

	n.tasks = make([]*Task, len(c.tasks))
	for i, t := range c.tasks {
		ct := *t
		ct.cluster = n
		if t.fixed != nil {
			f := *t.fixed
			ct.fixed = &f
		}
		n.tasks[i] = &ct
	}

	n.servers = make([]*Server, len(c.servers))
	for i, s := range c.servers {
		cs := *s
		cs.cluster = n
		cs.alloc.tasks = nil
		for _, st := range s.alloc.tasks {
			cs.alloc.tasks = append(cs.alloc.tasks, n.tasks[st.id])
		}
		n.servers[i] = &cs
	}

	// Remap task allocation references onto the cloned servers.
	for _, t := range n.tasks {
		if t.alloc.server != nil {
			t.alloc.server = n.servers[t.alloc.server.id]
		}
	}
	return n
}
