// Package online drives an allocator over a stream of arriving tasks.
// Arrivals are grouped into fixed-length batches, each batch is
// offered to the allocator against whatever capacity earlier batches
// left behind, and decisions are final: a task not placed in its own
// batch is never offered again. Between batches, servers take back
// the capacity of tasks whose deadlines have passed.
package online

import (
	"fmt"
	"math"
	"time"

	"github.com/ohsu-comp-bio/weir/elastic"
	"github.com/ohsu-comp-bio/weir/logger"
	"github.com/ohsu-comp-bio/weir/result"
)

var log = logger.NewSubLogger("online")

// BatchAllocator places a batch of tasks on the cluster. The greedy
// allocator satisfies it.
type BatchAllocator interface {
	Name() string
	AllocateTasks(c *elastic.Cluster, tasks []*elastic.Task) (int, error)
}

// Driver runs a batch allocator over arrival-ordered batches. A batch
// covering arrivals in [T-BatchLength, T) runs at time T, so every
// task has waited out the rest of its window and bids with only the
// deadline time it has left.
type Driver struct {
	Allocator   BatchAllocator
	BatchLength int64
	Log         *logger.Logger
}

// New returns a driver batching arrivals over windows of the given
// length.
func New(a BatchAllocator, batchLength int64) *Driver {
	return &Driver{Allocator: a, BatchLength: batchLength}
}

func (d *Driver) Name() string {
	return fmt.Sprintf("online %s, batch length %d", d.Allocator.Name(), d.BatchLength)
}

// Run plays the cluster's tasks through their arrival batches and
// summarises the outcome. Tasks released after finishing still count
// toward welfare; the per-batch trail is recorded on the result.
func (d *Driver) Run(c *elastic.Cluster) (*result.Result, error) {
	start := time.Now()
	if d.BatchLength < 1 {
		return nil, fmt.Errorf("batch length %d must be positive", d.BatchLength)
	}

	var horizon int64
	for _, t := range c.Tasks() {
		if t.Arrival < 0 {
			return nil, fmt.Errorf("task %q has no arrival time", t.Name)
		}
		if t.Arrival > horizon {
			horizon = t.Arrival
		}
	}

	var batches []result.BatchInfo
	for now := d.BatchLength; now-d.BatchLength <= horizon; now += d.BatchLength {
		released := c.ReleaseFinished(now)

		// Shadow copies carry the deadline time left after the wait
		// for the batch, so ranking and feasibility see the urgency,
		// while the real allocation lands on the original task with
		// its full record.
		var shadows []*elastic.Task
		for _, t := range c.Tasks() {
			if t.Arrival < now-d.BatchLength || t.Arrival >= now {
				continue
			}
			remaining := t.Arrival + t.Deadline - now
			if remaining < 1 {
				d.logger().Debug("task expired before its batch", "task", t.Name)
				continue
			}
			shadows = append(shadows, t.WithDeadline(remaining))
		}

		allocated, err := d.Allocator.AllocateTasks(c, shadows)
		if err != nil {
			return nil, err
		}
		for _, sh := range shadows {
			if !sh.Allocated() {
				continue
			}
			s, sp := sh.Server(), sh.Speeds()
			if err := c.Deallocate(sh); err != nil {
				return nil, err
			}
			if err := c.Allocate(c.Task(sh.ID()), s, sp); err != nil {
				return nil, err
			}
		}

		storage, computation, bandwidth := usage(c)
		batches = append(batches, result.BatchInfo{
			Time:        now,
			Allocated:   allocated,
			Released:    released,
			Storage:     storage,
			Computation: computation,
			Bandwidth:   bandwidth,
		})
		d.logger().Debug("batch done", "time", now,
			"offered", len(shadows), "allocated", allocated, "released", released)
	}

	r := result.New(d.Name(), c, time.Since(start))
	r.Batches = batches
	return r, nil
}

func (d *Driver) logger() *logger.Logger {
	if d.Log != nil {
		return d.Log
	}
	return log
}

// usage returns the cluster-wide used fraction of each resource
// dimension.
func usage(c *elastic.Cluster) (storage, computation, bandwidth float64) {
	var sCap, sUsed, wCap, wUsed, bCap, bUsed int64
	for _, s := range c.Servers() {
		sCap += s.StorageCapacity
		sUsed += s.StorageCapacity - s.AvailableStorage()
		wCap += s.ComputationCapacity
		wUsed += s.ComputationCapacity - s.AvailableComputation()
		bCap += s.BandwidthCapacity
		bUsed += s.BandwidthCapacity - s.AvailableBandwidth()
	}
	return frac(sUsed, sCap), frac(wUsed, wCap), frac(bUsed, bCap)
}

func frac(used, capacity int64) float64 {
	if capacity == 0 {
		return 0
	}
	return math.Round(float64(used)/float64(capacity)*1000) / 1000
}
