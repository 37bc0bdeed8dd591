package auction

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ohsu-comp-bio/weir/elastic"
	"github.com/ohsu-comp-bio/weir/logger"
	"github.com/ohsu-comp-bio/weir/policy"
	"github.com/ohsu-comp-bio/weir/result"
)

// DefaultRoundCap bounds the iterative auction when the caller does
// not. Reserve prices rise past every task value long before this.
const DefaultRoundCap = 200

// State names the phase the iterative auction loop is in.
type State int

const (
	// Bidding collects one bid per unassigned task.
	Bidding State = iota
	// Clearing re-admits each contested server's highest offers,
	// raises reserve prices on overrun dimensions, and evicts
	// tenants that no longer clear them.
	Clearing
	// Converged means a full round moved neither prices nor the
	// assignment, so no later round can either.
	Converged
	// RoundCapReached means the auction was cut off at the round cap
	// and reports its best assignment so far instead.
	RoundCapReached
)

func (s State) String() string {
	switch s {
	case Bidding:
		return "bidding"
	case Clearing:
		return "clearing"
	case Converged:
		return "converged"
	case RoundCapReached:
		return "round cap reached"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Iterative runs the decentralised iterative auction. Servers act as
// auctioneers, each quoting per-resource reserve prices that start at
// zero with the server's InitialPrice as a floor on any quote. Each
// round every unassigned task asks every server for a quote on its
// speed bundle and bids at the cheapest one, offering the quote.
// Servers re-admit their tenants and bidders in descending offer
// order while the bundles fit, so a bidder quoting above a tenant's
// locked price takes its place. A dimension some bid overran gets its
// reserve price raised by the server's PriceChange spread over the
// dimension's capacity, and tenants whose own bundle no longer
// clears the new quotes are evicted. Rounds repeat until prices and
// the assignment both hold still, or the round cap cuts the auction
// off, in which case the best assignment seen is restored and the
// result flagged as not converged.
//
// Bundles are quoted against full server capacity, not current
// availability, so a full server can still be outbid. A zero
// PriceChange falls back to 1.
type Iterative struct {
	Allocation policy.ResourceAllocation
	RoundCap   int
	Log        *logger.Logger
}

// NewIterative returns an iterative auction building bids with the
// given allocation policy.
func NewIterative(ra policy.ResourceAllocation) *Iterative {
	return &Iterative{Allocation: ra}
}

func (a *Iterative) Name() string {
	return fmt.Sprintf("iterative auction %s", a.Allocation.Name())
}

// Run auctions every task in the cluster and summarises the outcome.
// The cluster is left holding the final assignment at the prices its
// tasks last offered.
func (a *Iterative) Run(c *elastic.Cluster) (*result.Result, error) {
	start := time.Now()
	limit := a.RoundCap
	if limit <= 0 {
		limit = DefaultRoundCap
	}

	// The empty twin answers what a server would grant the task if
	// it had nothing else to do, which is what a displacing bid is
	// entitled to.
	empty := c.Clone()
	empty.Reset()

	st := &iterativeState{
		auction:  a,
		cluster:  c,
		empty:    empty,
		reserves: make([]reserve, len(c.Servers())),
		bundles:  make([][]bundleEntry, len(c.Tasks())),
	}
	for i := range st.bundles {
		st.bundles[i] = make([]bundleEntry, len(c.Servers()))
	}

	var best []snapEntry
	bestWelfare := -1.0

	state := Bidding
	var bids []bid
	for state == Bidding || state == Clearing {
		switch state {
		case Bidding:
			bids = st.collectBids()
			state = Clearing
		case Clearing:
			changed, err := st.clear(bids)
			if err != nil {
				return nil, err
			}
			st.rounds++
			if w := c.SocialWelfare(); w > bestWelfare {
				best, bestWelfare = snapshot(c), w
			}
			switch {
			case !changed:
				state = Converged
			case st.rounds >= limit:
				state = RoundCapReached
			default:
				state = Bidding
			}
		}
	}

	if state == RoundCapReached && c.SocialWelfare() < bestWelfare {
		c.Reset()
		for _, e := range best {
			if err := c.AllocatePriced(e.task, e.server, e.speeds, e.price); err != nil {
				return nil, err
			}
		}
	}

	// Losers pay nothing, whatever they tentatively locked along the
	// way.
	for _, t := range c.Tasks() {
		if !t.Allocated() {
			c.SetPrice(t, 0)
		}
	}

	a.logger().Debug("auction finished",
		"state", state.String(), "rounds", st.rounds, "messages", st.messages)
	return result.New(a.Name(), c, time.Since(start)).
		WithAuction(c, st.rounds, st.messages, state == Converged), nil
}

func (a *Iterative) logger() *logger.Logger {
	if a.Log != nil {
		return a.Log
	}
	return log
}

// reserve holds one server's per-resource unit prices.
type reserve struct {
	storage     float64
	computation float64
	bandwidth   float64
}

// bid is one task's offer for its speed bundle on one server.
type bid struct {
	task   *elastic.Task
	server *elastic.Server
	speeds elastic.Speeds
	offer  float64
}

// bundleEntry caches one task's bundle on one server. Bundles are
// quoted against full capacity, so they never change between rounds.
type bundleEntry struct {
	speeds elastic.Speeds
	ok     bool
	tried  bool
}

// snapEntry records one allocation of a round snapshot.
type snapEntry struct {
	task   *elastic.Task
	server *elastic.Server
	speeds elastic.Speeds
	price  float64
}

// iterativeState is the working state of one auction run.
type iterativeState struct {
	auction  *Iterative
	cluster  *elastic.Cluster
	empty    *elastic.Cluster
	reserves []reserve
	bundles  [][]bundleEntry
	rounds   int
	messages int
}

// bundle returns the speed bundle the task bids for on the server,
// computed once against the server's full capacity.
func (st *iterativeState) bundle(t *elastic.Task, s *elastic.Server) (elastic.Speeds, bool) {
	e := &st.bundles[t.ID()][s.ID()]
	if e.tried {
		return e.speeds, e.ok
	}
	e.tried = true
	if sp, ok := t.FixedSpeeds(); ok {
		e.speeds, e.ok = sp, s.CanRunEmpty(t)
		return e.speeds, e.ok
	}
	sp, err := policy.Speeds(st.auction.Allocation, st.empty.Task(t.ID()), st.empty.Server(s.ID()))
	if err != nil {
		return elastic.Speeds{}, false
	}
	e.speeds, e.ok = sp, true
	return sp, true
}

// quote prices a bundle at the server's reserve prices, floored at
// the server's InitialPrice and rounded to the three decimal places
// payments carry, so repeated quotes compare exactly.
func (st *iterativeState) quote(s *elastic.Server, t *elastic.Task, sp elastic.Speeds) float64 {
	r := st.reserves[s.ID()]
	cost := r.storage*float64(t.RequiredStorage) +
		r.computation*float64(sp.Compute) +
		r.bandwidth*float64(sp.Loading+sp.Sending)
	if cost < s.InitialPrice {
		cost = s.InitialPrice
	}
	return math.Round(cost*1000) / 1000
}

// collectBids gathers one bid per unassigned task: the cheapest
// feasible server at current quotes, ties to the lower server ID.
// Tasks quoted beyond their value everywhere sit the round out. Every
// query costs two messages and every submitted bid one more.
func (st *iterativeState) collectBids() []bid {
	servers := st.cluster.Servers()
	var bids []bid
	for _, t := range st.cluster.Tasks() {
		if t.Allocated() {
			continue
		}
		st.messages += 2 * len(servers)
		var best *bid
		for _, s := range servers {
			sp, ok := st.bundle(t, s)
			if !ok {
				continue
			}
			offer := st.quote(s, t, sp)
			if offer > t.Value {
				continue
			}
			if best == nil || offer < best.offer {
				best = &bid{task: t, server: s, speeds: sp, offer: offer}
			}
		}
		if best != nil {
			bids = append(bids, *best)
			st.messages++
		}
	}
	return bids
}

// candidate is one contender in a contested server's re-admission,
// either a sitting tenant at its locked price or a fresh bid.
type candidate struct {
	task   *elastic.Task
	speeds elastic.Speeds
	offer  float64
	tenant bool
}

// clear settles every contested server: tenants and bidders are
// re-admitted from empty in descending offer order while their
// bundles fit, rejected tenants are evicted, rejected bids mark the
// dimensions they overran for a reserve price rise, and tenants
// priced out by the rise are evicted too. Reports whether prices or
// the assignment moved.
func (st *iterativeState) clear(bids []bid) (bool, error) {
	c := st.cluster
	perServer := make([][]bid, len(c.Servers()))
	for _, b := range bids {
		perServer[b.server.ID()] = append(perServer[b.server.ID()], b)
	}

	changed := false
	for _, s := range c.Servers() {
		sb := perServer[s.ID()]
		if len(sb) == 0 {
			continue
		}

		candidates := make([]candidate, 0, len(sb)+len(s.Tasks()))
		for _, t := range s.Tasks() {
			candidates = append(candidates, candidate{
				task: t, speeds: t.Speeds(), offer: t.Price(), tenant: true,
			})
		}
		for _, b := range sb {
			candidates = append(candidates, candidate{task: b.task, speeds: b.speeds, offer: b.offer})
		}
		// Ties keep the tenant, so displacement always costs more
		// than the seat's locked price and prices only escalate.
		sort.Slice(candidates, func(i, j int) bool {
			ci, cj := candidates[i], candidates[j]
			if ci.offer != cj.offer {
				return ci.offer > cj.offer
			}
			if ci.tenant != cj.tenant {
				return ci.tenant
			}
			return ci.task.ID() < cj.task.ID()
		})

		for _, t := range append([]*elastic.Task(nil), s.Tasks()...) {
			if err := c.Deallocate(t); err != nil {
				return false, err
			}
		}

		var short struct{ storage, computation, bandwidth bool }
		for _, cand := range candidates {
			sp := cand.speeds
			fits := cand.task.RequiredStorage <= s.AvailableStorage() &&
				sp.Compute <= s.AvailableComputation() &&
				sp.Loading+sp.Sending <= s.AvailableBandwidth()
			if fits {
				if err := c.AllocatePriced(cand.task, s, sp, cand.offer); err != nil {
					return false, err
				}
				if !cand.tenant {
					st.auction.logger().Debug("admitted bid",
						"task", cand.task.Name, "server", s.Name, "price", cand.task.Price())
					changed = true
					st.messages++
				}
				continue
			}
			if cand.tenant {
				st.auction.logger().Debug("evicted tenant",
					"task", cand.task.Name, "server", s.Name, "by", "displacement")
				changed = true
				st.messages++
				continue
			}
			short.storage = short.storage || cand.task.RequiredStorage > s.AvailableStorage()
			short.computation = short.computation || sp.Compute > s.AvailableComputation()
			short.bandwidth = short.bandwidth || sp.Loading+sp.Sending > s.AvailableBandwidth()
		}

		pc := s.PriceChange
		if pc == 0 {
			pc = 1
		}
		r := &st.reserves[s.ID()]
		rose := false
		if short.storage {
			r.storage += pc / float64(s.StorageCapacity)
			rose = true
		}
		if short.computation {
			r.computation += pc / float64(s.ComputationCapacity)
			rose = true
		}
		if short.bandwidth {
			r.bandwidth += pc / float64(s.BandwidthCapacity)
			rose = true
		}
		if !rose {
			continue
		}
		changed = true

		// Tenants whose own bundle no longer clears the new quotes
		// are out, whatever price they locked.
		for _, t := range append([]*elastic.Task(nil), s.Tasks()...) {
			if st.quote(s, t, t.Speeds()) <= t.Value {
				continue
			}
			if err := c.Deallocate(t); err != nil {
				return false, err
			}
			st.auction.logger().Debug("evicted tenant",
				"task", t.Name, "server", s.Name, "by", "price")
			st.messages++
		}
	}
	return changed, nil
}

func snapshot(c *elastic.Cluster) []snapEntry {
	var entries []snapEntry
	for _, t := range c.Tasks() {
		if t.Allocated() {
			entries = append(entries, snapEntry{
				task: t, server: t.Server(), speeds: t.Speeds(), price: t.Price(),
			})
		}
	}
	return entries
}
