// Package config describes configuration for weir commands.
package config

import (
	"fmt"

	"github.com/ohsu-comp-bio/weir/logger"
)

// Config holds the knobs shared by the run and sweep commands.
// Fields map 1:1 onto the YAML config file.
type Config struct {
	// Directory result files are written into.
	OutputDir string
	// Base seed for model generation. Repeats derive their own
	// seeds from it, so a sweep is reproducible end to end.
	Seed    uint64
	Solver  Solver
	Online  Online
	Auction Auction
	Sweep   Sweep
	Logger  logger.Config
}

// Solver configures the integer program backend used by the optimal
// allocators.
type Solver struct {
	// Which backend solves the program: "bnb" for the built-in
	// branch and bound, "external" for a CPLEX LP file handed to
	// an external binary.
	Backend string
	// Path of the external solver binary.
	Command string
	// Where the external backend writes its scratch files.
	// Empty means the system temp directory.
	WorkDir string
	// How long a single solve may run before returning its
	// incumbent. Zero means no limit.
	TimeLimit Duration
}

// Online configures the batched online driver.
type Online struct {
	// How many time steps one batch window covers.
	BatchLength int64
}

// Auction configures the iterative auction.
type Auction struct {
	// Hard cap on auction rounds before the best assignment seen
	// is restored.
	RoundCap int
}

// Sweep configures the sweep command's evaluation grid.
type Sweep struct {
	// Size of the worker pool running repeats concurrently.
	Workers int
	// Repeats per model size, each with its own derived seed.
	Repeats int
	// Population sizes, taken pairwise: Tasks[i] tasks against
	// Servers[i] servers.
	Tasks   []int
	Servers []int
}

// Validate returns the first fault in the configuration.
func (c Config) Validate() error {
	switch c.Solver.Backend {
	case "bnb", "external":
	default:
		return fmt.Errorf("config: unknown solver backend %q", c.Solver.Backend)
	}
	if c.Solver.Backend == "external" && c.Solver.Command == "" {
		return fmt.Errorf("config: external solver backend needs a command")
	}
	if c.Solver.TimeLimit < 0 {
		return fmt.Errorf("config: negative solver time limit %s", &c.Solver.TimeLimit)
	}
	if c.Online.BatchLength < 1 {
		return fmt.Errorf("config: batch length %d must be positive", c.Online.BatchLength)
	}
	if c.Auction.RoundCap < 1 {
		return fmt.Errorf("config: auction round cap %d must be positive", c.Auction.RoundCap)
	}
	if c.Sweep.Workers < 1 {
		return fmt.Errorf("config: sweep needs at least one worker")
	}
	if c.Sweep.Repeats < 1 {
		return fmt.Errorf("config: sweep needs at least one repeat")
	}
	if len(c.Sweep.Tasks) != len(c.Sweep.Servers) {
		return fmt.Errorf("config: sweep lists %d task counts against %d server counts",
			len(c.Sweep.Tasks), len(c.Sweep.Servers))
	}
	for i := range c.Sweep.Tasks {
		if c.Sweep.Tasks[i] < 1 || c.Sweep.Servers[i] < 1 {
			return fmt.Errorf("config: sweep size %d x %d must be positive",
				c.Sweep.Tasks[i], c.Sweep.Servers[i])
		}
	}
	return nil
}
