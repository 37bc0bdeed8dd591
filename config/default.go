package config

import (
	"runtime"
	"time"

	"github.com/ohsu-comp-bio/weir/logger"
)

// DefaultConfig returns configuration with working defaults: the
// built-in solver, a half-minute solve limit, and a small sweep grid.
func DefaultConfig() Config {
	return Config{
		OutputDir: "results",
		Seed:      1,
		Solver: Solver{
			Backend:   "bnb",
			Command:   "cbc",
			TimeLimit: Duration(30 * time.Second),
		},
		Online: Online{
			BatchLength: 4,
		},
		Auction: Auction{
			RoundCap: 200,
		},
		Sweep: Sweep{
			Workers: runtime.NumCPU(),
			Repeats: 10,
			Tasks:   []int{20, 40, 80},
			Servers: []int{3, 6, 12},
		},
		Logger: logger.DefaultConfig(),
	}
}
