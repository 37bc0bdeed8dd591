package util

import (
	"github.com/ohsu-comp-bio/weir/config"
	"github.com/spf13/pflag"
)

// ConfigFlags returns the flag set shared by commands that layer CLI
// values over a config file.
func ConfigFlags(flagConf *config.Config, configFile *string) *pflag.FlagSet {
	f := pflag.NewFlagSet("", pflag.ContinueOnError)

	f.StringVarP(configFile, "config", "c", *configFile, "Config file")
	f.StringVar(&flagConf.OutputDir, "output-dir", flagConf.OutputDir,
		"Directory result files are written into")
	f.Uint64Var(&flagConf.Seed, "seed", flagConf.Seed,
		"Base seed for drawing model populations")
	f.StringVar(&flagConf.Solver.Backend, "solver", flagConf.Solver.Backend,
		"Solver backend, bnb or external")
	f.StringVar(&flagConf.Solver.Command, "solver-command", flagConf.Solver.Command,
		"External solver binary")
	f.Var(&flagConf.Solver.TimeLimit, "time-limit",
		"Solve time limit, e.g. 30s")
	f.Int64Var(&flagConf.Online.BatchLength, "batch-length", flagConf.Online.BatchLength,
		"Online batch length in time steps")
	f.IntVar(&flagConf.Auction.RoundCap, "round-cap", flagConf.Auction.RoundCap,
		"Iterative auction round cap")
	f.StringVar(&flagConf.Logger.Level, "log-level", flagConf.Logger.Level,
		"Level of logging")
	f.StringVar(&flagConf.Logger.OutputFile, "log-path", flagConf.Logger.OutputFile,
		"File path to write logs to")

	return f
}

// PolicyFlags returns the flag set selecting policy names for the
// algorithm families that take them.
func PolicyFlags(pol *Policies) *pflag.FlagSet {
	f := pflag.NewFlagSet("", pflag.ContinueOnError)

	f.StringVar(&pol.Priority, "priority", pol.Priority, "Task priority policy")
	f.StringVar(&pol.Selection, "selection", pol.Selection, "Server selection policy")
	f.StringVar(&pol.Allocation, "allocation", pol.Allocation, "Resource allocation policy")
	f.StringVar(&pol.Matrix, "matrix-policy", pol.Matrix, "Matrix greedy value policy")
	f.StringVar(&pol.SpeedRule, "speed-rule", pol.SpeedRule, "Fixed speed rule")
	f.BoolVar(&pol.Foreknowledge, "foreknowledge", pol.Foreknowledge,
		"Cap fixed speeds by mean server capacity")

	return f
}
