// Package run contains the run command, which evaluates allocation
// algorithms on one model population.
package run

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ohsu-comp-bio/weir/cmd/util"
	"github.com/ohsu-comp-bio/weir/config"
	"github.com/ohsu-comp-bio/weir/gen"
	"github.com/ohsu-comp-bio/weir/logger"
	"github.com/ohsu-comp-bio/weir/result"
	weirutil "github.com/ohsu-comp-bio/weir/util"
	"github.com/ohsu-comp-bio/weir/version"
	"github.com/spf13/cobra"
)

var log = logger.NewSubLogger("run")

var (
	configFile string
	flagConf   = config.Config{}
	pol        = util.DefaultPolicies()
	modelFile  string
	tasks      int
	servers    int
	arrivals   int64
	noSave     bool
)

// Cmd represents the `weir run` command.
var Cmd = &cobra.Command{
	Use:   "run [algorithm ...]",
	Short: "Run allocation algorithms on one model population.",
	Long: `Run evaluates the named algorithms on a population built from a
model file, resetting the cluster between runs so every algorithm
sees the same starting point. With no names it runs the offline
battery. Results are printed as a table and written as JSON files.`,
	Example: `  weir run -m examples/paper.yaml --tasks 20 --servers 3 optimal greedy
  weir run -m examples/concrete.yaml critical iterative
  weir run -m examples/paper.yaml --tasks 12 --servers 2 --arrivals 20 online`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := util.MergeConfigFileWithFlags(configFile, flagConf)
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			names = []string{"greedy", "matrix", "critical", "iterative", "fixed", "optimal", "relaxed"}
		}
		return Run(conf, pol, modelFile, names, tasks, servers, arrivals, !noSave)
	},
}

func init() {
	Cmd.SetGlobalNormalizationFunc(util.NormalizeFlags)
	flags := Cmd.Flags()
	flags.AddFlagSet(util.ConfigFlags(&flagConf, &configFile))
	flags.AddFlagSet(util.PolicyFlags(&pol))
	flags.StringVarP(&modelFile, "model", "m", "", "Model file, YAML or JSON")
	flags.IntVar(&tasks, "tasks", 0, "Tasks to draw from a distributional model")
	flags.IntVar(&servers, "servers", 0, "Servers to draw from a distributional model")
	flags.Int64Var(&arrivals, "arrivals", 0, "Draw task arrivals uniformly from [0, span)")
	flags.BoolVar(&noSave, "no-save", false, "Skip writing result files")
}

// Run evaluates each named algorithm on the model population,
// resetting the cluster between runs, and writes one result file per
// algorithm into the output directory.
func Run(conf config.Config, pol util.Policies, modelFile string, names []string,
	tasks, servers int, arrivals int64, save bool) error {

	logger.Configure(conf.Logger)
	log.Info("Version", version.LogFields()...)

	if modelFile == "" {
		return fmt.Errorf("a model file is required")
	}
	model, err := gen.LoadModel(modelFile)
	if err != nil {
		return err
	}

	pol.Seed = conf.Seed
	g := gen.New(model, tasks, servers, conf.Seed)
	g.ArrivalSpan = arrivals
	c, err := g.Generate()
	if err != nil {
		return err
	}

	runID := weirutil.GenRunID()
	log.Info("population ready",
		"runID", runID,
		"model", model.Name,
		"tasks", len(c.Tasks()),
		"servers", len(c.Servers()))

	if save {
		if err := os.MkdirAll(conf.OutputDir, 0o755); err != nil {
			return err
		}
	}

	var results []*result.Result
	for _, name := range names {
		alg, err := util.BuildAlgorithm(name, conf, pol)
		if err != nil {
			return err
		}

		c.Reset()
		r, err := alg.Run(c)
		if err != nil {
			return fmt.Errorf("running %s: %v", name, err)
		}
		r.RunID = runID
		r.Model = model.Name
		results = append(results, r)
		log.Info("algorithm done",
			"algorithm", r.Algorithm,
			"socialWelfare", r.SocialWelfare,
			"solveTime", r.SolveTime)

		if save {
			path := filepath.Join(conf.OutputDir,
				result.Filename(name, model.Name, 0, len(c.Tasks()), len(c.Servers())))
			if err := r.Save(path); err != nil {
				return err
			}
		}
	}

	PrintSummary(os.Stdout, results)
	return nil
}
