// Package sweep contains the sweep command, which evaluates a battery
// of algorithms over a grid of population sizes and repeats.
package sweep

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/ohsu-comp-bio/weir/cmd/util"
	"github.com/ohsu-comp-bio/weir/config"
	"github.com/ohsu-comp-bio/weir/gen"
	"github.com/ohsu-comp-bio/weir/greedy"
	"github.com/ohsu-comp-bio/weir/logger"
	"github.com/ohsu-comp-bio/weir/result"
	weirutil "github.com/ohsu-comp-bio/weir/util"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var log = logger.NewSubLogger("sweep")

// seedStride spaces per-size seed ranges so repeats never reuse a
// population across grid entries.
const seedStride = 100003

var (
	configFile   string
	flagConf     = config.Config{}
	pol          = util.DefaultPolicies()
	modelFile    string
	algorithms   []string
	permutations bool
	arrivals     int64
)

// Cmd represents the `weir sweep` command.
var Cmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate algorithms across population sizes and repeats.",
	Long: `Sweep draws fresh populations for every size pair and repeat in the
grid, runs the algorithm battery on each, writes one result file per
run, and prints social welfare aggregated per algorithm. Repeats run
concurrently on a worker pool; each population is owned by exactly
one worker.`,
	Example: `  weir sweep -m examples/paper.yaml --tasks 20,40 --servers 3,6 --repeats 5
  weir sweep -m examples/paper.yaml --permutations --algorithms optimal`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := util.MergeConfigFileWithFlags(configFile, flagConf)
		if err != nil {
			return err
		}
		return Run(conf, pol, modelFile, algorithms, permutations, arrivals)
	},
}

func init() {
	Cmd.SetGlobalNormalizationFunc(util.NormalizeFlags)
	flags := Cmd.Flags()
	flags.AddFlagSet(util.ConfigFlags(&flagConf, &configFile))
	flags.AddFlagSet(util.PolicyFlags(&pol))
	flags.StringVarP(&modelFile, "model", "m", "", "Model file, YAML or JSON")
	flags.StringSliceVar(&algorithms, "algorithms",
		[]string{"greedy", "matrix", "critical", "iterative", "fixed", "optimal", "relaxed"},
		"Algorithm families to run on every population")
	flags.BoolVar(&permutations, "permutations", false,
		"Also run every greedy policy permutation")
	flags.Int64Var(&arrivals, "arrivals", 0,
		"Draw task arrivals uniformly from [0, span)")
	flags.IntSliceVar(&flagConf.Sweep.Tasks, "tasks", nil,
		"Task counts, paired with --servers")
	flags.IntSliceVar(&flagConf.Sweep.Servers, "servers", nil,
		"Server counts, paired with --tasks")
	flags.IntVar(&flagConf.Sweep.Repeats, "repeats", 0, "Repeats per size pair")
	flags.IntVar(&flagConf.Sweep.Workers, "workers", 0, "Concurrent populations")
}

// Run sweeps the grid, saving every result and printing the
// aggregate. The first error stops new work but lets running
// populations finish.
func Run(conf config.Config, pol util.Policies, modelFile string, names []string,
	permutations bool, arrivals int64) error {

	logger.Configure(conf.Logger)

	if modelFile == "" {
		return fmt.Errorf("a model file is required")
	}
	model, err := gen.LoadModel(modelFile)
	if err != nil {
		return err
	}

	// Fail on an unknown name before burning grid time.
	for _, name := range names {
		if _, err := util.BuildAlgorithm(name, conf, pol); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(conf.OutputDir, 0o755); err != nil {
		return err
	}

	runID := weirutil.GenRunID()
	total := len(conf.Sweep.Tasks) * conf.Sweep.Repeats
	log.Info("sweep starting",
		"runID", runID,
		"model", model.Name,
		"sizes", len(conf.Sweep.Tasks),
		"repeats", conf.Sweep.Repeats,
		"workers", conf.Sweep.Workers)

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("sweeping "+model.Name),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	var (
		mu       sync.Mutex
		firstErr error
		agg      = newAggregate()
	)

	wp := workerpool.New(conf.Sweep.Workers)
	for i := range conf.Sweep.Tasks {
		for r := 0; r < conf.Sweep.Repeats; r++ {
			i, r := i, r
			wp.Submit(func() {
				mu.Lock()
				stop := firstErr != nil
				mu.Unlock()
				if stop {
					return
				}

				results, err := evaluate(conf, pol, model, i, r, runID, names, permutations, arrivals)

				mu.Lock()
				defer mu.Unlock()
				_ = bar.Add(1)
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				for _, res := range results {
					agg.add(res)
				}
			})
		}
	}
	wp.StopWait()
	_ = bar.Finish()

	if firstErr != nil {
		return firstErr
	}

	agg.print(os.Stdout)
	log.Info("sweep done", "runID", runID, "results", agg.runs())
	return nil
}

// evaluate draws one population and runs the battery on it. Results
// are saved as they are produced; filenames carry the slugged
// algorithm name, the repeat, and the drawn population size.
func evaluate(conf config.Config, pol util.Policies, model *gen.Model,
	sizeIdx, repeat int, runID string, names []string, permutations bool, arrivals int64) ([]*result.Result, error) {

	seed := conf.Seed + uint64(sizeIdx)*seedStride + uint64(repeat)
	pol.Seed = seed

	g := gen.New(model, conf.Sweep.Tasks[sizeIdx], conf.Sweep.Servers[sizeIdx], seed)
	g.ArrivalSpan = arrivals
	c, err := g.Generate()
	if err != nil {
		return nil, err
	}
	tasks, servers := len(c.Tasks()), len(c.Servers())

	var results []*result.Result
	for _, name := range names {
		alg, err := util.BuildAlgorithm(name, conf, pol)
		if err != nil {
			return nil, err
		}
		c.Reset()
		r, err := alg.Run(c)
		if err != nil {
			return nil, fmt.Errorf("running %s on %s t%d s%d r%d: %v",
				name, model.Name, tasks, servers, repeat, err)
		}
		results = append(results, r)
	}

	if permutations {
		c.Reset()
		rs, err := greedy.Permutations(c, seed)
		if err != nil {
			return nil, err
		}
		results = append(results, rs...)
	}

	for _, r := range results {
		r.RunID = runID
		r.Model = model.Name
		path := filepath.Join(conf.OutputDir,
			result.Filename(slug(r.Algorithm), model.Name, repeat, tasks, servers))
		if err := r.Save(path); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// slug flattens an algorithm name into a filename-safe token.
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
