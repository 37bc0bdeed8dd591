// Package models contains commands for inspecting and drawing model
// files.
package models

import (
	"fmt"

	"github.com/ghodss/yaml"
	"github.com/logrusorgru/aurora"
	"github.com/ohsu-comp-bio/weir/cmd/util"
	"github.com/ohsu-comp-bio/weir/gen"
	"github.com/ohsu-comp-bio/weir/greedy"
	"github.com/ohsu-comp-bio/weir/policy"
	"github.com/spf13/cobra"
)

// Cmd represents the `weir models` command set.
var Cmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect and draw model files.",
}

func init() {
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(drawCmd)
	Cmd.AddCommand(policiesCmd)

	flags := drawCmd.Flags()
	flags.IntVar(&drawTasks, "tasks", 0, "Tasks to draw from a distributional model")
	flags.IntVar(&drawServers, "servers", 0, "Servers to draw from a distributional model")
	flags.Uint64Var(&drawSeed, "seed", 1, "Seed for the draw")
	flags.Int64Var(&drawSpan, "arrivals", 0, "Draw task arrivals uniformly from [0, span)")
}

var validateCmd = &cobra.Command{
	Use:   "validate <model> [model ...]",
	Short: "Validate model files.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			if _, err := gen.LoadModel(path); err != nil {
				failed++
				fmt.Println(aurora.Red("invalid"), path)
				fmt.Println("       ", err)
				continue
			}
			fmt.Println(aurora.Green("ok     "), path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d models failed validation", failed, len(args))
		}
		return nil
	},
}

var (
	drawTasks   int
	drawServers int
	drawSeed    uint64
	drawSpan    int64
)

var drawCmd = &cobra.Command{
	Use:   "draw <model>",
	Short: "Draw a population and print it as a concrete model.",
	Long: `Draw builds one population from a model file and prints it as a
concrete YAML model, so the exact population a seed produced can be
inspected, edited, or rerun.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := gen.LoadModel(args[0])
		if err != nil {
			return err
		}

		g := gen.New(m, drawTasks, drawServers, drawSeed)
		g.ArrivalSpan = drawSpan
		c, err := g.Generate()
		if err != nil {
			return err
		}

		b, err := yaml.Marshal(gen.FromCluster(m.Name, c))
		if err != nil {
			return err
		}
		fmt.Print(string(b))
		return nil
	},
}

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List algorithm families and policy names.",
	Run: func(cmd *cobra.Command, args []string) {
		section := func(title string, names []string) {
			fmt.Println(aurora.Bold(title))
			for _, n := range names {
				fmt.Println("  " + n)
			}
		}
		section("algorithms", util.AlgorithmNames())
		section("task priorities", policy.PriorityNames())
		section("server selections", policy.SelectionNames())
		section("resource allocations", policy.AllocationNames())
		section("matrix policies", greedy.MatrixNames())
		section("speed rules", util.SpeedRuleNames())
	},
}
