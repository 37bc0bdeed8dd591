// Package cmd contains the weir CLI commands.
package cmd

import (
	"github.com/ohsu-comp-bio/weir/cmd/examples"
	"github.com/ohsu-comp-bio/weir/cmd/models"
	"github.com/ohsu-comp-bio/weir/cmd/run"
	"github.com/ohsu-comp-bio/weir/cmd/sweep"
	"github.com/ohsu-comp-bio/weir/cmd/version"
	"github.com/spf13/cobra"
)

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:           "weir",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	RootCmd.AddCommand(completionCmd)
	RootCmd.AddCommand(examples.Cmd)
	RootCmd.AddCommand(genMarkdownCmd)
	RootCmd.AddCommand(models.Cmd)
	RootCmd.AddCommand(run.Cmd)
	RootCmd.AddCommand(sweep.Cmd)
	RootCmd.AddCommand(version.Cmd)
}
