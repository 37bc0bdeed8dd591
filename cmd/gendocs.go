package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// genMarkdownCmd represents the genmarkdown command
var genMarkdownCmd = &cobra.Command{
	Use:    "genmarkdown",
	Short:  "Generate markdown formatted documentation for the weir commands.",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doc.GenMarkdownTree(RootCmd, "./weir-cmd-docs")
	},
}
