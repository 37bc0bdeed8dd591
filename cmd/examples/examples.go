// Package examples contains the examples command.
package examples

import (
	"fmt"
	"sort"

	ex "github.com/ohsu-comp-bio/weir/examples"
	"github.com/spf13/cobra"
)

// Cmd represents the examples command
var Cmd = &cobra.Command{
	Use:     "examples [name]",
	Aliases: []string{"example"},
	Short:   "Print example model files.",
	RunE: func(cmd *cobra.Command, args []string) error {

		// Print a list of example names and exit
		if len(args) == 0 || args[0] == "list" {
			var names []string
			for sn := range ex.Examples() {
				names = append(names, sn)
			}
			sort.Strings(names)
			for _, sn := range names {
				fmt.Println(sn)
			}
			return nil
		}

		// Retrieve and print the example
		name := args[0]
		data, ok := ex.Examples()[name]
		if !ok {
			return fmt.Errorf("No example by the name of %s", name)
		}

		fmt.Println(data)
		return nil
	},
}
