package main

import (
	"os"

	"github.com/ohsu-comp-bio/weir/cmd"
	"github.com/ohsu-comp-bio/weir/logger"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		logger.PrintSimpleError(err)
		os.Exit(1)
	}
}
