package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "jarvisd",
		Short:   "jarvisd — admission, routing and spend control for a personal assistant",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newRouteCmd(),
		newCostCmd(),
		newEventsCmd(),
		newStatusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
