// Package main is the ajanta command.
package main

import (
	"os"

	"github.com/leapstack-labs/ajanta/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
