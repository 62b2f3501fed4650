// Package main is the dumpkit command-line entry point.
package main

import (
	"os"

	"dumpkit/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
