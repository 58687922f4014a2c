// Package main is the entry point for the ptsites CLI.
package main

import (
	"os"

	"github.com/jmylchreest/ptsites/cmd/ptsites/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
