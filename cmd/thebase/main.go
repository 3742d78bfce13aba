// Package main is the entry point for the thebase CLI.
package main

import (
	"os"

	"github.com/TheBase/TheBase/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
