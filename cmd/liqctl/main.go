// Package main is the entry point for the liqctl operator CLI.
package main

import (
	"os"

	"github.com/boddenberg/pj-liquidity-engine/cmd/liqctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
