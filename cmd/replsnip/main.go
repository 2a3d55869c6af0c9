// Package main provides the replsnip CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/replsnip/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
