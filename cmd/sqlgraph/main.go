// Package main is the entry point for the sqlgraph CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/aidanlsb/sqlgraph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
