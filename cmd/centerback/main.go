// Package main is the centerback operator CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/centerback/centerback-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
