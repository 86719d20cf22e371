// Package main provides the entry point for minikv-cli.
package main

import (
	"fmt"
	"os"

	"github.com/stefankamdem/minikv/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
