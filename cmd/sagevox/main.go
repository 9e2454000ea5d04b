// Package main is the entry point for the sagevox CLI.
//
// Usage:
//
//	sagevox [flags] <command> [subcommand] [args]
//
// Commands:
//
//	books      - Browse the backend book library
//	session    - Voice sessions (run, monitor)
//	sessions   - Inspect recorded session journal
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/sagevox/sagevox-go/cmd/sagevox/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
