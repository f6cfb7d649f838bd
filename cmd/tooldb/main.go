/*
Package main is the entry point for the tooldb CLI.

tooldb is a semantic registry that maps free-text task descriptions to the
tool best suited to handle them.

Usage:

	tooldb [command]

Available Commands:

	serve       Run the tooldb HTTP server
	add         Register a tool on a tooldb server
	match       Find the tool best suited to a task
	history     Show recent registrations and match statistics
	config      Inspect or create the configuration file
	version     Show version information

Examples:

	# Start the server on 0.0.0.0:5000
	tooldb serve

	# Register a tool
	tooldb add --name grep --command "grep -r pattern dir" --examples "search files"

	# Resolve a task
	tooldb match search files for pattern
*/
package main

import (
	"fmt"
	"os"

	"github.com/khanglvm/tooldb/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
