// Package main provides the entry point for the relay CLI.
package main

import (
	"fmt"
	"os"

	"github.com/relay-ai/relay/cmd/relay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
