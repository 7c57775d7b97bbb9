// Package main is the entry point for the llmbatch CLI.
package main

import (
	"os"

	"github.com/crawlserv/llmbatch/cmd/llmbatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
